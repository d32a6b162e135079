package seeds

import (
	"context"
	"time"

	"github.com/radieske/provably-fair-dice/internal/shared/apperr"
)

var (
	ErrNoActivePair = apperr.New(apperr.NotFound, "no active seed pair")
	ErrNotRevealed  = apperr.New(apperr.NotFound, "seed pair not revealed")
	ErrPairNotFound = apperr.New(apperr.NotFound, "seed pair not found")
	errActiveExists = apperr.New(apperr.InvalidArgument, "account already has an active seed pair")
)

// Pair é o estado interno de um par de seeds, incluindo o server seed secreto.
// Nunca deve sair do processo enquanto RevealedAt for nil.
type Pair struct {
	ID             string
	AccountID      string
	ServerSeed     string
	ServerSeedHash string
	ClientSeed     string
	Nonce          uint64
	CreatedAt      time.Time
	RevealedAt     *time.Time
}

// Active indica se o par ainda aceita apostas.
func (p Pair) Active() bool { return p.RevealedAt == nil }

// Public é a visão que pode ser mostrada ao jogador.
func (p Pair) Public() SeedPair {
	sp := SeedPair{
		ServerSeedHash: p.ServerSeedHash,
		ClientSeed:     p.ClientSeed,
		Nonce:          p.Nonce,
		CreatedAt:      p.CreatedAt,
		RevealedAt:     p.RevealedAt,
	}
	if p.RevealedAt != nil {
		seed := p.ServerSeed
		sp.ServerSeed = &seed
	}
	return sp
}

// SeedPair é o par publicado: o server seed só aparece depois da rotação.
type SeedPair struct {
	ServerSeedHash string     `json:"serverSeedHash"`
	ServerSeed     *string    `json:"serverSeed"`
	ClientSeed     string     `json:"clientSeed"`
	Nonce          uint64     `json:"nonce"`
	CreatedAt      time.Time  `json:"createdAt"`
	RevealedAt     *time.Time `json:"revealedAt,omitempty"`
}

// Store persiste pares de seeds. Cada conta tem no máximo um par ativo.
type Store interface {
	// Active devolve o par ativo ou ErrNoActivePair.
	Active(ctx context.Context, accountID string) (Pair, error)
	// Create grava um novo par ativo; falha se a conta já tiver um.
	Create(ctx context.Context, p Pair) error
	// Advance incrementa o nonce do par ativo e devolve o par atualizado.
	Advance(ctx context.Context, accountID string) (Pair, error)
	// Replace encerra o par retireID (revelando-o em at) e grava next como ativo, atomicamente.
	// Se retireID já foi encerrado por outra rotação, devolve AlreadyRotating.
	Replace(ctx context.Context, accountID, retireID string, next Pair, at time.Time) (Pair, error)
	// ByHash busca qualquer par (ativo ou revelado) pelo hash publicado.
	ByHash(ctx context.Context, serverSeedHash string) (Pair, error)
}
