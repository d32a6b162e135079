package history

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/provably-fair-dice/internal/shared/apperr"
)

var (
	ErrBetNotFound  = apperr.New(apperr.NotFound, "bet not found")
	ErrDuplicateBet = apperr.New(apperr.StorageError, "bet already recorded")
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Bet é o registro imutável de uma aposta liquidada.
// ServerSeed só é preenchido na leitura, depois que o par foi revelado.
type Bet struct {
	ID             string          `json:"id"`
	AccountID      string          `json:"accountId"`
	Currency       string          `json:"currency"`
	Wager          decimal.Decimal `json:"wager"`
	WinChance      uint32          `json:"winChance"`
	ServerSeedHash string          `json:"serverSeedHash"`
	ServerSeed     *string         `json:"serverSeed"`
	ClientSeed     string          `json:"clientSeed"`
	Nonce          uint64          `json:"nonce"`
	Outcome        uint32          `json:"outcome"`
	Won            bool            `json:"won"`
	Payout         decimal.Decimal `json:"payout"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// Store é append-only: nenhum registro é alterado depois de gravado.
type Store interface {
	Append(ctx context.Context, b Bet) error
	// Recent devolve as apostas mais novas primeiro.
	Recent(ctx context.Context, limit, offset int) ([]Bet, error)
	Get(ctx context.Context, id string) (Bet, error)
	ByAccount(ctx context.Context, accountID string, limit, offset int) ([]Bet, error)
}

// Revealer resolve o server seed de um par já encerrado.
type Revealer interface {
	Reveal(ctx context.Context, serverSeedHash string) (string, error)
}

func validate(b Bet) error {
	switch {
	case b.ID == "":
		return apperr.Errorf(apperr.InvalidArgument, "history.append", "bet id is required")
	case b.AccountID == "" || b.Currency == "":
		return apperr.Errorf(apperr.InvalidArgument, "history.append", "account and currency are required")
	case b.ServerSeedHash == "":
		return apperr.Errorf(apperr.InvalidArgument, "history.append", "server seed hash is required")
	}
	return nil
}

func page(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
