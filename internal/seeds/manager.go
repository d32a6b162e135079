package seeds

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/provably-fair-dice/internal/fairness"
	"github.com/radieske/provably-fair-dice/internal/shared/apperr"
	"github.com/radieske/provably-fair-dice/internal/shared/keylock"
)

var (
	errNoAccount       = apperr.New(apperr.NotFound, "no account context")
	errAlreadyRotating = apperr.New(apperr.AlreadyRotating, "seed rotation already in flight")
)

// Binding é o material de derivação de uma aposta: par ativo + nonce recém alocado.
type Binding struct {
	PairID         string
	ServerSeed     string
	ServerSeedHash string
	ClientSeed     string
	Nonce          uint64
}

// Rotation devolve o par encerrado (com o server seed revelado) e o novo par.
type Rotation struct {
	Revealed SeedPair
	Next     SeedPair
}

// Manager controla o ciclo de vida dos pares de seeds por conta.
// Alocação de nonce e rotação passam pelo mesmo lock da conta, então uma
// rotação nunca se intercala entre o nonce e a leitura do seed.
type Manager struct {
	store Store
	locks *keylock.Locks
	log   *zap.Logger
	now   func() time.Time

	mu       sync.Mutex
	rotating map[string]struct{}
}

func NewManager(store Store, log *zap.Logger) *Manager {
	return &Manager{
		store:    store,
		locks:    keylock.New(),
		log:      log,
		now:      time.Now,
		rotating: make(map[string]struct{}),
	}
}

// Commit devolve o par ativo da conta, criando um se não existir.
// O server seed nunca é devolvido aqui, só o hash.
func (m *Manager) Commit(ctx context.Context, accountID, clientSeed string) (SeedPair, error) {
	if accountID == "" {
		return SeedPair{}, errNoAccount
	}
	unlock, err := m.locks.Lock(ctx, accountID)
	if err != nil {
		return SeedPair{}, apperr.Wrap(apperr.StorageError, "seeds.commit", err)
	}
	defer unlock()

	p, err := m.store.Active(ctx, accountID)
	if err == nil {
		return p.Public(), nil
	}
	if !errors.Is(err, ErrNoActivePair) {
		return SeedPair{}, err
	}

	p, err = m.newPair(accountID, clientSeed)
	if err != nil {
		return SeedPair{}, err
	}
	if err := m.store.Create(ctx, p); err != nil {
		if !errors.Is(err, errActiveExists) {
			return SeedPair{}, err
		}
		// outra instância criou o par primeiro
		if p, err = m.store.Active(ctx, accountID); err != nil {
			return SeedPair{}, err
		}
		return p.Public(), nil
	}
	m.log.Info("seed pair committed",
		zap.String("accountId", accountID),
		zap.String("serverSeedHash", p.ServerSeedHash))
	return p.Public(), nil
}

// Bind aloca o próximo nonce do par ativo e devolve o material de derivação.
func (m *Manager) Bind(ctx context.Context, accountID string) (Binding, error) {
	if accountID == "" {
		return Binding{}, errNoAccount
	}
	unlock, err := m.locks.Lock(ctx, accountID)
	if err != nil {
		return Binding{}, apperr.Wrap(apperr.StorageError, "seeds.bind", err)
	}
	defer unlock()

	p, err := m.store.Advance(ctx, accountID)
	if err != nil {
		return Binding{}, err
	}
	return Binding{
		PairID:         p.ID,
		ServerSeed:     p.ServerSeed,
		ServerSeedHash: p.ServerSeedHash,
		ClientSeed:     p.ClientSeed,
		Nonce:          p.Nonce,
	}, nil
}

// NextNonce incrementa e devolve o nonce do par ativo; o primeiro é 1.
func (m *Manager) NextNonce(ctx context.Context, accountID string) (uint64, error) {
	b, err := m.Bind(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return b.Nonce, nil
}

// Rotate encerra o par ativo, revela o server seed e cria um novo par.
// Só uma rotação por conta fica em voo; as demais recebem AlreadyRotating.
func (m *Manager) Rotate(ctx context.Context, accountID, nextClientSeed string) (Rotation, error) {
	if accountID == "" {
		return Rotation{}, errNoAccount
	}
	m.mu.Lock()
	if _, busy := m.rotating[accountID]; busy {
		m.mu.Unlock()
		return Rotation{}, errAlreadyRotating
	}
	m.rotating[accountID] = struct{}{}
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.rotating, accountID)
		m.mu.Unlock()
	}()

	unlock, err := m.locks.Lock(ctx, accountID)
	if err != nil {
		return Rotation{}, apperr.Wrap(apperr.StorageError, "seeds.rotate", err)
	}
	defer unlock()

	cur, err := m.store.Active(ctx, accountID)
	if err != nil {
		return Rotation{}, err
	}
	next, err := m.newPair(accountID, nextClientSeed)
	if err != nil {
		return Rotation{}, err
	}
	retired, err := m.store.Replace(ctx, accountID, cur.ID, next, m.now())
	if err != nil {
		return Rotation{}, err
	}
	if fairness.HashServerSeed(retired.ServerSeed) != retired.ServerSeedHash {
		m.log.Error("revealed seed does not match commitment",
			zap.String("accountId", accountID), zap.String("pairId", retired.ID))
		return Rotation{}, apperr.Errorf(apperr.StorageError, "seeds.rotate", "stored seed pair %s is corrupted", retired.ID)
	}

	m.log.Info("seed pair rotated",
		zap.String("accountId", accountID),
		zap.String("revealedHash", retired.ServerSeedHash),
		zap.Uint64("finalNonce", retired.Nonce),
		zap.String("nextHash", next.ServerSeedHash))
	return Rotation{Revealed: retired.Public(), Next: next.Public()}, nil
}

// Reveal devolve o server seed de um par já encerrado.
func (m *Manager) Reveal(ctx context.Context, serverSeedHash string) (string, error) {
	p, err := m.store.ByHash(ctx, serverSeedHash)
	if err != nil {
		return "", err
	}
	if p.Active() {
		return "", ErrNotRevealed
	}
	return p.ServerSeed, nil
}

func (m *Manager) newPair(accountID, clientSeed string) (Pair, error) {
	server, err := fairness.GenerateServerSeed()
	if err != nil {
		return Pair{}, apperr.Wrap(apperr.StorageError, "seeds.generate", err)
	}
	if clientSeed == "" {
		if clientSeed, err = fairness.GenerateClientSeed(); err != nil {
			return Pair{}, apperr.Wrap(apperr.StorageError, "seeds.generate", err)
		}
	}
	return Pair{
		ID:             uuid.NewString(),
		AccountID:      accountID,
		ServerSeed:     server,
		ServerSeedHash: fairness.HashServerSeed(server),
		ClientSeed:     clientSeed,
		CreatedAt:      m.now().UTC(),
	}, nil
}
