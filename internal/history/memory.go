package history

import (
	"context"
	"slices"
	"sort"
	"sync"
)

// Memory mantém as apostas ordenadas por (CreatedAt, ID), como o índice do postgres.
type Memory struct {
	mu       sync.RWMutex
	bets     []Bet
	byID     map[string]Bet
	revealer Revealer
}

// NewMemory aceita revealer nil; nesse caso ServerSeed nunca é preenchido.
func NewMemory(revealer Revealer) *Memory {
	return &Memory{byID: make(map[string]Bet), revealer: revealer}
}

// before ordena do mais antigo para o mais novo; ID desempata timestamps iguais.
func before(a, b Bet) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func (m *Memory) Append(_ context.Context, b Bet) error {
	if err := validate(b); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[b.ID]; ok {
		return ErrDuplicateBet
	}
	b.ServerSeed = nil
	m.byID[b.ID] = b
	// o relógio de quem liquida pode chegar fora de ordem
	i := sort.Search(len(m.bets), func(i int) bool { return before(b, m.bets[i]) })
	m.bets = slices.Insert(m.bets, i, b)
	return nil
}

func (m *Memory) Recent(ctx context.Context, limit, offset int) ([]Bet, error) {
	return m.scan(ctx, limit, offset, func(Bet) bool { return true })
}

func (m *Memory) ByAccount(ctx context.Context, accountID string, limit, offset int) ([]Bet, error) {
	return m.scan(ctx, limit, offset, func(b Bet) bool { return b.AccountID == accountID })
}

func (m *Memory) Get(ctx context.Context, id string) (Bet, error) {
	m.mu.RLock()
	b, ok := m.byID[id]
	m.mu.RUnlock()
	if !ok {
		return Bet{}, ErrBetNotFound
	}
	return m.reveal(ctx, b), nil
}

func (m *Memory) scan(ctx context.Context, limit, offset int, keep func(Bet) bool) ([]Bet, error) {
	limit, offset = page(limit, offset)
	m.mu.RLock()
	out := make([]Bet, 0, limit)
	for i := len(m.bets) - 1; i >= 0 && len(out) < limit; i-- {
		if !keep(m.bets[i]) {
			continue
		}
		if offset > 0 {
			offset--
			continue
		}
		out = append(out, m.bets[i])
	}
	m.mu.RUnlock()

	for i := range out {
		out[i] = m.reveal(ctx, out[i])
	}
	return out, nil
}

func (m *Memory) reveal(ctx context.Context, b Bet) Bet {
	if m.revealer == nil {
		return b
	}
	if seed, err := m.revealer.Reveal(ctx, b.ServerSeedHash); err == nil {
		b.ServerSeed = &seed
	}
	return b
}
