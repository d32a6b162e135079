package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/provably-fair-dice/internal/shared/apperr"
	"github.com/radieske/provably-fair-dice/internal/shared/keylock"
)

// Memory implementa Store em memória, para desenvolvimento local e testes.
// A serialização por (conta, moeda) vem do keylock; mu só protege os mapas.
type Memory struct {
	locks *keylock.Locks

	mu       sync.RWMutex
	balances map[string]decimal.Decimal
	entries  []Entry
	refs     map[string]Entry
	now      func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		locks:    keylock.New(),
		balances: make(map[string]decimal.Decimal),
		refs:     make(map[string]Entry),
		now:      time.Now,
	}
}

// ApplyDelta lê o saldo, rejeita se ficar negativo e grava o novo valor
// como uma única operação visível para as leituras seguintes.
func (s *Memory) ApplyDelta(ctx context.Context, m Mutation) (decimal.Decimal, error) {
	if err := validate(m); err != nil {
		return decimal.Zero, err
	}
	k := key(m.AccountID, m.Currency)
	unlock, err := s.locks.Lock(ctx, k)
	if err != nil {
		return decimal.Zero, apperr.Wrap(apperr.StorageError, "ledger.apply", err)
	}
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if m.Ref != "" {
		if prev, replay := s.refs[m.Ref]; replay {
			if !sameMutation(prev, m) {
				return decimal.Zero, refConflict(m.Ref)
			}
			return prev.BalanceAfter, nil
		}
	}

	cur := s.balances[k]
	next := cur.Add(m.Delta)
	if next.IsNegative() {
		return cur, ErrInsufficientFunds
	}

	e := Entry{
		ID:           int64(len(s.entries) + 1),
		AccountID:    m.AccountID,
		Currency:     m.Currency,
		Delta:        m.Delta,
		BalanceAfter: next,
		Ref:          m.Ref,
		CreatedAt:    s.now(),
	}
	s.balances[k] = next
	s.entries = append(s.entries, e)
	if m.Ref != "" {
		s.refs[m.Ref] = e
	}
	return next, nil
}

// Balance devolve zero para pares nunca movimentados.
func (s *Memory) Balance(_ context.Context, accountID, currency string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[key(accountID, currency)], nil
}

func (s *Memory) Balances(_ context.Context, accountID string) (map[string]decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]decimal.Decimal)
	prefix := accountID + "\x00"
	for k, v := range s.balances {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			out[k[len(prefix):]] = v
		}
	}
	return out, nil
}

// Entries devolve as últimas entradas do diário, mais recentes primeiro.
func (s *Memory) Entries(_ context.Context, accountID, currency string, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entry
	for i := len(s.entries) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		e := s.entries[i]
		if e.AccountID == accountID && e.Currency == currency {
			out = append(out, e)
		}
	}
	return out, nil
}
