package seeds

import (
	"context"
	"sync"
	"time"
)

// Memory guarda pares em memória; usado em desenvolvimento local e testes.
type Memory struct {
	mu     sync.Mutex
	active map[string]*Pair // accountID -> par ativo
	byHash map[string]*Pair
}

func NewMemory() *Memory {
	return &Memory{
		active: make(map[string]*Pair),
		byHash: make(map[string]*Pair),
	}
}

func (m *Memory) Active(_ context.Context, accountID string) (Pair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.active[accountID]
	if !ok {
		return Pair{}, ErrNoActivePair
	}
	return *p, nil
}

func (m *Memory) Create(_ context.Context, p Pair) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.active[p.AccountID]; ok {
		return errActiveExists
	}
	m.put(p)
	return nil
}

func (m *Memory) put(p Pair) {
	cp := p
	m.active[p.AccountID] = &cp
	m.byHash[p.ServerSeedHash] = &cp
}

func (m *Memory) Advance(_ context.Context, accountID string) (Pair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.active[accountID]
	if !ok {
		return Pair{}, ErrNoActivePair
	}
	p.Nonce++
	return *p, nil
}

func (m *Memory) Replace(_ context.Context, accountID, retireID string, next Pair, at time.Time) (Pair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.active[accountID]
	if !ok {
		return Pair{}, ErrNoActivePair
	}
	if p.ID != retireID {
		// outra rotação já encerrou retireID
		return Pair{}, errAlreadyRotating
	}
	revealed := at
	p.RevealedAt = &revealed
	delete(m.active, accountID)
	m.put(next)
	return *p, nil
}

func (m *Memory) ByHash(_ context.Context, serverSeedHash string) (Pair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byHash[serverSeedHash]
	if !ok {
		return Pair{}, ErrPairNotFound
	}
	return *p, nil
}
