package keylock

import (
	"context"
	"sync"
)

// Locks serializa operações por chave (ex: conta+moeda) sem bloquear chaves diferentes.
// Entradas sem uso são removidas para o mapa não crescer indefinidamente.
type Locks struct {
	mu sync.Mutex
	m  map[string]*entry
}

type entry struct {
	ch   chan struct{}
	refs int
}

func New() *Locks {
	return &Locks{m: make(map[string]*entry)}
}

// Lock espera a vez da chave ou o cancelamento do contexto.
// O retorno deve ser chamado exatamente uma vez para liberar a chave.
func (l *Locks) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.m[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.m[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
		return func() { l.release(key, e) }, nil
	case <-ctx.Done():
		l.drop(key, e)
		return nil, ctx.Err()
	}
}

func (l *Locks) release(key string, e *entry) {
	<-e.ch
	l.drop(key, e)
}

func (l *Locks) drop(key string, e *entry) {
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.m, key)
	}
	l.mu.Unlock()
}

// Len retorna quantas chaves estão em uso ou aguardando.
func (l *Locks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}
