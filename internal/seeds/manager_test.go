package seeds

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/radieske/provably-fair-dice/internal/fairness"
	"github.com/radieske/provably-fair-dice/internal/shared/apperr"
	"github.com/radieske/provably-fair-dice/internal/shared/db/dbtest"
)

func runManagerSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("commit publishes only the hash", func(t *testing.T) {
		m := NewManager(newStore(t), zaptest.NewLogger(t))
		ctx := context.Background()

		sp, err := m.Commit(ctx, "alice", "lucky")
		require.NoError(t, err)
		assert.Nil(t, sp.ServerSeed)
		assert.Len(t, sp.ServerSeedHash, 64)
		assert.Equal(t, "lucky", sp.ClientSeed)
		assert.Zero(t, sp.Nonce)

		again, err := m.Commit(ctx, "alice", "other")
		require.NoError(t, err)
		assert.Equal(t, sp.ServerSeedHash, again.ServerSeedHash)
		assert.Equal(t, "lucky", again.ClientSeed)
	})

	t.Run("commit generates client seed when absent", func(t *testing.T) {
		m := NewManager(newStore(t), zaptest.NewLogger(t))
		sp, err := m.Commit(context.Background(), "bob", "")
		require.NoError(t, err)
		assert.Len(t, sp.ClientSeed, 32)
	})

	t.Run("empty account is not found", func(t *testing.T) {
		m := NewManager(newStore(t), zaptest.NewLogger(t))
		ctx := context.Background()
		_, err := m.Commit(ctx, "", "x")
		assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
		_, err = m.NextNonce(ctx, "")
		assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
		_, err = m.Rotate(ctx, "", "")
		assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
	})

	t.Run("nonce without pair is not found", func(t *testing.T) {
		m := NewManager(newStore(t), zaptest.NewLogger(t))
		_, err := m.NextNonce(context.Background(), "nobody")
		assert.ErrorIs(t, err, ErrNoActivePair)
	})

	t.Run("nonces start at one and increase", func(t *testing.T) {
		m := NewManager(newStore(t), zaptest.NewLogger(t))
		ctx := context.Background()
		_, err := m.Commit(ctx, "carol", "c")
		require.NoError(t, err)
		for want := uint64(1); want <= 5; want++ {
			n, err := m.NextNonce(ctx, "carol")
			require.NoError(t, err)
			assert.Equal(t, want, n)
		}
	})

	t.Run("concurrent binds never repeat a nonce", func(t *testing.T) {
		m := NewManager(newStore(t), zaptest.NewLogger(t))
		ctx := context.Background()
		_, err := m.Commit(ctx, "dave", "d")
		require.NoError(t, err)

		const n = 50
		var (
			wg     sync.WaitGroup
			mu     sync.Mutex
			nonces []uint64
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				b, err := m.Bind(ctx, "dave")
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				nonces = append(nonces, b.Nonce)
				mu.Unlock()
			}()
		}
		wg.Wait()

		require.Len(t, nonces, n)
		sort.Slice(nonces, func(i, j int) bool { return nonces[i] < nonces[j] })
		for i, got := range nonces {
			assert.Equal(t, uint64(i+1), got)
		}
	})

	t.Run("rotation reveals the committed seed", func(t *testing.T) {
		m := NewManager(newStore(t), zaptest.NewLogger(t))
		ctx := context.Background()
		committed, err := m.Commit(ctx, "erin", "e1")
		require.NoError(t, err)
		_, err = m.NextNonce(ctx, "erin")
		require.NoError(t, err)
		_, err = m.NextNonce(ctx, "erin")
		require.NoError(t, err)

		_, err = m.Reveal(ctx, committed.ServerSeedHash)
		assert.ErrorIs(t, err, ErrNotRevealed)

		rot, err := m.Rotate(ctx, "erin", "e2")
		require.NoError(t, err)
		require.NotNil(t, rot.Revealed.ServerSeed)
		assert.Equal(t, committed.ServerSeedHash, rot.Revealed.ServerSeedHash)
		assert.Equal(t, committed.ServerSeedHash, fairness.HashServerSeed(*rot.Revealed.ServerSeed))
		assert.Equal(t, uint64(2), rot.Revealed.Nonce)
		assert.NotNil(t, rot.Revealed.RevealedAt)

		assert.NotEqual(t, committed.ServerSeedHash, rot.Next.ServerSeedHash)
		assert.Nil(t, rot.Next.ServerSeed)
		assert.Equal(t, "e2", rot.Next.ClientSeed)
		assert.Zero(t, rot.Next.Nonce)

		seed, err := m.Reveal(ctx, committed.ServerSeedHash)
		require.NoError(t, err)
		assert.Equal(t, *rot.Revealed.ServerSeed, seed)

		n, err := m.NextNonce(ctx, "erin")
		require.NoError(t, err)
		assert.Equal(t, uint64(1), n)
	})

	t.Run("rotation racing another instance is already rotating", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		first := NewManager(store, zaptest.NewLogger(t))
		_, err := first.Commit(ctx, "hank", "h1")
		require.NoError(t, err)
		old, err := store.Active(ctx, "hank")
		require.NoError(t, err)

		// a segunda instância leu o par antes da primeira rotacionar
		second := NewManager(&staleActiveStore{Store: store, pair: old}, zaptest.NewLogger(t))
		rot, err := first.Rotate(ctx, "hank", "h2")
		require.NoError(t, err)

		_, err = second.Rotate(ctx, "hank", "h3")
		assert.Equal(t, apperr.AlreadyRotating, apperr.KindOf(err))

		cur, err := store.Active(ctx, "hank")
		require.NoError(t, err)
		assert.Equal(t, rot.Next.ServerSeedHash, cur.ServerSeedHash)
		assert.Equal(t, "h2", cur.ClientSeed)
	})

	t.Run("rotate without pair", func(t *testing.T) {
		m := NewManager(newStore(t), zaptest.NewLogger(t))
		_, err := m.Rotate(context.Background(), "frank", "")
		assert.ErrorIs(t, err, ErrNoActivePair)
	})

	t.Run("reveal unknown hash", func(t *testing.T) {
		m := NewManager(newStore(t), zaptest.NewLogger(t))
		_, err := m.Reveal(context.Background(), "deadbeef")
		assert.ErrorIs(t, err, ErrPairNotFound)
	})
}

func TestManagerMemory(t *testing.T) {
	runManagerSuite(t, func(t *testing.T) Store { return NewMemory() })
}

func TestManagerPostgres(t *testing.T) {
	pg := dbtest.Open(t)
	runManagerSuite(t, func(t *testing.T) Store {
		_, err := pg.Exec(`TRUNCATE seed_pairs`)
		require.NoError(t, err)
		return NewPostgres(pg)
	})
}

// staleActiveStore devolve sempre o mesmo par em Active.
type staleActiveStore struct {
	Store
	pair Pair
}

func (s *staleActiveStore) Active(context.Context, string) (Pair, error) {
	return s.pair, nil
}

// blockingStore segura Replace até o teste liberar.
type blockingStore struct {
	Store
	entered chan struct{}
	release chan struct{}
}

func (b *blockingStore) Replace(ctx context.Context, accountID, retireID string, next Pair, at time.Time) (Pair, error) {
	close(b.entered)
	<-b.release
	return b.Store.Replace(ctx, accountID, retireID, next, at)
}

func TestRotateWhileRotatingFails(t *testing.T) {
	store := &blockingStore{Store: NewMemory(), entered: make(chan struct{}), release: make(chan struct{})}
	m := NewManager(store, zaptest.NewLogger(t))
	ctx := context.Background()
	_, err := m.Commit(ctx, "gina", "g")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := m.Rotate(ctx, "gina", "")
		done <- err
	}()
	<-store.entered

	_, err = m.Rotate(ctx, "gina", "")
	assert.Equal(t, apperr.AlreadyRotating, apperr.KindOf(err))

	close(store.release)
	require.NoError(t, <-done)
}

func TestBindWaitsForRotation(t *testing.T) {
	store := &blockingStore{Store: NewMemory(), entered: make(chan struct{}), release: make(chan struct{})}
	m := NewManager(store, zaptest.NewLogger(t))
	ctx := context.Background()
	old, err := m.Commit(ctx, "hugo", "h")
	require.NoError(t, err)

	rotated := make(chan Rotation, 1)
	go func() {
		rot, err := m.Rotate(ctx, "hugo", "")
		assert.NoError(t, err)
		rotated <- rot
	}()
	<-store.entered

	bound := make(chan Binding, 1)
	go func() {
		b, err := m.Bind(ctx, "hugo")
		assert.NoError(t, err)
		bound <- b
	}()

	select {
	case <-bound:
		t.Fatal("bind completed during rotation")
	case <-time.After(50 * time.Millisecond):
	}

	close(store.release)
	rot := <-rotated
	b := <-bound
	assert.NotEqual(t, old.ServerSeedHash, b.ServerSeedHash)
	assert.Equal(t, rot.Next.ServerSeedHash, b.ServerSeedHash)
	assert.Equal(t, uint64(1), b.Nonce)
}

func TestBindHonoursCancelledContext(t *testing.T) {
	m := NewManager(NewMemory(), zaptest.NewLogger(t))
	unlock, err := m.locks.Lock(context.Background(), "ivy")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Bind(ctx, "ivy")
	assert.Equal(t, apperr.StorageError, apperr.KindOf(err))
}
