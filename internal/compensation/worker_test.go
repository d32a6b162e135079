package compensation

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/radieske/provably-fair-dice/internal/ledger"
	"github.com/radieske/provably-fair-dice/internal/shared/apperr"
	"github.com/radieske/provably-fair-dice/pkg/contracts/events"
)

type scriptedReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []kafka.Message
}

func (r *scriptedReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *scriptedReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *scriptedReader) commits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

// flakyLedger falha as primeiras n chamadas com erro de storage
type flakyLedger struct {
	ledger.Store
	mu    sync.Mutex
	fails int
	calls int
}

func (f *flakyLedger) ApplyDelta(ctx context.Context, m ledger.Mutation) (decimal.Decimal, error) {
	f.mu.Lock()
	f.calls++
	fail := f.calls <= f.fails
	f.mu.Unlock()
	if fail {
		return decimal.Zero, apperr.Wrap(apperr.StorageError, "test", errors.New("connection reset"))
	}
	return f.Store.ApplyDelta(ctx, m)
}

func dlqMessage(t *testing.T, e events.CompensationRequired) kafka.Message {
	t.Helper()
	b, err := json.Marshal(e)
	require.NoError(t, err)
	return kafka.Message{Key: []byte(e.AccountID), Value: b}
}

func refund(betID, delta string) events.CompensationRequired {
	return events.CompensationRequired{
		BetID:     betID,
		AccountID: "alice",
		Currency:  "USD",
		Delta:     delta,
		Ref:       "bet:" + betID + ":compensate",
		Reason:    "history append failed",
		Attempts:  3,
	}
}

func runUntil(t *testing.T, w *Worker, done func() bool) {
	t.Helper()
	w.Log = zaptest.NewLogger(t)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx) }()
	require.Eventually(t, done, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
}

func TestWorkerReappliesOnce(t *testing.T) {
	ctx := context.Background()
	led := ledger.NewMemory()
	_, err := led.ApplyDelta(ctx, ledger.Mutation{AccountID: "alice", Currency: "USD", Delta: decimal.NewFromInt(90)})
	require.NoError(t, err)

	// a mesma mensagem entregue duas vezes credita uma vez só
	msg := dlqMessage(t, refund("b1", "10"))
	rd := &scriptedReader{msgs: []kafka.Message{msg, msg}}
	applied := 0
	w := &Worker{Reader: rd, Ledger: led, Backoff: time.Millisecond, OnApplied: func() { applied++ }}
	runUntil(t, w, func() bool { return rd.commits() == 2 })

	bal, err := led.Balance(ctx, "alice", "USD")
	require.NoError(t, err)
	assert.True(t, bal.Equal(decimal.NewFromInt(100)), bal.String())
	assert.Equal(t, 2, applied)
}

func TestWorkerRetriesTransientErrors(t *testing.T) {
	led := &flakyLedger{Store: ledger.NewMemory(), fails: 3}
	rd := &scriptedReader{msgs: []kafka.Message{dlqMessage(t, refund("b2", "5"))}}
	retries := 0
	w := &Worker{Reader: rd, Ledger: led, Retries: 2, Backoff: time.Millisecond, OnRetry: func() { retries++ }}
	runUntil(t, w, func() bool { return rd.commits() == 1 })

	assert.Equal(t, 3, retries)
	bal, err := led.Balance(context.Background(), "alice", "USD")
	require.NoError(t, err)
	assert.True(t, bal.Equal(decimal.NewFromInt(5)))
}

func TestWorkerParksUnrecoverable(t *testing.T) {
	led := ledger.NewMemory()
	rd := &scriptedReader{msgs: []kafka.Message{
		{Value: []byte("{nope")},
		dlqMessage(t, refund("b3", "not-a-number")),
		// débito de compensação sem saldo para cobrir
		dlqMessage(t, refund("b4", "-10")),
	}}
	var mu sync.Mutex
	parked := map[string]int{}
	w := &Worker{Reader: rd, Ledger: led, Backoff: time.Millisecond, OnParked: func(r string) {
		mu.Lock()
		parked[r]++
		mu.Unlock()
	}}
	runUntil(t, w, func() bool { return rd.commits() == 3 })

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[string]int{"decode": 1, "invalid": 1, "insufficient_funds": 1}, parked)
}

func TestBackoffIsCapped(t *testing.T) {
	w := &Worker{Backoff: 100 * time.Millisecond, MaxBackoff: 250 * time.Millisecond}
	assert.Equal(t, 100*time.Millisecond, w.backoff(1))
	assert.Equal(t, 200*time.Millisecond, w.backoff(2))
	assert.Equal(t, 250*time.Millisecond, w.backoff(5))
	assert.Equal(t, 300*time.Millisecond, (&Worker{}).backoff(1))
}
