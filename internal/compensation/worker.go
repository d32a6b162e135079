package compensation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/provably-fair-dice/internal/ledger"
	"github.com/radieske/provably-fair-dice/internal/shared/apperr"
	"github.com/radieske/provably-fair-dice/pkg/contracts/events"
)

// Reader é o subconjunto de *kafka.Reader usado pelo worker.
// O offset só é commitado depois que a mutação foi resolvida.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Worker consome bet_compensation_dlq e reaplica cada mutação no ledger.
// A Ref da mutação torna a reaplicação idempotente: se a compensação inline
// tiver sido gravada apesar do erro, o ledger só devolve o saldo.
type Worker struct {
	Log    *zap.Logger
	Reader Reader
	Ledger ledger.Store

	// tentativas antes de escalar o log para error; o worker nunca descarta
	// uma mutação por falha transitória
	Retries int
	Backoff time.Duration

	// teto do backoff linear
	MaxBackoff time.Duration

	OnApplied func()
	OnParked  func(reason string) // mutação inválida ou sem saldo, precisa de ação manual
	OnRetry   func()
}

// Run processa a DLQ até o contexto ser cancelado
func (w *Worker) Run(ctx context.Context) error {
	for {
		m, err := w.Reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.Log.Warn("kafka fetch failed", zap.Error(err))
			if err := sleep(ctx, w.backoff(1)); err != nil {
				return err
			}
			continue
		}
		if err := w.process(ctx, m.Value); err != nil {
			// só retorna com contexto cancelado; a mensagem fica sem commit
			return err
		}
		if err := w.Reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			w.Log.Warn("kafka commit failed", zap.Error(err))
		}
	}
}

func (w *Worker) process(ctx context.Context, value []byte) error {
	var ev events.CompensationRequired
	if err := json.Unmarshal(value, &ev); err != nil {
		w.Log.Error("invalid dlq message", zap.Error(err))
		w.park("decode")
		return nil
	}
	delta, err := decimal.NewFromString(ev.Delta)
	if err != nil || ev.Ref == "" {
		w.Log.Error("invalid compensation", zap.String("betId", ev.BetID), zap.String("delta", ev.Delta), zap.String("ref", ev.Ref))
		w.park("invalid")
		return nil
	}
	mut := ledger.Mutation{AccountID: ev.AccountID, Currency: ev.Currency, Delta: delta, Ref: ev.Ref}
	log := w.Log.With(zap.String("betId", ev.BetID), zap.String("accountId", ev.AccountID), zap.String("ref", ev.Ref))

	for attempt := 1; ; attempt++ {
		bal, err := w.Ledger.ApplyDelta(ctx, mut)
		if err == nil {
			log.Info("compensation applied",
				zap.String("delta", delta.String()),
				zap.String("balance", bal.String()),
				zap.Int("attempts", attempt),
				zap.Int("inlineAttempts", ev.Attempts))
			if w.OnApplied != nil {
				w.OnApplied()
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		switch apperr.KindOf(err) {
		case apperr.InsufficientFunds:
			log.Error("compensation parked: insufficient funds", zap.String("delta", delta.String()), zap.Error(err))
			w.park("insufficient_funds")
			return nil
		case apperr.InvalidArgument:
			log.Error("compensation parked: invalid mutation", zap.Error(err))
			w.park("invalid")
			return nil
		}

		if attempt >= w.Retries {
			log.Error("compensation still failing", zap.Int("attempts", attempt), zap.Error(err))
		} else {
			log.Warn("compensation retry", zap.Int("attempt", attempt), zap.Error(err))
		}
		if w.OnRetry != nil {
			w.OnRetry()
		}
		if err := sleep(ctx, w.backoff(attempt)); err != nil {
			return err
		}
	}
}

func (w *Worker) backoff(attempt int) time.Duration {
	base := w.Backoff
	if base <= 0 {
		base = 300 * time.Millisecond
	}
	d := base * time.Duration(attempt)
	if w.MaxBackoff > 0 && d > w.MaxBackoff {
		d = w.MaxBackoff
	}
	return d
}

func (w *Worker) park(reason string) {
	if w.OnParked != nil {
		w.OnParked(reason)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
