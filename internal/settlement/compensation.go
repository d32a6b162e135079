package settlement

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/provably-fair-dice/internal/ledger"
	"github.com/radieske/provably-fair-dice/internal/shared/apperr"
	"github.com/radieske/provably-fair-dice/pkg/contracts/events"
)

// compensate reverte a soma dos deltas já aplicados numa única mutação idempotente.
// Roda desacoplado do cancelamento do chamador; se esgotar as tentativas, a
// mutação vai para a DLQ e o compensation-worker termina o trabalho.
func (e *Engine) compensate(ctx context.Context, r *run, cause error) error {
	net := decimal.Zero
	for _, d := range r.applied {
		net = net.Add(d)
	}
	if net.IsZero() {
		return nil
	}

	m := ledger.Mutation{
		AccountID: r.req.AccountID,
		Currency:  r.currency.Code,
		Delta:     net.Neg(),
		Ref:       ref(r.betID, "compensate"),
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.compTime)
	defer cancel()

	attempts := 0
	var err error
	for attempts < e.retries+1 {
		attempts++
		if _, err = e.ledger.ApplyDelta(cctx, m); err == nil {
			e.metrics.Compensations.WithLabelValues("applied").Inc()
			r.log.Warn("settlement compensated",
				zap.String("delta", m.Delta.String()),
				zap.Int("attempts", attempts),
				zap.NamedError("cause", cause))
			return nil
		}
		// saldo insuficiente não melhora com retry (crédito já gasto por outra aposta)
		if apperr.Is(err, apperr.InsufficientFunds) || attempts > e.retries {
			break
		}
		select {
		case <-cctx.Done():
			err = apperr.Wrap(apperr.StorageError, "settlement.compensate", cctx.Err())
		case <-time.After(e.backoff * time.Duration(attempts)):
			continue
		}
		break
	}

	e.metrics.Compensations.WithLabelValues("dead_lettered").Inc()
	r.log.Error("compensation failed, sending to dlq",
		zap.String("delta", m.Delta.String()),
		zap.Int("attempts", attempts),
		zap.NamedError("cause", cause),
		zap.Error(err))
	e.deadLetter(cctx, m, r.betID, attempts, err)
	return err
}

func (e *Engine) deadLetter(ctx context.Context, m ledger.Mutation, betID string, attempts int, cause error) {
	if e.publ == nil {
		return
	}
	// o prazo da compensação pode ter acabado; a DLQ ganha o próprio
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	err := e.publ.PublishCompensationRequired(dctx, events.CompensationRequired{
		BetID:     betID,
		AccountID: m.AccountID,
		Currency:  m.Currency,
		Delta:     m.Delta.String(),
		Ref:       m.Ref,
		Reason:    cause.Error(),
		Attempts:  attempts,
		Ts:        e.now().UTC(),
	})
	if err != nil {
		e.log.Error("publish compensation dlq failed", zap.String("betId", betID), zap.Error(err))
	}
}
