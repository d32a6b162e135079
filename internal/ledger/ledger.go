package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/provably-fair-dice/internal/shared/apperr"
)

var ErrInsufficientFunds = apperr.New(apperr.InsufficientFunds, "insufficient funds")

// Mutation é um delta assinado aplicado a (conta, moeda).
// Ref opcional torna a mutação idempotente: repetir a mesma Ref devolve o
// saldo registrado sem aplicar o delta de novo.
type Mutation struct {
	AccountID string
	Currency  string
	Delta     decimal.Decimal
	Ref       string
}

// Entry é uma linha do diário do ledger.
type Entry struct {
	ID           int64
	AccountID    string
	Currency     string
	Delta        decimal.Decimal
	BalanceAfter decimal.Decimal
	Ref          string
	CreatedAt    time.Time
}

// Store guarda saldos por conta e moeda.
// ApplyDelta é um compare-and-apply atômico com no máximo uma mutação em voo
// por (conta, moeda); contas diferentes não se bloqueiam.
type Store interface {
	ApplyDelta(ctx context.Context, m Mutation) (decimal.Decimal, error)
	Balance(ctx context.Context, accountID, currency string) (decimal.Decimal, error)
	Balances(ctx context.Context, accountID string) (map[string]decimal.Decimal, error)
	Entries(ctx context.Context, accountID, currency string, limit int) ([]Entry, error)
}

func validate(m Mutation) error {
	if m.AccountID == "" || m.Currency == "" {
		return apperr.Errorf(apperr.InvalidArgument, "ledger.apply", "account and currency are required")
	}
	return nil
}

// sameMutation confere se a repetição de uma ref descreve a mesma mutação já gravada.
func sameMutation(e Entry, m Mutation) bool {
	return e.AccountID == m.AccountID && e.Currency == m.Currency && e.Delta.Equal(m.Delta)
}

func refConflict(ref string) error {
	return apperr.Errorf(apperr.InvalidArgument, "ledger.apply", "ref %q already used by a different mutation", ref)
}

func key(accountID, currency string) string { return accountID + "\x00" + currency }
