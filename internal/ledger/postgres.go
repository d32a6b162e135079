package ledger

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/radieske/provably-fair-dice/internal/shared/apperr"
	"github.com/radieske/provably-fair-dice/internal/shared/db"
)

// Postgres implementa Store sobre as tabelas balances e ledger_entries
// Lock pessimista na linha (conta, moeda) serializa mutações concorrentes
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// ApplyDelta trava a linha do saldo, confere o resultado e registra a entrada no diário
// Idempotente por ref: a verificação acontece depois do lock, então duas
// repetições concorrentes da mesma ref não aplicam o delta duas vezes
func (p *Postgres) ApplyDelta(ctx context.Context, m Mutation) (decimal.Decimal, error) {
	if err := validate(m); err != nil {
		return decimal.Zero, err
	}
	const op = "ledger.apply"

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return decimal.Zero, apperr.Wrap(apperr.StorageError, op, err)
	}
	defer tx.Rollback()

	// Garante a linha para o FOR UPDATE; rollback desfaz se a mutação for rejeitada
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO balances (account_id, currency, balance, version)
		VALUES ($1, $2, 0, 0)
		ON CONFLICT (account_id, currency) DO NOTHING`, m.AccountID, m.Currency); err != nil {
		return decimal.Zero, apperr.Wrap(apperr.StorageError, op, err)
	}

	var cur decimal.Decimal
	if err = tx.QueryRowContext(ctx,
		`SELECT balance FROM balances WHERE account_id=$1 AND currency=$2 FOR UPDATE`,
		m.AccountID, m.Currency).Scan(&cur); err != nil {
		return decimal.Zero, apperr.Wrap(apperr.StorageError, op, err)
	}

	if m.Ref != "" {
		var prev Entry
		err = tx.QueryRowContext(ctx,
			`SELECT account_id, currency, delta, balance_after FROM ledger_entries WHERE ref=$1`, m.Ref).
			Scan(&prev.AccountID, &prev.Currency, &prev.Delta, &prev.BalanceAfter)
		if err == nil {
			if !sameMutation(prev, m) {
				return decimal.Zero, refConflict(m.Ref)
			}
			return prev.BalanceAfter, nil // já aplicada
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, apperr.Wrap(apperr.StorageError, op, err)
		}
	}

	next := cur.Add(m.Delta)
	if next.IsNegative() {
		return cur, ErrInsufficientFunds
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE balances SET balance=$3, version=version+1, updated_at=NOW()
		WHERE account_id=$1 AND currency=$2`, m.AccountID, m.Currency, next); err != nil {
		return decimal.Zero, apperr.Wrap(apperr.StorageError, op, err)
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (account_id, currency, delta, balance_after, ref)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''))`,
		m.AccountID, m.Currency, m.Delta, next, m.Ref); err != nil {
		// mesma ref gravada em paralelo por outra conta/moeda
		if db.IsUniqueViolation(err) {
			return decimal.Zero, refConflict(m.Ref)
		}
		return decimal.Zero, apperr.Wrap(apperr.StorageError, op, err)
	}

	if err = tx.Commit(); err != nil {
		return decimal.Zero, apperr.Wrap(apperr.StorageError, op, err)
	}
	return next, nil
}

// Balance devolve zero quando a conta nunca movimentou a moeda
func (p *Postgres) Balance(ctx context.Context, accountID, currency string) (decimal.Decimal, error) {
	var bal decimal.Decimal
	err := p.db.QueryRowContext(ctx,
		`SELECT balance FROM balances WHERE account_id=$1 AND currency=$2`, accountID, currency).Scan(&bal)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, apperr.Wrap(apperr.StorageError, "ledger.balance", err)
	}
	return bal, nil
}

func (p *Postgres) Balances(ctx context.Context, accountID string) (map[string]decimal.Decimal, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT currency, balance FROM balances WHERE account_id=$1`, accountID)
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageError, "ledger.balances", err)
	}
	defer rows.Close()

	out := make(map[string]decimal.Decimal)
	for rows.Next() {
		var cur string
		var bal decimal.Decimal
		if err := rows.Scan(&cur, &bal); err != nil {
			return nil, apperr.Wrap(apperr.StorageError, "ledger.balances", err)
		}
		out[cur] = bal
	}
	return out, apperr.Wrap(apperr.StorageError, "ledger.balances", rows.Err())
}

func (p *Postgres) Entries(ctx context.Context, accountID, currency string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, account_id, currency, delta, balance_after, COALESCE(ref, ''), created_at
		FROM ledger_entries
		WHERE account_id=$1 AND currency=$2
		ORDER BY id DESC
		LIMIT $3`, accountID, currency, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageError, "ledger.entries", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Currency, &e.Delta, &e.BalanceAfter, &e.Ref, &e.CreatedAt); err != nil {
			return nil, apperr.Wrap(apperr.StorageError, "ledger.entries", err)
		}
		out = append(out, e)
	}
	return out, apperr.Wrap(apperr.StorageError, "ledger.entries", rows.Err())
}
