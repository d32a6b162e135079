package accounts

import (
	"context"
	"database/sql"
	"errors"

	"github.com/radieske/provably-fair-dice/internal/shared/apperr"
)

// Postgres lê as tabelas accounts e account_currencies mantidas pelo serviço de contas
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

func (p *Postgres) Lookup(ctx context.Context, accountID string) (Profile, error) {
	const op = "accounts.lookup"
	if accountID == "" {
		return Profile{}, ErrAccountNotFound
	}
	prof := Profile{AccountID: accountID, Currencies: []string{}}
	err := p.db.QueryRowContext(ctx, `SELECT suspended FROM accounts WHERE id=$1`, accountID).Scan(&prof.Suspended)
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{}, ErrAccountNotFound
	}
	if err != nil {
		return Profile{}, apperr.Wrap(apperr.StorageError, op, err)
	}

	rows, err := p.db.QueryContext(ctx,
		`SELECT currency FROM account_currencies WHERE account_id=$1 ORDER BY currency`, accountID)
	if err != nil {
		return Profile{}, apperr.Wrap(apperr.StorageError, op, err)
	}
	defer rows.Close()
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return Profile{}, apperr.Wrap(apperr.StorageError, op, err)
		}
		prof.Currencies = append(prof.Currencies, c)
	}
	if err := rows.Err(); err != nil {
		return Profile{}, apperr.Wrap(apperr.StorageError, op, err)
	}
	return prof, nil
}
