package history

import (
	"context"
	"database/sql"
	"errors"

	"github.com/radieske/provably-fair-dice/internal/shared/apperr"
	"github.com/radieske/provably-fair-dice/internal/shared/db"
)

// Postgres implementa Store sobre a tabela bets
// O server seed vem do join com seed_pairs e só aparece depois da revelação
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

const betSelect = `
	SELECT b.id, b.account_id, b.currency, b.wager, b.win_chance, b.server_seed_hash,
	       CASE WHEN s.revealed_at IS NOT NULL THEN s.server_seed END,
	       b.client_seed, b.nonce, b.outcome, b.won, b.payout, b.created_at
	FROM bets b
	LEFT JOIN seed_pairs s ON s.server_seed_hash = b.server_seed_hash`

type rowScanner interface{ Scan(dest ...any) error }

func scanBet(r rowScanner) (Bet, error) {
	var (
		b       Bet
		seed    sql.NullString
		chance  int64
		nonce   int64
		outcome int64
	)
	if err := r.Scan(&b.ID, &b.AccountID, &b.Currency, &b.Wager, &chance, &b.ServerSeedHash,
		&seed, &b.ClientSeed, &nonce, &outcome, &b.Won, &b.Payout, &b.CreatedAt); err != nil {
		return Bet{}, err
	}
	b.WinChance = uint32(chance)
	b.Nonce = uint64(nonce)
	b.Outcome = uint32(outcome)
	if seed.Valid {
		s := seed.String
		b.ServerSeed = &s
	}
	return b, nil
}

// Append insere a aposta; id ou (hash, nonce) repetidos viram ErrDuplicateBet
func (p *Postgres) Append(ctx context.Context, b Bet) error {
	if err := validate(b); err != nil {
		return err
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO bets (id, account_id, currency, wager, win_chance, server_seed_hash, client_seed,
		                  nonce, outcome, won, payout, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		b.ID, b.AccountID, b.Currency, b.Wager, int64(b.WinChance), b.ServerSeedHash, b.ClientSeed,
		int64(b.Nonce), int64(b.Outcome), b.Won, b.Payout, b.CreatedAt)
	if db.IsUniqueViolation(err) {
		return ErrDuplicateBet
	}
	return apperr.Wrap(apperr.StorageError, "history.append", err)
}

func (p *Postgres) Get(ctx context.Context, id string) (Bet, error) {
	b, err := scanBet(p.db.QueryRowContext(ctx, betSelect+` WHERE b.id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Bet{}, ErrBetNotFound
	}
	if err != nil {
		return Bet{}, apperr.Wrap(apperr.StorageError, "history.get", err)
	}
	return b, nil
}

func (p *Postgres) Recent(ctx context.Context, limit, offset int) ([]Bet, error) {
	limit, offset = page(limit, offset)
	return p.list(ctx, "history.recent",
		betSelect+` ORDER BY b.created_at DESC, b.id DESC LIMIT $1 OFFSET $2`, limit, offset)
}

func (p *Postgres) ByAccount(ctx context.Context, accountID string, limit, offset int) ([]Bet, error) {
	limit, offset = page(limit, offset)
	return p.list(ctx, "history.by_account",
		betSelect+` WHERE b.account_id=$1 ORDER BY b.created_at DESC, b.id DESC LIMIT $2 OFFSET $3`,
		accountID, limit, offset)
}

func (p *Postgres) list(ctx context.Context, op, query string, args ...any) ([]Bet, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageError, op, err)
	}
	defer rows.Close()

	out := []Bet{}
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.StorageError, op, err)
		}
		out = append(out, b)
	}
	return out, apperr.Wrap(apperr.StorageError, op, rows.Err())
}
