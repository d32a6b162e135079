package seeds

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/radieske/provably-fair-dice/internal/shared/apperr"
	"github.com/radieske/provably-fair-dice/internal/shared/db"
)

// Postgres persiste pares na tabela seed_pairs
// O índice único parcial (account_id WHERE revealed_at IS NULL) garante um par ativo por conta
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

const pairColumns = `id, account_id, server_seed, server_seed_hash, client_seed, nonce, created_at, revealed_at`

type rowScanner interface{ Scan(dest ...any) error }

func scanPair(r rowScanner) (Pair, error) {
	var (
		p        Pair
		nonce    int64
		revealed sql.NullTime
	)
	if err := r.Scan(&p.ID, &p.AccountID, &p.ServerSeed, &p.ServerSeedHash, &p.ClientSeed, &nonce, &p.CreatedAt, &revealed); err != nil {
		return Pair{}, err
	}
	p.Nonce = uint64(nonce)
	if revealed.Valid {
		t := revealed.Time
		p.RevealedAt = &t
	}
	return p, nil
}

func (s *Postgres) Active(ctx context.Context, accountID string) (Pair, error) {
	p, err := scanPair(s.db.QueryRowContext(ctx,
		`SELECT `+pairColumns+` FROM seed_pairs WHERE account_id=$1 AND revealed_at IS NULL`, accountID))
	if errors.Is(err, sql.ErrNoRows) {
		return Pair{}, ErrNoActivePair
	}
	if err != nil {
		return Pair{}, apperr.Wrap(apperr.StorageError, "seeds.active", err)
	}
	return p, nil
}

func (s *Postgres) Create(ctx context.Context, p Pair) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO seed_pairs (id, account_id, server_seed, server_seed_hash, client_seed, nonce, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.AccountID, p.ServerSeed, p.ServerSeedHash, p.ClientSeed, int64(p.Nonce), p.CreatedAt)
	if db.IsUniqueViolation(err) {
		return errActiveExists
	}
	return apperr.Wrap(apperr.StorageError, "seeds.create", err)
}

// Advance incrementa o nonce em um único UPDATE ... RETURNING, atômico no banco
func (s *Postgres) Advance(ctx context.Context, accountID string) (Pair, error) {
	p, err := scanPair(s.db.QueryRowContext(ctx, `
		UPDATE seed_pairs SET nonce = nonce + 1
		WHERE account_id=$1 AND revealed_at IS NULL
		RETURNING `+pairColumns, accountID))
	if errors.Is(err, sql.ErrNoRows) {
		return Pair{}, ErrNoActivePair
	}
	if err != nil {
		return Pair{}, apperr.Wrap(apperr.StorageError, "seeds.advance", err)
	}
	return p, nil
}

// Replace revela o par atual e grava o próximo na mesma transação
func (s *Postgres) Replace(ctx context.Context, accountID, retireID string, next Pair, at time.Time) (Pair, error) {
	const op = "seeds.replace"
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Pair{}, apperr.Wrap(apperr.StorageError, op, err)
	}
	defer tx.Rollback()

	retired, err := scanPair(tx.QueryRowContext(ctx, `
		UPDATE seed_pairs SET revealed_at=$3
		WHERE id=$2 AND account_id=$1 AND revealed_at IS NULL
		RETURNING `+pairColumns, accountID, retireID, at))
	if errors.Is(err, sql.ErrNoRows) {
		// retireID já revelado por outra instância
		var exists bool
		if err = tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM seed_pairs WHERE id=$2 AND account_id=$1)`, accountID, retireID).Scan(&exists); err != nil {
			return Pair{}, apperr.Wrap(apperr.StorageError, op, err)
		}
		if exists {
			return Pair{}, errAlreadyRotating
		}
		return Pair{}, ErrNoActivePair
	}
	if err != nil {
		return Pair{}, apperr.Wrap(apperr.StorageError, op, err)
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO seed_pairs (id, account_id, server_seed, server_seed_hash, client_seed, nonce, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		next.ID, next.AccountID, next.ServerSeed, next.ServerSeedHash, next.ClientSeed, int64(next.Nonce), next.CreatedAt); err != nil {
		return Pair{}, apperr.Wrap(apperr.StorageError, op, err)
	}

	if err = tx.Commit(); err != nil {
		return Pair{}, apperr.Wrap(apperr.StorageError, op, err)
	}
	return retired, nil
}

func (s *Postgres) ByHash(ctx context.Context, serverSeedHash string) (Pair, error) {
	p, err := scanPair(s.db.QueryRowContext(ctx,
		`SELECT `+pairColumns+` FROM seed_pairs WHERE server_seed_hash=$1`, serverSeedHash))
	if errors.Is(err, sql.ErrNoRows) {
		return Pair{}, ErrPairNotFound
	}
	if err != nil {
		return Pair{}, apperr.Wrap(apperr.StorageError, "seeds.by_hash", err)
	}
	return p, nil
}
