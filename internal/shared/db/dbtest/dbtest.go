// Package dbtest abre um Postgres real para testes de integração.
// Os testes são pulados quando POSTGRES_TEST_DSN não está definido.
package dbtest

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/radieske/provably-fair-dice/internal/shared/db"
)

func Open(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	pg, err := db.ConnectPostgres(dsn)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}
	t.Cleanup(func() { pg.Close() })

	ctx := context.Background()
	if err := db.Migrate(ctx, pg); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := pg.ExecContext(ctx, `TRUNCATE bets, seed_pairs, ledger_entries, balances, account_currencies, accounts`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return pg
}
