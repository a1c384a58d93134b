//go:build integration

// Package testdb opens a migrated Postgres database for integration tests.
// Tests are skipped when DIGEST_TEST_DATABASE_URL is unset.
package testdb

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/phrazzld/digest-api/internal/platform/postgres"
)

// URLEnv names the variable holding the test database URL.
const URLEnv = "DIGEST_TEST_DATABASE_URL"

var (
	migrateOnce sync.Once
	migrateErr  error
)

// Open connects to the test database, applying migrations once per test
// binary. The connection is closed when the test finishes.
func Open(t *testing.T) *sql.DB {
	t.Helper()

	url := os.Getenv(URLEnv)
	if url == "" {
		t.Skipf("%s not set", URLEnv)
	}

	db, err := sql.Open("pgx", url)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("failed to ping test database: %v", err)
	}

	migrateOnce.Do(func() {
		migrateErr = postgres.Migrate(ctx, db, "up", slog.New(slog.NewTextHandler(io.Discard, nil)))
	})
	if migrateErr != nil {
		t.Fatalf("failed to migrate test database: %v", migrateErr)
	}
	return db
}

// WithTx runs fn in a transaction that is always rolled back, so tests can
// share one database without seeing each other's rows.
func WithTx(t *testing.T, db *sql.DB, fn func(t *testing.T, tx *sql.Tx)) {
	t.Helper()

	tx, err := db.BeginTx(context.Background(), nil)
	if err != nil {
		t.Fatalf("failed to begin transaction: %v", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			t.Logf("failed to roll back test transaction: %v", err)
		}
	}()

	fn(t, tx)
}
