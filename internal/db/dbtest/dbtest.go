// Package dbtest opens throwaway migrated databases for package tests.
package dbtest

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"qbank/internal/db"
)

// Open returns a migrated SQLite database living in t.TempDir().
func Open(t testing.TB) *sql.DB {
	t.Helper()

	ctx := context.Background()
	conn, err := db.OpenSQLite(ctx, filepath.Join(t.TempDir(), "qbank_test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	if err := db.Migrate(ctx, conn, db.DriverSQLite); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return conn
}

// OpenPostgres returns a migrated Postgres connection when integration tests
// are enabled through QBANK_INTEGRATION=1 and QBANK_TEST_DB_DSN, otherwise it
// skips the calling test.
func OpenPostgres(t testing.TB) *sql.DB {
	t.Helper()

	if os.Getenv("QBANK_INTEGRATION") != "1" {
		t.Skip("set QBANK_INTEGRATION=1 to run integration tests")
	}
	dsn := os.Getenv("QBANK_TEST_DB_DSN")
	if dsn == "" {
		t.Skip("QBANK_TEST_DB_DSN is not set")
	}

	ctx := context.Background()
	conn, err := db.OpenPostgres(ctx, dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	if err := db.Migrate(ctx, conn, db.DriverPostgres); err != nil {
		t.Fatalf("migrate postgres: %v", err)
	}
	return conn
}
