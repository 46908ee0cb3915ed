package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// OpenSQLite opens a file-backed SQLite database with foreign keys enforced.
// The pool is pinned to one connection so transactions never see SQLITE_BUSY
// from a sibling connection of the same process.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := ping(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}
