package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens (and creates if needed) the journal database at path and
// ensures required tables exist.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
		if err := checkJournalFilesystem(path); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Concurrent dispatches write to the journal; one connection serializes them.
	db.SetMaxOpenConns(1)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(pctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if err := BootstrapSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// BootstrapSQLite creates tables/indexes if missing.
func BootstrapSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS webhook_delivery (
  id               TEXT PRIMARY KEY,
  serve_event_id   TEXT NOT NULL,
  stub             TEXT NOT NULL,
  method           TEXT NOT NULL,
  url              TEXT NOT NULL,
  request_headers  JSON NOT NULL DEFAULT '[]',
  request_body     TEXT,
  status           TEXT NOT NULL,
  response_status  INTEGER,
  response_headers JSON,
  response_body    TEXT,
  last_error       TEXT,
  created_at       TEXT NOT NULL,
  completed_at     TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS webhook_delivery_event_idx ON webhook_delivery(serve_event_id);`,
		`CREATE INDEX IF NOT EXISTS webhook_delivery_created_at_idx ON webhook_delivery(created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap sqlite: %w", err)
		}
	}
	return nil
}
