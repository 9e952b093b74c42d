// Package store implements the Persistence Store: a thin SQLite-backed
// adapter over the four router tables (devices, sensors, actuators,
// alerts) with upsert, update-by-key, and select-by-filter operations,
// a 5-second per-attempt timeout, and a one-shot retry on transient
// failure.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Timeout is the per-attempt DB operation deadline from spec.md §5.
const Timeout = 5 * time.Second

// Store wraps a SQLite database holding the four router tables.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// runs the schema migration. The journal mode and busy timeout pragmas
// mirror the teacher's internal/memory/sqlite.go convention.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// OpenWithDB wraps an already-open *sql.DB, running the same migration.
// Used by tests that need a specific driver (e.g. modernc.org/sqlite).
func OpenWithDB(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS devices (
			device_name TEXT PRIMARY KEY,
			last_seen   TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS sensors (
			device_name TEXT NOT NULL REFERENCES devices(device_name),
			id          INTEGER NOT NULL,
			name        TEXT NOT NULL DEFAULT '',
			location    TEXT NOT NULL DEFAULT '',
			value       TEXT,
			unit        TEXT,
			enabled     INTEGER NOT NULL DEFAULT 1,
			last_seen   TEXT NOT NULL,
			PRIMARY KEY (device_name, id)
		);

		CREATE TABLE IF NOT EXISTS actuators (
			device_name TEXT NOT NULL REFERENCES devices(device_name),
			id          INTEGER NOT NULL,
			name        TEXT NOT NULL DEFAULT '',
			location    TEXT NOT NULL DEFAULT '',
			state       INTEGER,
			last_seen   TEXT NOT NULL,
			PRIMARY KEY (device_name, id)
		);

		CREATE TABLE IF NOT EXISTS alerts (
			device_name    TEXT NOT NULL REFERENCES devices(device_name),
			component_type TEXT NOT NULL,
			component_id   INTEGER NOT NULL,
			component_name TEXT NOT NULL DEFAULT '',
			location       TEXT NOT NULL DEFAULT '',
			status         TEXT NOT NULL DEFAULT 'ALERT',
			message        TEXT NOT NULL DEFAULT '',
			severity       TEXT NOT NULL DEFAULT 'medium',
			code           TEXT NOT NULL DEFAULT '',
			timestamp      TEXT NOT NULL,
			PRIMARY KEY (device_name, component_type, component_id)
		);
	`)
	return err
}

// withRetry executes fn with a Timeout-bounded context. On failure it
// pings the database (forcing database/sql to discard and replace a
// broken pooled connection, the closest Go analogue to db_manager.py's
// explicit reconnect) and retries fn exactly once, matching spec.md's
// "DB adapter timeout 5s per attempt; one retry after full reconnect"
// policy (§5).
func (s *Store) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	attempt := func() error {
		c, cancel := context.WithTimeout(ctx, Timeout)
		defer cancel()
		return fn(c)
	}

	err := attempt()
	if err == nil {
		return nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, Timeout)
	pingErr := s.db.PingContext(pingCtx)
	cancel()
	if pingErr != nil {
		return fmt.Errorf("db unreachable after error %q: %w", err, pingErr)
	}

	return attempt()
}

func now() string {
	return time.Now().UTC().Format("2006-01-02 15:04:05")
}
