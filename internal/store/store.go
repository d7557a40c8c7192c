// Package store owns the on-device SQLite database: schema creation, default
// settings seeding, and handle lifecycle.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/dagaz/internal/apperr"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS entries (
	id         TEXT PRIMARY KEY,
	date       TEXT UNIQUE NOT NULL,
	photo      TEXT,
	mood       TEXT NOT NULL,
	weather    TEXT NOT NULL,
	good_thing TEXT,
	bad_thing  TEXT,
	memo       TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_entries_date ON entries(date);

CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// DefaultSettings are the seven canonical settings seeded at schema creation.
// Order is stable so reseeding is deterministic.
var DefaultSettings = []struct {
	Key   string
	Value string
}{
	{"theme", "seasonal"},
	{"notificationTime", "20:00"},
	{"notificationEnabled", "true"},
	{"appLockEnabled", "false"},
	{"appLockType", "pin"},
	{"isPremium", "false"},
	{"seasonalThemeEnabled", "true"},
}

// Store owns the database handle. It is constructed once by the composition
// root and injected into the repositories; Initialize and Close are guarded by
// a mutex so concurrent first-time callers cannot double-open the file.
type Store struct {
	path string

	mu   sync.Mutex
	conn *sql.DB
}

// New creates a Store for the database file at path. The file is not opened
// until Initialize.
func New(path string) *Store {
	return &Store{path: path}
}

// Initialize opens (or creates) the database file, applies the schema, and
// seeds the default settings. It is idempotent: calling it on an initialized
// store re-applies the IF NOT EXISTS schema against the live handle.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		if err := ensureParentDir(s.path); err != nil {
			return apperr.Init("could not prepare the journal database", err)
		}
		conn, err := sql.Open("sqlite3", s.path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
		if err != nil {
			return apperr.Init("could not open the journal database", err)
		}
		if err := conn.PingContext(ctx); err != nil {
			conn.Close()
			return apperr.Init("could not open the journal database", err)
		}
		s.conn = conn
	}

	if _, err := s.conn.ExecContext(ctx, schemaSQL); err != nil {
		return apperr.Init("could not create the journal tables", err)
	}
	if err := seedDefaults(ctx, s.conn); err != nil {
		return apperr.Init("could not write the default settings", err)
	}
	return nil
}

// Handle returns the live database handle. It fails with a not-initialized
// error before Initialize has succeeded or after Close.
func (s *Store) Handle() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil, apperr.NotInitialized("the journal database is not ready yet")
	}
	return s.conn, nil
}

// Close releases the handle. Handle fails again until the next Initialize.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	if err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}

// seedDefaults inserts the default settings rows, leaving existing values alone.
func seedDefaults(ctx context.Context, conn *sql.DB) error {
	stmt, err := conn.PrepareContext(ctx, `INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare seed: %w", err)
	}
	defer stmt.Close()
	for _, def := range DefaultSettings {
		if _, err := stmt.ExecContext(ctx, def.Key, def.Value); err != nil {
			return fmt.Errorf("store: seed %s: %w", def.Key, err)
		}
	}
	return nil
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("store: database parent is not a directory: %s", dir)
		}
		return nil
	}
	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}
	return err
}
