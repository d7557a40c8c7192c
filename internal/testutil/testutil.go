// Package testutil provides shared test helpers for setting up journal stores.
package testutil

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/starford/dagaz/internal/store"
)

// TestStore creates a temporary, initialized SQLite store that is
// automatically cleaned up.
func TestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	st := store.New(filepath.Join(dir, "journal.db"))
	if err := st.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// Logger returns a quiet logger for tests.
func Logger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}
