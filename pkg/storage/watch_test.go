package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pgsqlite/pgsqlite/pkg/log"
)

func TestFileWatcherInvalidatesOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.db")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("seeding file: %v", err)
	}

	engine := New(DefaultConfig(), log.New(log.Config{}))
	engine.Schema.Put(&TableSchema{Name: "widgets", Columns: []ColumnSchema{{PgType: "numeric"}}})

	w, err := NewFileWatcher(path, engine, log.New(log.Config{}))
	if err != nil {
		t.Fatalf("NewFileWatcher: %v", err)
	}
	w.debounceDelay = 10 * time.Millisecond

	done := make(chan struct{}, 1)
	w.onInvalidate = func() { done <- struct{}{} }

	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("changed"), 0o644); err != nil {
		t.Fatalf("rewriting file: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for schema cache invalidation")
	}

	if _, ok := engine.Schema.Get("widgets"); ok {
		t.Errorf("expected schema cache to be invalidated after the file changed on disk")
	}
}

func TestFileWatcherStartIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.db")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("seeding file: %v", err)
	}

	engine := New(DefaultConfig(), log.New(log.Config{}))
	w, err := NewFileWatcher(path, engine, log.New(log.Config{}))
	if err != nil {
		t.Fatalf("NewFileWatcher: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("second Start should be a no-op, got: %v", err)
	}
	w.Stop()
}
