package storage

import (
	"testing"

	"github.com/pgsqlite/pgsqlite/pkg/log"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Database != ":memory:" {
		t.Errorf("Database = %q, want :memory:", cfg.Database)
	}
	if cfg.JournalMode != JournalWAL {
		t.Errorf("JournalMode = %v, want WAL", cfg.JournalMode)
	}
	if cfg.Synchronous != "NORMAL" {
		t.Errorf("Synchronous = %q, want NORMAL", cfg.Synchronous)
	}
}

func TestIsMemoryDSN(t *testing.T) {
	cases := map[string]bool{
		":memory:":                     true,
		"":                             true,
		"file::memory:?cache=shared":   true,
		"/var/lib/pgsqlite/data.db":    false,
		"file:/var/lib/pgsqlite/data.db": false,
	}
	for dsn, want := range cases {
		if got := isMemoryDSN(dsn); got != want {
			t.Errorf("isMemoryDSN(%q) = %v, want %v", dsn, got, want)
		}
	}
}

func TestContainsMode(t *testing.T) {
	if !containsMode("file::memory:?cache=shared", "memory") {
		t.Errorf("expected containsMode to find \"memory\"")
	}
	if containsMode("file:/tmp/x.db", "memory") {
		t.Errorf("expected containsMode to not find \"memory\" in a plain path")
	}
}

func TestEngineSchemaVersion(t *testing.T) {
	e := New(DefaultConfig(), log.New(log.Config{}))
	if v := e.SchemaVersion(); v != 0 {
		t.Fatalf("initial SchemaVersion() = %d, want 0", v)
	}
	if v := e.BumpSchemaVersion(); v != 1 {
		t.Fatalf("BumpSchemaVersion() = %d, want 1", v)
	}
	if v := e.SchemaVersion(); v != 1 {
		t.Fatalf("SchemaVersion() after bump = %d, want 1", v)
	}
}

func TestNewEngineWiresCaches(t *testing.T) {
	e := New(DefaultConfig(), log.New(log.Config{}))
	if e.Schema == nil || e.Queries == nil || e.Notifier == nil {
		t.Fatalf("New() left a cache/notifier nil: %+v", e)
	}
	if !e.isMemory {
		t.Errorf("expected isMemory to be true for the default :memory: config")
	}
}
