// Package storage owns the embedded SQLite engine: connection setup,
// PRAGMA application, custom SQL function registration, the sidecar
// metadata migrations, schema/query-plan caches, and the WAL-visibility
// refresh fan-out between sessions sharing one database file.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pgerr "github.com/pgsqlite/pgsqlite/pkg/errors"
	"github.com/pgsqlite/pgsqlite/pkg/log"
)

// JournalMode is the SQLite journal_mode PRAGMA value.
type JournalMode string

const (
JournalWAL JournalMode = "WAL"
JournalDelete JournalMode = "DELETE"
JournalTruncate JournalMode = "TRUNCATE"
JournalMemory JournalMode = "MEMORY"
JournalOff JournalMode = "OFF"
)

// Config holds the PRAGMA overrides the environment variables
// expose, plus the database path.
type Config struct {
	Database string // file path, or ":memory:" / "file::memory:?cache=shared"
	JournalMode JournalMode
	Synchronous string // OFF|NORMAL|FULL|EXTRA
	CacheSizeKB int // negative-KB PRAGMA cache_size convention
	MmapSizeMB int
	Watch bool // fsnotify-based schema-cache invalidation, see watch.go
}

// DefaultConfig returns pgsqlite's documented PRAGMA defaults.
func DefaultConfig() Config {
	return Config{
		Database: ":memory:",
		JournalMode: JournalWAL,
		Synchronous: "NORMAL",
		CacheSizeKB: 2000,
		MmapSizeMB: 256,
	}
}

// Engine owns the shared, process-wide SQLite bookkeeping: the migration
// state, the schema/query caches, and the WAL notifier sessions register
// with. Each Session (pkg/session) opens its own *sql.DB connection
// against the same file through Engine.Open.
type Engine struct {
	cfg Config
	logger *log.Logger

	Schema *SchemaCache
	Queries *QueryPlanCache
	Notifier *WALNotifier

	mu sync.Mutex
	migrated bool
	isMemory bool
	schemaVer int64
}

// SchemaVersion returns the counter QueryPlanCache keys cached plans
// against, bumped every time DDL runs (BumpSchemaVersion).
func (e *Engine) SchemaVersion() int64 {
	return atomic.LoadInt64(&e.schemaVer)
}

// BumpSchemaVersion invalidates every cached query plan by advancing the
// counter future Get/Put calls key against; called by the dispatcher after
// CREATE/DROP TABLE or CREATE INDEX succeeds.
func (e *Engine) BumpSchemaVersion() int64 {
	return atomic.AddInt64(&e.schemaVer, 1)
}

// New creates an Engine bound to cfg but does not open any connections.
func New(cfg Config, logger *log.Logger) *Engine {
	return &Engine{
		cfg: cfg,
		logger: logger,
		Schema: NewSchemaCache(),
		Queries: NewQueryPlanCache(),
		Notifier: NewWALNotifier(),
		isMemory: isMemoryDSN(cfg.Database),
	}
}

func isMemoryDSN(db string) bool {
	return db == ":memory:" || db == "" || (len(db) >= 5 && db[:5] == "file:" && containsMode(db, "memory"))
}

func containsMode(dsn, mode string) bool {
	for i := 0; i+len(mode) <= len(dsn); i++ {
		if dsn[i:i+len(mode)] == mode {
			return true
		}
	}
	return false
}

// Open opens a new per-session SQLite connection, applies the configured
// PRAGMAs, and registers pgsqlite's custom SQL functions (OID hash,
// fts_match, regexp matching, numeric rounding, pgsqlite_datname,
// pg_backend_pid, current_user, version) exactly once per connection.
func (e *Engine) Open(ctx context.Context) (*sql.DB, error) {
	dsn := e.cfg.Database
	if dsn != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_fk=true", dsn)
	}

	db, err := sql.Open(sqliteDriverName, dsn)
	if err != nil {
		return nil, pgerr.Internal("failed to open sqlite database").WithCause(err).Err()
	}
	// SQLite connections are not safe for concurrent use by multiple
	// goroutines issuing statements at once; the session layer serialises
	// access per connection, so a single pooled connection is correct and
	// matches the one-connection-per-session model used throughout.
	db.SetMaxOpenConns(1)

	if err := e.applyPragmas(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func (e *Engine) applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		fmt.Sprintf("PRAGMA journal_mode=%s", e.cfg.JournalMode),
		fmt.Sprintf("PRAGMA synchronous=%s", e.cfg.Synchronous),
		fmt.Sprintf("PRAGMA cache_size=-%d", e.cfg.CacheSizeKB),
		"PRAGMA temp_store=MEMORY",
		fmt.Sprintf("PRAGMA mmap_size=%d", e.cfg.MmapSizeMB*1024*1024),
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return pgerr.Internal(fmt.Sprintf("applying %q", p)).WithCause(err).Err()
		}
	}
	return nil
}

// EnsureMigrated runs the migration runner exactly once per Engine
// lifetime (subsequent sessions share the already-migrated schema). It is
// idempotent and safe to call from every new session.
func (e *Engine) EnsureMigrated(ctx context.Context, db *sql.DB) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.migrated {
		return nil
	}
	runner := NewMigrationRunner(db, e.logger)
	if err := runner.Run(ctx, e.isMemory); err != nil {
		return err
	}
	e.migrated = true
	return nil
}

// NotifyWrite is called by a session immediately after a successful
// autocommit write or COMMIT. It fans out a best-effort WAL-visibility
// refresh to every other registered session, never surfacing failure to
// the caller: a failed refresh must not be reported to the user.
func (e *Engine) NotifyWrite(sessionID string) {
	e.Notifier.Publish(sessionID)
}

// Stats exposes basic engine-level counters for logging/diagnostics.
type Stats struct {
	SchemaCacheSize int
	QueryCacheSize int
	Uptime time.Duration
}
