package storage

import (
	"context"
	"database/sql"
	"fmt"

	pgerr "github.com/pgsqlite/pgsqlite/pkg/errors"
	"github.com/pgsqlite/pgsqlite/pkg/log"
)

// migration is one versioned step the runner applies:
// a SQL batch, optionally followed by a host-code routine run in the same
// transaction. No migration in the list currently sets PostHook.
type migration struct {
	Version int64
	Name string
	Description string
	Up []string
	PostHook func(ctx context.Context, tx *sql.Tx) error
}

// MigrationRunner installs and upgrades the sidecar __pgsqlite_* schema
// and the pg_catalog compatibility views.
type MigrationRunner struct {
	db *sql.DB
	logger *log.Logger
}

// NewMigrationRunner creates a runner bound to db.
func NewMigrationRunner(db *sql.DB, logger *log.Logger) *MigrationRunner {
	return &MigrationRunner{db: db, logger: logger}
}

// Run applies every migration newer than the recorded schema_version, in
// a transaction per migration, guarded by a single-row lock in
// __pgsqlite_migration_locks. Fresh and in-memory databases skip the
// schema-drift check since there is no prior state to
// drift from.
func (r *MigrationRunner) Run(ctx context.Context, isMemory bool) error {
	if err := r.ensureBootstrapTables(ctx); err != nil {
		return err
	}

	if err := r.acquireLock(ctx); err != nil {
		return err
	}
	defer r.releaseLock(ctx)

	current, err := r.currentVersion(ctx)
	if err != nil {
		return err
	}

	if !isMemory && current > 0 {
		if err := r.checkDrift(ctx); err != nil {
			return err
		}
	}

	for _, m := range migrations() {
		if m.Version <= current {
			continue
		}
		if err := r.apply(ctx, m); err != nil {
			return pgerr.Internal(fmt.Sprintf("migration %d (%s) failed", m.Version, m.Name)).WithCause(err).Err()
		}
		r.logger.Migration().Info("applied migration", "version", m.Version, "name", m.Name)
	}
	return nil
}

// ensureBootstrapTables creates the handful of tables the runner itself
// needs before it can read schema_version: __pgsqlite_metadata and the
// migration audit/lock tables. These are created outside the versioned
// migration list because the runner needs them to exist before it can
// even determine which migrations have run.
func (r *MigrationRunner) ensureBootstrapTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS __pgsqlite_metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS __pgsqlite_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL,
		applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE TABLE IF NOT EXISTS __pgsqlite_migration_locks (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		locked_at TEXT
		)`,
		`INSERT OR IGNORE INTO __pgsqlite_migration_locks (id, locked_at) VALUES (1, NULL)`,
	}
	for _, s := range stmts {
		if _, err := r.db.ExecContext(ctx, s); err != nil {
			return pgerr.Internal("bootstrapping migration tables").WithCause(err).Err()
		}
	}
	return nil
}

func (r *MigrationRunner) acquireLock(ctx context.Context) error {
	res, err := r.db.ExecContext(ctx,
	`UPDATE __pgsqlite_migration_locks SET locked_at = datetime('now') WHERE id = 1 AND locked_at IS NULL`)
	if err != nil {
		return pgerr.Internal("acquiring migration lock").WithCause(err).Err()
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return pgerr.Internal("another process is already running migrations").Err()
	}
	return nil
}

func (r *MigrationRunner) releaseLock(ctx context.Context) {
	r.db.ExecContext(ctx, `UPDATE __pgsqlite_migration_locks SET locked_at = NULL WHERE id = 1`)
}

func (r *MigrationRunner) currentVersion(ctx context.Context) (int64, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM __pgsqlite_metadata WHERE key = 'schema_version'`).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, pgerr.Internal("reading schema_version").WithCause(err).Err()
	}
	var v int64
	fmt.Sscanf(value, "%d", &v)
	return v, nil
}

// checkDrift refuses to start if a user table's recorded __pgsqlite_schema
// column count disagrees with PRAGMA table_info and the
// invariant in §8 ("for every user table T the count of rows in
// __pgsqlite_schema for T equals the number of columns PRAGMA table_info
// returns for T").
func (r *MigrationRunner) checkDrift(ctx context.Context) error {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT table_name FROM __pgsqlite_schema`)
	if err != nil {
		// __pgsqlite_schema may not exist yet on a database migrated
		// from before v1; treat as no drift to check.
		return nil
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return err
		}
		tables = append(tables, t)
	}

	for _, table := range tables {
		var schemaCount int
		if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM __pgsqlite_schema WHERE table_name = ?`, table).Scan(&schemaCount); err != nil {
			return err
		}

		pragmaRows, err := r.db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%q)`, table))
		if err != nil {
			continue // table dropped outside pgsqlite; next DDL will reconcile
		}
		pragmaCount := 0
		for pragmaRows.Next() {
			pragmaCount++
		}
		pragmaRows.Close()

		if pragmaCount > 0 && pragmaCount != schemaCount {
			return pgerr.New(pgerr.ErrDataCorrupted, "schema drift detected").
			WithDetailf("table %q has %d columns but __pgsqlite_schema has %d rows", table, pragmaCount, schemaCount).
			WithHint("the database file may have been modified outside pgsqlite").
			Err()
		}
	}
	return nil
}

func (r *MigrationRunner) apply(ctx context.Context, m migration) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range m.Up {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("statement %q: %w", stmt, err)
		}
	}
	if m.PostHook != nil {
		if err := m.PostHook(ctx, tx); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx,
	`INSERT INTO __pgsqlite_migrations (version, name, description) VALUES (?, ?, ?)`,
	m.Version, m.Name, m.Description); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
	`INSERT INTO __pgsqlite_metadata (key, value) VALUES ('schema_version', ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
	fmt.Sprintf("%d", m.Version)); err != nil {
		return err
	}

	return tx.Commit()
}

// migrations returns the ordered, versioned migration list. Each entry's
// Up batch is idempotent (CREATE TABLE/VIEW IF NOT EXISTS) so re-running
// against a partially-migrated database is safe.
func migrations() []migration {
	return []migration{
		{
			Version: 1,
			Name: "sidecar_schema",
			Description: "create __pgsqlite_schema and the type/constraint sidecar tables",
			Up: []string{
				`CREATE TABLE IF NOT EXISTS __pgsqlite_schema (
				table_name TEXT NOT NULL,
				column_name TEXT NOT NULL,
				pg_type TEXT NOT NULL,
				sqlite_type TEXT NOT NULL,
				type_modifier INTEGER,
				not_null INTEGER NOT NULL DEFAULT 0,
				col_default TEXT,
				datetime_format TEXT,
				timezone_offset INTEGER,
				fts_table_name TEXT,
				fts_config TEXT,
				PRIMARY KEY (table_name, column_name)
				)`,
				`CREATE TABLE IF NOT EXISTS __pgsqlite_string_constraints (
				table_name TEXT NOT NULL,
				column_name TEXT NOT NULL,
				max_length INTEGER,
				is_char INTEGER NOT NULL DEFAULT 0,
				PRIMARY KEY (table_name, column_name)
				)`,
				`CREATE TABLE IF NOT EXISTS __pgsqlite_numeric_constraints (
				table_name TEXT NOT NULL,
				column_name TEXT NOT NULL,
				precision INTEGER NOT NULL,
				scale INTEGER NOT NULL,
				PRIMARY KEY (table_name, column_name)
				)`,
				`CREATE TABLE IF NOT EXISTS __pgsqlite_array_types (
				table_name TEXT NOT NULL,
				column_name TEXT NOT NULL,
				element_type TEXT NOT NULL,
				ndims INTEGER NOT NULL DEFAULT 1,
				PRIMARY KEY (table_name, column_name)
				)`,
			},
		},
		{
			Version: 2,
			Name: "enum_types",
			Description: "create the ENUM catalog tables",
			Up: []string{
				`CREATE TABLE IF NOT EXISTS __pgsqlite_enum_types (
				oid INTEGER PRIMARY KEY,
				name TEXT NOT NULL UNIQUE,
				namespace TEXT NOT NULL DEFAULT 'public'
				)`,
				`CREATE TABLE IF NOT EXISTS __pgsqlite_enum_values (
				type_oid INTEGER NOT NULL REFERENCES __pgsqlite_enum_types(oid),
				label TEXT NOT NULL,
				sort_order REAL NOT NULL,
				PRIMARY KEY (type_oid, label)
				)`,
				`CREATE TABLE IF NOT EXISTS __pgsqlite_enum_usage (
				table_name TEXT NOT NULL,
				column_name TEXT NOT NULL,
				type_oid INTEGER NOT NULL REFERENCES __pgsqlite_enum_types(oid),
				PRIMARY KEY (table_name, column_name)
				)`,
			},
		},
		{
			Version: 3,
			Name: "fts_metadata",
			Description: "create the full-text search shadow table registry",
			Up: []string{
				`CREATE TABLE IF NOT EXISTS __pgsqlite_fts_metadata (
				table_name TEXT NOT NULL,
				column_name TEXT NOT NULL,
				fts_table_name TEXT NOT NULL,
				config TEXT NOT NULL DEFAULT 'english',
				PRIMARY KEY (table_name, column_name)
				)`,
			},
		},
		{
			Version: 4,
			Name: "catalog_views",
			Description: "install pg_catalog-compatible views over sqlite_master and the sidecar schema",
			Up: catalogViewStatements(),
		},
		{
			Version: 5,
			Name: "constraint_catalog",
			Description: "create the pg_constraint/pg_attrdef/pg_index tables",
			Up: []string{
				`CREATE TABLE IF NOT EXISTS pg_constraint (
				oid INTEGER PRIMARY KEY,
				conname TEXT NOT NULL,
				connamespace INTEGER NOT NULL DEFAULT 2200,
				contype TEXT NOT NULL,
				conrelid INTEGER NOT NULL,
				confrelid INTEGER NOT NULL DEFAULT 0,
				condeferrable INTEGER NOT NULL DEFAULT 0,
				condef TEXT NOT NULL DEFAULT ''
				)`,
				`CREATE TABLE IF NOT EXISTS pg_attrdef (
				oid INTEGER PRIMARY KEY,
				adrelid INTEGER NOT NULL,
				adnum INTEGER NOT NULL,
				adsrc TEXT NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS pg_index (
				indexrelid INTEGER PRIMARY KEY,
				indrelid INTEGER NOT NULL,
				indisunique INTEGER NOT NULL DEFAULT 0,
				indisprimary INTEGER NOT NULL DEFAULT 0,
				indkey TEXT NOT NULL DEFAULT ''
				)`,
			},
			// This migration only creates the tables. Nothing inserts
			// rows into them (CREATE TABLE translation in pkg/translate
			// does not either), so they stay empty.
		},
		{
			Version: 6,
			Name: "session_settings",
			Description: "create the per-session settings soft cache table",
			Up: []string{
				`CREATE TABLE IF NOT EXISTS __pgsqlite_session_settings (
				session_id TEXT NOT NULL,
				key TEXT NOT NULL,
				value TEXT NOT NULL,
				PRIMARY KEY (session_id, key)
				)`,
				`CREATE TABLE IF NOT EXISTS __pgsqlite_type_map (
				pg_type TEXT PRIMARY KEY,
				sqlite_type TEXT NOT NULL,
				oid INTEGER NOT NULL
				)`,
			},
		},
	}
}

// catalogViewStatements installs the pg_namespace/pg_am/pg_database/
// pg_enum/pg_stat_user_tables/pg_foreign_data_wrapper views. pg_type,
// pg_class and pg_attribute get no view here; their rows come from
// sqlite_master at query time through pkg/catalog's handlers. The views
// are installed so a plain `SELECT *
// FROM pg_namespace` run directly against SQLite (bypassing the
// dispatcher, e.g. from a debugging session) returns something sane.
func catalogViewStatements() []string {
	return []string{
		`CREATE VIEW IF NOT EXISTS pg_namespace AS
		SELECT 2200 AS oid, 'public' AS nspname, 10 AS nspowner
		UNION ALL SELECT 11, 'pg_catalog', 10
		UNION ALL SELECT 99, 'information_schema', 10`,
		`CREATE VIEW IF NOT EXISTS pg_am AS
		SELECT 403 AS oid, 'btree' AS amname
		UNION ALL SELECT 405, 'hash'`,
		`CREATE VIEW IF NOT EXISTS pg_database AS
		SELECT 16384 AS oid, 'main' AS datname, 10 AS datdba, 6 AS encoding`,
		`CREATE VIEW IF NOT EXISTS pg_enum AS
		SELECT type_oid AS enumtypid, sort_order AS enumsortorder, label AS enumlabel
		FROM __pgsqlite_enum_values`,
		`CREATE VIEW IF NOT EXISTS pg_stat_user_tables AS
		SELECT name AS relname FROM sqlite_master WHERE type = 'table' AND name NOT LIKE '__pgsqlite_%' AND name NOT LIKE 'sqlite_%'`,
		`CREATE VIEW IF NOT EXISTS pg_foreign_data_wrapper AS
		SELECT 0 AS oid, '' AS fdwname WHERE 0`,
	}
}
