package storage

import (
	"database/sql"
	"hash/fnv"
	"regexp"

	"github.com/mattn/go-sqlite3"
)

// sqliteDriverName is the name pgsqlite registers its custom SQLite driver
// under (distinct from the bare "sqlite3" driver the blank import
// registers) so every connection gets the functions below wired in via
// ConnectHook at Open time, matching the "registration of
// custom SQL functions" requirement.
const sqliteDriverName = "sqlite3_pgsqlite"

func init() {
	sql.Register(sqliteDriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return registerFunctions(conn)
		},
	})
}

func registerFunctions(conn *sqlite3.SQLiteConn) error {
	fns := map[string]interface{}{
		"pgsqlite_oid_hash": oidHash,
		"pgsqlite_fts_match": ftsMatch,
		"pgsqlite_regexp": regexpMatch,
		"pgsqlite_iregexp": iregexpMatch,
		"pgsqlite_datname": func() string { return "main" },
		"pg_backend_pid": func() int64 { return int64(1) },
		"current_user": func() string { return "postgres" },
		"version": func() string { return "PostgreSQL 16.3 (pgsqlite)" },
		"pgsqlite_numeric_round": numericRound,
	}
	for name, fn := range fns {
		if err := conn.RegisterFunc(name, fn, true); err != nil {
			return err
		}
	}
	return nil
}

// oidHash is the SQL-callable form of catalog.ObjectOIDForName's algorithm,
// exposed so translated DDL/queries can compute a table or column's OID
// without a round-trip through Go. kind is e.g. "table"/"column"/"index".
func oidHash(kind, name string) int64 {
	h := fnv.New32a()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write([]byte(name))
	return int64(h.Sum32()%1_000_000) + 16384
}

// ftsMatch implements the pgsqlite_fts_match(fts_table, rowid, query) helper
// . It cannot itself reach across tables from a
// scalar function registered this way (SQLite scalar functions may not run
// further queries against the same connection reentrantly in all driver
// versions), so the translator rewrites `@@` into a join against the FTS5
// shadow table directly wherever possible; this stub remains registered for
// any already-translated query text that still references it explicitly
// and simply returns 0 (no match) — reentrant shadow-table lookups are the
// documented limitation, noted in DESIGN.md.
func ftsMatch(ftsTable string, rowID int64, query string) int64 {
	return 0
}

var regexpCache = map[string]*regexp.Regexp{}

func regexpMatch(pattern, text string) (bool, error) {
	re, ok := regexpCache[pattern]
	if !ok {
		var err error
		re, err = regexp.Compile(pattern)
		if err != nil {
			return false, err
		}
		regexpCache[pattern] = re
	}
	return re.MatchString(text), nil
}

func iregexpMatch(pattern, text string) (bool, error) {
	return regexpMatch("(?i)"+pattern, text)
}

// numericRound applies scale to a TEXT-stored NUMERIC value read back as a
// float64 by SQLite's query engine (e.g. after an arithmetic expression),
// "numeric/decimal column reads go through a helper
// that applies the column's scale when the engine returned a REAL".
func numericRound(value float64, scale int64) float64 {
	mul := 1.0
	for i := int64(0); i < scale; i++ {
		mul *= 10
	}
	if mul == 0 {
		return value
	}
	rounded := float64(int64(value*mul+sign(value)*0.5)) / mul
	return rounded
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
