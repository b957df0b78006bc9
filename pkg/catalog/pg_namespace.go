package catalog

// queryPgNamespace fabricates the fixed schema rows pgsqlite recognises:
// pg_catalog, public, information_schema, matching the rows installed as a
// real SQLite view by migration v4 (catalogViewStatements) — kept here too
// so a query naming pg_namespace explicitly (rather than relying on the
// installed view) still gets an answer without a round trip to SQLite.
func queryPgNamespace(where string) (*Result, error) {
	cols := []string{"oid", "nspname", "nspowner"}
	rows := []Row{
		{"oid": int64(11), "nspname": "pg_catalog", "nspowner": int64(10)},
		{"oid": int64(2200), "nspname": "public", "nspowner": int64(10)},
		{"oid": int64(99), "nspname": "information_schema", "nspowner": int64(10)},
	}
	rows = Evaluate(rows, where)
	return &Result{Columns: cols, Rows: rows}, nil
}
