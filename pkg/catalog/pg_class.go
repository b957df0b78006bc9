package catalog

import (
	"context"
	"database/sql"
)

// queryPgClass fabricates pg_class rows from sqlite_master, one per table
// and index. relkind is 'r' for an ordinary table, 'i'
// for an index, matching Postgres's convention; reltuples/relpages are
// left at 0 since pgsqlite never runs ANALYZE-equivalent bookkeeping.
func queryPgClass(ctx context.Context, conn *sql.Conn, where string) (*Result, error) {
	cols := []string{"oid", "relname", "relnamespace", "relkind", "relowner", "reltuples", "relpages", "relam", "reltype"}

	rows, err := conn.QueryContext(ctx, `
	SELECT name, type FROM sqlite_master
	WHERE type IN ('table', 'index')
	AND name NOT LIKE 'sqlite_%'
	AND name NOT LIKE '__pgsqlite_%'
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var name, kind string
		if err := rows.Scan(&name, &kind); err != nil {
			return nil, err
		}
		relkind := "r"
		if kind == "index" {
			relkind = "i"
		}
		out = append(out, Row{
			"oid": int64(ObjectOIDForName("class", name)),
			"relname": name,
			"relnamespace": int64(2200),
			"relkind": relkind,
			"relowner": int64(10),
			"reltuples": float64(0),
			"relpages": int64(0),
			"relam": int64(0),
			"reltype": int64(ObjectOIDForName("type", name)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out = Evaluate(out, where)
	return &Result{Columns: cols, Rows: out}, nil
}
