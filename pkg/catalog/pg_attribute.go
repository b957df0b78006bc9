package catalog

import (
	"context"
	"database/sql"

	"github.com/pgsqlite/pgsqlite/pkg/storage"
)

// queryPgAttribute fabricates pg_attribute rows from __pgsqlite_schema:
// one row per user table column, attnum assigned by insertion order
// (SQLite rowid order matches the column_name insertion order
// translateCreateTable produced, since __pgsqlite_schema has no separate
// ordinal column).
func queryPgAttribute(ctx context.Context, conn *sql.Conn, where string) (*Result, error) {
	cols := []string{"attrelid", "attname", "atttypid", "attnum", "attnotnull", "atthasdef", "attlen", "attisdropped"}

	rows, err := conn.QueryContext(ctx, `
	SELECT table_name, column_name, pg_type, not_null, col_default
	FROM __pgsqlite_schema
	ORDER BY rowid
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	attnumByTable := map[string]int64{}
	for rows.Next() {
		var table, column, pgType string
		var notNull int64
		var colDefault sql.NullString
		if err := rows.Scan(&table, &column, &pgType, &notNull, &colDefault); err != nil {
			return nil, err
		}
		attnumByTable[table]++
		oid := storage.PgTypeNameToOID(pgType)
		out = append(out, Row{
			"attrelid": int64(ObjectOIDForName("class", table)),
			"attname": column,
			"atttypid": int64(oid),
			"attnum": attnumByTable[table],
			"attnotnull": notNull != 0,
			"atthasdef": colDefault.Valid,
			"attlen": int64(typLen(oid)),
			"attisdropped": false,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out = Evaluate(out, where)
	return &Result{Columns: cols, Rows: out}, nil
}
