package catalog

import (
	"context"
	"database/sql"
)

// queryInformationSchemaTables fabricates information_schema.tables rows
// from sqlite_master — the subset ORMs (SQLAlchemy,
// ActiveRecord) probe to discover whether a table already exists.
func queryInformationSchemaTables(ctx context.Context, conn *sql.Conn, where string) (*Result, error) {
	cols := []string{"table_catalog", "table_schema", "table_name", "table_type"}

	rows, err := conn.QueryContext(ctx, `
	SELECT name FROM sqlite_master
	WHERE type = 'table'
	AND name NOT LIKE 'sqlite_%'
	AND name NOT LIKE '__pgsqlite_%'
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, Row{
			"table_catalog": "pgsqlite",
			"table_schema": "public",
			"table_name": name,
			"table_type": "BASE TABLE",
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out = Evaluate(out, where)
	return &Result{Columns: cols, Rows: out}, nil
}

// queryInformationSchemaColumns fabricates information_schema.columns rows
// from __pgsqlite_schema.
func queryInformationSchemaColumns(ctx context.Context, conn *sql.Conn, where string) (*Result, error) {
	cols := []string{"table_catalog", "table_schema", "table_name", "column_name", "ordinal_position", "is_nullable", "data_type", "column_default", "character_maximum_length", "numeric_precision", "numeric_scale"}

	rows, err := conn.QueryContext(ctx, `
	SELECT s.table_name, s.column_name, s.pg_type, s.not_null, s.col_default,
	sc.max_length, nc.precision, nc.scale
	FROM __pgsqlite_schema s
	LEFT JOIN __pgsqlite_string_constraints sc
	ON sc.table_name = s.table_name AND sc.column_name = s.column_name
	LEFT JOIN __pgsqlite_numeric_constraints nc
	ON nc.table_name = s.table_name AND nc.column_name = s.column_name
	ORDER BY s.rowid
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	ordinal := map[string]int64{}
	for rows.Next() {
		var table, column, pgType string
		var notNull int64
		var colDefault sql.NullString
		var maxLen, precision, scale sql.NullInt64
		if err := rows.Scan(&table, &column, &pgType, &notNull, &colDefault, &maxLen, &precision, &scale); err != nil {
			return nil, err
		}
		ordinal[table]++
		isNullable := "YES"
		if notNull != 0 {
			isNullable = "NO"
		}
		row := Row{
			"table_catalog": "pgsqlite",
			"table_schema": "public",
			"table_name": table,
			"column_name": column,
			"ordinal_position": ordinal[table],
			"is_nullable": isNullable,
			"data_type": pgType,
			"column_default": nullStringValue(colDefault),
		}
		if maxLen.Valid {
			row["character_maximum_length"] = maxLen.Int64
		} else {
			row["character_maximum_length"] = nil
		}
		if precision.Valid {
			row["numeric_precision"] = precision.Int64
			row["numeric_scale"] = scale.Int64
		} else {
			row["numeric_precision"] = nil
			row["numeric_scale"] = nil
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out = Evaluate(out, where)
	return &Result{Columns: cols, Rows: out}, nil
}

func nullStringValue(n sql.NullString) interface{} {
	if !n.Valid {
		return nil
	}
	return n.String
}
