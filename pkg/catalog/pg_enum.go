package catalog

import (
	"context"
	"database/sql"
)

// queryPgEnum fabricates pg_enum rows from __pgsqlite_enum_types/_values,
// ENUM type emulation: each label gets a deterministic
// oid and enumsortorder matching the CREATE TYPE ... AS ENUM declaration
// order recorded at DDL-translation time.
func queryPgEnum(ctx context.Context, conn *sql.Conn, where string) (*Result, error) {
	cols := []string{"oid", "enumtypid", "enumlabel", "enumsortorder"}

	rows, err := conn.QueryContext(ctx, `
	SELECT v.type_oid, v.label, v.sort_order
	FROM __pgsqlite_enum_values v
	ORDER BY v.type_oid, v.sort_order
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var typeOID int64
		var label string
		var sortOrder float64
		if err := rows.Scan(&typeOID, &label, &sortOrder); err != nil {
			return nil, err
		}
		out = append(out, Row{
			"oid": int64(ObjectOIDForName("enum", label)) + typeOID,
			"enumtypid": typeOID,
			"enumlabel": label,
			"enumsortorder": sortOrder,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out = Evaluate(out, where)
	return &Result{Columns: cols, Rows: out}, nil
}
