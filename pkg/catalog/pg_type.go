package catalog

import "github.com/pgsqlite/pgsqlite/pkg/types"

// pgTypeOIDs is the fixed row set queryPgType fabricates: every scalar and
// array OID pgsqlite's type system (pkg/types/oid.go) knows a name for,
// plus the handful of pseudo-types clients commonly look up by name
// (regclass, regproc, regtype already included there).
var pgTypeOIDs = []types.OID{
	types.BoolOID, types.ByteaOID, types.CharOID, types.NameOID, types.Int8OID,
	types.Int2OID, types.Int4OID, types.TextOID, types.OIDOID, types.JSONOID,
	types.Float4OID, types.Float8OID, types.UnknownOID, types.Macaddr8OID,
	types.MoneyOID, types.MacaddrOID, types.InetOID, types.CIDROID,
	types.BPCharOID, types.VarcharOID, types.DateOID, types.TimeOID,
	types.TimestampOID, types.TimestamptzOID, types.IntervalOID, types.TimetzOID,
	types.BitOID, types.VarbitOID, types.NumericOID, types.UUIDOID,
	types.JSONBOID, types.TSVectorOID, types.TSQueryOID, types.RegclassOID,
	types.RegprocOID, types.RegtypeOID,
	types.BoolArrayOID, types.ByteaArrayOID, types.Int2ArrayOID, types.Int4ArrayOID,
	types.TextArrayOID, types.VarcharArrayOID, types.Int8ArrayOID, types.Float4ArrayOID,
	types.Float8ArrayOID, types.DateArrayOID, types.TimestampArrayOID,
	types.TimestamptzArrayOID, types.NumericArrayOID, types.UUIDArrayOID,
	types.JSONArrayOID, types.JSONBArrayOID, types.CIDRArrayOID,
}

// typCategory mirrors pg_type.typcategory for the handful of values client
// drivers (lib/pq, pgx, psycopg2) actually branch on: 'A' array, 'B'
// boolean, 'N' numeric, 'S' string, 'D' datetime, 'U' user-defined/unknown.
func typCategory(oid types.OID) string {
	if _, ok := types.ElementOID(oid); ok {
		return "A"
	}
	switch oid {
	case types.BoolOID:
		return "B"
	case types.Int2OID, types.Int4OID, types.Int8OID, types.Float4OID, types.Float8OID, types.NumericOID, types.OIDOID:
		return "N"
	case types.TextOID, types.VarcharOID, types.BPCharOID, types.CharOID, types.NameOID:
		return "S"
	case types.DateOID, types.TimeOID, types.TimestampOID, types.TimestamptzOID, types.TimetzOID, types.IntervalOID:
		return "D"
	default:
		return "U"
	}
}

// queryPgType fabricates pg_type rows for every OID pgsqlite's type system
// recognises pg_type emulation requirement. Real
// Postgres clients query this to resolve typname/typlen/typelem for
// result-column introspection (psycopg2's type cache, SQLAlchemy reflection).
func queryPgType(where string) (*Result, error) {
	cols := []string{"oid", "typname", "typnamespace", "typlen", "typtype", "typcategory", "typelem", "typrelid", "typarray", "typnotnull", "typbasetype"}
	var rows []Row
	for _, oid := range pgTypeOIDs {
		elem := types.OID(0)
		if e, ok := types.ElementOID(oid); ok {
			elem = e
		}
		arr := types.OID(0)
		if a, ok := elementToArrayOID(oid); ok {
			arr = a
		}
		rows = append(rows, Row{
			"oid": int64(oid),
			"typname": types.TypeName(oid),
			"typnamespace": int64(11), // pg_catalog
			"typlen": int64(typLen(oid)),
			"typtype": "b",
			"typcategory": typCategory(oid),
			"typelem": int64(elem),
			"typrelid": int64(0),
			"typarray": int64(arr),
			"typnotnull": false,
			"typbasetype": int64(0),
		})
	}
	rows = Evaluate(rows, where)
	return &Result{Columns: cols, Rows: rows}, nil
}

func elementToArrayOID(oid types.OID) (types.OID, bool) {
	pairs := map[types.OID]types.OID{
		types.BoolOID: types.BoolArrayOID, types.ByteaOID: types.ByteaArrayOID,
		types.Int2OID: types.Int2ArrayOID, types.Int4OID: types.Int4ArrayOID,
		types.TextOID: types.TextArrayOID, types.VarcharOID: types.VarcharArrayOID,
		types.Int8OID: types.Int8ArrayOID, types.Float4OID: types.Float4ArrayOID,
		types.Float8OID: types.Float8ArrayOID, types.DateOID: types.DateArrayOID,
		types.TimestampOID: types.TimestampArrayOID, types.TimestamptzOID: types.TimestamptzArrayOID,
		types.NumericOID: types.NumericArrayOID, types.UUIDOID: types.UUIDArrayOID,
		types.JSONOID: types.JSONArrayOID, types.JSONBOID: types.JSONBArrayOID,
		types.CIDROID: types.CIDRArrayOID,
	}
	arr, ok := pairs[oid]
	return arr, ok
}

// typLen mirrors pg_type.typlen: fixed byte width, or -1 for variable
// length, per Postgres convention.
func typLen(oid types.OID) int {
	switch oid {
	case types.BoolOID, types.CharOID:
		return 1
	case types.Int2OID:
		return 2
	case types.Int4OID, types.Float4OID, types.OIDOID, types.DateOID:
		return 4
	case types.Int8OID, types.Float8OID, types.TimestampOID, types.TimestamptzOID,
		types.TimeOID, types.MoneyOID, types.Macaddr8OID:
		return 8
	case types.MacaddrOID:
		return 6
	case types.TimetzOID:
		return 12
	case types.UUIDOID, types.IntervalOID:
		return 16
	default:
		return -1
	}
}
