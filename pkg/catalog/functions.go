package catalog

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pgsqlite/pgsqlite/pkg/storage"
	"github.com/pgsqlite/pgsqlite/pkg/types"
)

// SubstituteFunctions rewrites the Postgres system functions
// (pg_table_is_visible, format_type, pg_get_constraintdef,
// pg_get_indexdef, pg_get_expr, pg_get_userbyid, to_regtype) into literal
// SQL the dispatcher can run directly, since none of them name a real
// SQLite function and most depend on catalog state this package already
// holds in Go rather than in a queryable table. The dispatcher calls this
// before deciding whether a statement Intercepts and before calling Handle.
func SubstituteFunctions(sqlText string) string {
	out := pgTableIsVisibleRE.ReplaceAllString(sqlText, "1")
	out = formatTypeRE.ReplaceAllStringFunc(out, replaceFormatType)
	out = pgGetUserByIDRE.ReplaceAllString(out, "'postgres'")
	out = pgGetExprRE.ReplaceAllStringFunc(out, replacePgGetExpr)
	out = toRegtypeRE.ReplaceAllStringFunc(out, replaceToRegtype)
	out = pgGetConstraintdefRE.ReplaceAllString(out, "''")
	out = pgGetIndexdefRE.ReplaceAllString(out, "''")
	return out
}

var pgTableIsVisibleRE = regexp.MustCompile(`(?i)pg_table_is_visible\s*\([^)]*\)`)

// pg_get_constraintdef/pg_get_indexdef return the DDL text that produced a
// pg_constraint/pg_index row. pgsqlite never stores the original DDL
// string (migration v5's pg_constraint/pg_attrdef/pg_index tables hold
// only structured columns), so these resolve to an empty string rather
// than fabricating plausible-looking DDL that might not match what was
// actually declared — a documented limitation, not a parse failure.
var pgGetConstraintdefRE = regexp.MustCompile(`(?i)pg_get_constraintdef\s*\([^)]*\)`)
var pgGetIndexdefRE = regexp.MustCompile(`(?i)pg_get_indexdef\s*\([^)]*\)`)

var pgGetUserByIDRE = regexp.MustCompile(`(?i)pg_get_userbyid\s*\([^)]*\)`)

var formatTypeRE = regexp.MustCompile(`(?i)format_type\s*\(\s*(\d+)\s*,\s*(-?\d+|NULL)\s*\)`)

// replaceFormatType renders format_type(oid, typmod) the way psql does:
// the bare type name, with a (precision,scale) or (length) suffix decoded
// from typmod for numeric/varchar/bpchar.
func replaceFormatType(m string) string {
	parts := formatTypeRE.FindStringSubmatch(m)
	oidVal, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return "'text'"
	}
	oid := types.OID(oidVal)
	name := types.TypeName(oid)
	if parts[2] == "NULL" || parts[2] == "-1" {
		return "'" + name + "'"
	}
	typmod, err := strconv.ParseInt(parts[2], 10, 32)
	if err != nil {
		return "'" + name + "'"
	}
	switch oid {
	case types.NumericOID:
		precision := (typmod - 4) >> 16 & 0xffff
		scale := (typmod - 4) & 0xffff
		return fmt.Sprintf("'numeric(%d,%d)'", precision, scale)
	case types.VarcharOID, types.BPCharOID:
		return fmt.Sprintf("'%s(%d)'", name, typmod-4)
	default:
		return "'" + name + "'"
	}
}

var pgGetExprRE = regexp.MustCompile(`(?i)pg_get_expr\s*\(\s*([^,]+),\s*[^)]*\)`)

// pg_get_expr(pg_node_tree, relid) decodes a stored expression tree
// (e.g. a default value or index predicate). pgsqlite's sidecar tables
// store defaults as plain SQL text already (col_default in
// __pgsqlite_schema), so the first argument IS already the rendered
// expression; this just unwraps the call.
func replacePgGetExpr(m string) string {
	parts := pgGetExprRE.FindStringSubmatch(m)
	return strings.TrimSpace(parts[1])
}

var toRegtypeRE = regexp.MustCompile(`(?i)to_regtype\s*\(\s*'([^']*)'\s*\)`)

// knownTypeNames is the set of names storage.PgTypeNameToOID resolves to
// something other than its TextOID fallback, used so to_regtype can tell
// "recognised as text" from "not a type name at all".
var knownTypeNames = map[string]bool{
	"bool": true, "boolean": true, "int2": true, "smallint": true,
	"int4": true, "integer": true, "int": true, "int8": true, "bigint": true,
	"float4": true, "real": true, "float8": true, "double precision": true,
	"numeric": true, "decimal": true, "text": true, "varchar": true,
	"bpchar": true, "char": true, "bytea": true, "uuid": true, "json": true,
	"jsonb": true, "date": true, "time": true, "timetz": true, "timestamp": true,
	"timestamptz": true, "money": true, "inet": true, "cidr": true,
	"macaddr": true, "macaddr8": true, "bit": true, "varbit": true,
	"tsvector": true, "tsquery": true,
}

// to_regtype('typename') resolves a type name to its OID, returning NULL
// for an unrecognised name per Postgres semantics (it never raises).
func replaceToRegtype(m string) string {
	parts := toRegtypeRE.FindStringSubmatch(m)
	name := strings.ToLower(strings.TrimSpace(parts[1]))
	if !knownTypeNames[name] {
		return "NULL"
	}
	return strconv.FormatUint(uint64(storage.PgTypeNameToOID(name)), 10)
}
