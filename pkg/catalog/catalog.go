package catalog

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pgsqlite/pgsqlite/pkg/log"
)

// interceptTargets are the lowercase substrings whose presence in a query
// routes it to the catalog emulator before translation
// item 3.
var interceptTargets = []string{
	"pg_catalog", "pg_type", "pg_class", "pg_attribute", "pg_namespace",
	"pg_enum", "pg_range", "pg_constraint", "pg_attrdef", "pg_index",
	"information_schema", "pg_table_is_visible", "format_type",
	"pg_get_constraintdef", "pg_get_indexdef", "pg_get_expr",
	"pg_get_userbyid", "to_regtype", "pg_database", "pg_am",
}

// Intercepts reports whether sqlText references any catalog object or
// system function the emulator handles.
func Intercepts(sqlText string) bool {
	lower := strings.ToLower(sqlText)
	for _, t := range interceptTargets {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

// Row is a fabricated catalog row: column name to value.
type Row map[string]interface{}

// Catalog answers catalog queries by reading sqlite_master and the
// sidecar metadata tables directly, dispatching on a query's substring
// content (see Intercepts/Handle), translated from SQL
// Server's sys.*/INFORMATION_SCHEMA views to Postgres's
// pg_catalog.*/information_schema.* equivalents.
type Catalog struct {
	logger *log.Logger
}

// New creates a Catalog.
func New(logger *log.Logger) *Catalog {
	return &Catalog{logger: logger}
}

// Result is a synthesised result set: an ordered column list plus rows,
// ready for the type encoder to wire-encode (every value here is already
// a plain Go string/int64/nil, OID types.TextOID/Int4OID as appropriate).
type Result struct {
	Columns []string
	Rows []Row
}

// Handle answers an intercepted query. sqlText has already had comments
// stripped and system functions substituted by SubstituteFunctions; a
// `pg_catalog.` qualifier the client wrote is still present. conn is the
// session's live SQLite connection,
// used to read sqlite_master and __pgsqlite_schema.
func (c *Catalog) Handle(ctx context.Context, conn *sql.Conn, sqlText string) (*Result, error) {
	lower := strings.ToLower(sqlText)
	where := extractWhere(sqlText)

	switch {
	case strings.Contains(lower, "pg_attribute"):
		return queryPgAttribute(ctx, conn, where)
	case strings.Contains(lower, "pg_class"):
		return queryPgClass(ctx, conn, where)
	case strings.Contains(lower, "pg_type"):
		return queryPgType(where)
	case strings.Contains(lower, "pg_namespace"):
		return queryPgNamespace(where)
	case strings.Contains(lower, "pg_enum"):
		return queryPgEnum(ctx, conn, where)
	case strings.Contains(lower, "information_schema.columns"):
		return queryInformationSchemaColumns(ctx, conn, where)
	case strings.Contains(lower, "information_schema.tables"):
		return queryInformationSchemaTables(ctx, conn, where)
	case strings.Contains(lower, "pg_constraint"), strings.Contains(lower, "pg_attrdef"), strings.Contains(lower, "pg_index"):
		// These are real tables installed by migration v5; let the
		// dispatcher fall through to direct SQLite execution instead.
		return nil, errNotFabricated
	default:
		return nil, errNotFabricated
	}
}

// errNotFabricated signals the dispatcher should run sqlText directly
// against SQLite (e.g. against a real installed compatibility view or
// table) rather than through a Go-side handler.
var errNotFabricated = catalogPassthroughError{}

type catalogPassthroughError struct{}

func (catalogPassthroughError) Error() string { return "catalog: not fabricated, run directly" }

// IsPassthrough reports whether err signals direct-execution fallback.
func IsPassthrough(err error) bool {
	_, ok := err.(catalogPassthroughError)
	return ok
}

// extractWhere returns the WHERE clause text (if any), used as input to
// the local evaluator in whereeval.go.
func extractWhere(sqlText string) string {
	lower := strings.ToLower(sqlText)
	idx := strings.Index(lower, " where ")
	if idx == -1 {
		return ""
	}
	rest := sqlText[idx+7:]
	// Truncate at a trailing clause the simple evaluator does not need to
	// see (ORDER BY/LIMIT/GROUP BY); those shapes are already ruled out of
	// fast-path/catalog-simple territory upstream.
	for _, stop := range []string{" order by ", " limit ", " group by "} {
		if i := strings.Index(strings.ToLower(rest), stop); i != -1 {
			rest = rest[:i]
		}
	}
	return strings.TrimSpace(rest)
}
