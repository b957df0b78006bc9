// Package dispatcher is the single entry point every statement text
// passes through after arriving over the wire: strip comments, check
// catalog interception, check fast-path eligibility, translate,
// execute, and (for DML with RETURNING) run the follow-up SELECT. The
// dispatch loop generalises a postgres listener's handleQuery from a
// single SQL-Server-shaped executor to pgsqlite's catalog/fast-path/
// translate three-way split.
package dispatcher

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/pgsqlite/pgsqlite/pkg/catalog"
	pgerr "github.com/pgsqlite/pgsqlite/pkg/errors"
	"github.com/pgsqlite/pgsqlite/pkg/log"
	"github.com/pgsqlite/pgsqlite/pkg/storage"
	"github.com/pgsqlite/pgsqlite/pkg/translate"
)

// Dispatcher ties the catalog emulator, fast-path classifier, and SQL
// translator to a live SQLite connection.
type Dispatcher struct {
	engine *storage.Engine
	catalog *catalog.Catalog
	translator *translate.Translator
	logger *log.Logger
}

// New creates a Dispatcher bound to engine's shared caches.
func New(engine *storage.Engine, logger *log.Logger) *Dispatcher {
	d := &Dispatcher{engine: engine, logger: logger}
	d.catalog = catalog.New(logger)
	d.translator = translate.New(func(table string) (*storage.TableSchema, bool) {
		if schema, ok := engine.Schema.Get(table); ok {
			return schema, true
		}
		return nil, false
	})
	return d
}

// MarkReadOnly implements the read-only optimizer hint SPEC_FULL.md §5
// adds, grounded on original_source/src/optimization/read_only_optimizer.rs:
// the wire layer calls this once per Simple Query batch, setting
// PRAGMA query_only for the duration of a batch containing only SELECTs,
// restoring it before the next statement that writes. Failure to set the
// pragma is not fatal; it is a safety net, not a correctness requirement.
func (d *Dispatcher) MarkReadOnly(ctx context.Context, conn *sql.Conn, readOnly bool) {
	state := "OFF"
	if readOnly {
		state = "ON"
	}
	_, _ = conn.ExecContext(ctx, "PRAGMA query_only = "+state)
}

// BatchIsReadOnly reports whether every statement in a Simple Query batch
// (already split on ';' by the caller) begins with SELECT or WITH, the condition under
// which MarkReadOnly(ctx, conn, true) is safe to apply for the batch.
func BatchIsReadOnly(statements []string) bool {
	for _, stmt := range statements {
		trimmed := strings.TrimSpace(stmt)
		if trimmed == "" {
			continue
		}
		upper := strings.ToUpper(trimmed)
		if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
			return false
		}
	}
	return true
}

// Outcome is what the dispatcher hands back to the wire layer for one
// executed statement: either a row set (SELECT, catalog query, RETURNING)
// or a command tag (INSERT/UPDATE/DELETE/DDL/transaction control).
type Outcome struct {
	Kind translate.StmtKind
	Columns []string
	Rows [][]interface{}

	CommandTag string
	RowsAffected int64
}

// Dispatch runs sqlText against conn, routing it through the catalog
// emulator, the fast path, or the translator in that order.
func (d *Dispatcher) Dispatch(ctx context.Context, conn *sql.Conn, sqlText string) (*Outcome, error) {
	stripped := stripComments(sqlText)
	substituted := catalog.SubstituteFunctions(stripped)

	if catalog.Intercepts(substituted) {
		result, err := d.catalog.Handle(ctx, conn, substituted)
		if err == nil {
			return &Outcome{Kind: translate.KindSelect, Columns: result.Columns, Rows: rowsToSlices(result.Columns, result.Rows)}, nil
		}
		if !catalog.IsPassthrough(err) {
			return nil, err
		}
		// Falls through to direct execution below (pg_constraint/
		// pg_attrdef/pg_index: real tables, not fabricated views).
	}

	if schema, ok := d.engine.Schema.Get(tableNameHint(substituted)); ok {
		if FastPathEligible(substituted, schema) {
			return d.execute(ctx, conn, substituted)
		}
	}

	res, err := d.translator.Translate(substituted)
	if err != nil {
		return nil, err
	}
	resolveFTSPlaceholder(&res)
	return d.runTranslated(ctx, conn, res)
}

// resolveFTSPlaceholder splices the base table translate.Translate found
// into the $TABLE placeholder rewriteFTSOperators leaves behind in an
// FTS5 shadow-table reference (translate.select.go can't know its own
// FROM table at the point it rewrites the `@@` operator). A no-op for
// every statement that doesn't contain the placeholder.
func resolveFTSPlaceholder(res *translate.Result) {
	if res.Table == "" {
		return
	}
	for i, stmt := range res.Statements {
		if strings.Contains(stmt, "$TABLE") {
			res.Statements[i] = strings.ReplaceAll(stmt, "$TABLE", res.Table)
		}
	}
	if strings.Contains(res.ReturningSelect, "$TABLE") {
		res.ReturningSelect = strings.ReplaceAll(res.ReturningSelect, "$TABLE", res.Table)
	}
}

// runTranslated executes every statement translate.Result carries, handling
// RETURNING's two-statement shape and DDL's cache invalidation.
func (d *Dispatcher) runTranslated(ctx context.Context, conn *sql.Conn, res translate.Result) (*Outcome, error) {
	switch res.Kind {
	case translate.KindCreateTable, translate.KindDropTable:
		for _, stmt := range res.Statements {
			if _, err := conn.ExecContext(ctx, stmt); err != nil {
				return nil, wrapSQLiteError(err, stmt)
			}
		}
		for _, table := range res.Invalidate {
			d.engine.Schema.Invalidate(table)
			d.engine.Queries.InvalidateSQL(table)
		}
		d.engine.BumpSchemaVersion()
		return &Outcome{Kind: res.Kind, CommandTag: ddlTag(res.Kind)}, nil

	case translate.KindCreateIndex:
		if _, err := conn.ExecContext(ctx, res.Statements[0]); err != nil {
			return nil, wrapSQLiteError(err, res.Statements[0])
		}
		d.engine.BumpSchemaVersion()
		return &Outcome{Kind: res.Kind, CommandTag: "CREATE INDEX"}, nil

	case translate.KindBegin, translate.KindCommit, translate.KindRollback:
		if _, err := conn.ExecContext(ctx, res.Statements[0]); err != nil {
			return nil, wrapSQLiteError(err, res.Statements[0])
		}
		return &Outcome{Kind: res.Kind, CommandTag: transactionTag(res.Kind)}, nil

	case translate.KindInsert, translate.KindUpdate, translate.KindDelete:
		return d.runDML(ctx, conn, res)

	default:
		return d.execute(ctx, conn, res.Statements[0])
	}
}

// runDML executes an INSERT/UPDATE/DELETE. For UPDATE ... RETURNING it
// captures the affected rowids first (the WHERE clause may no longer match
// after the mutation runs) and re-selects those rows afterwards; for
// DELETE ... RETURNING it reads the returning projection before the rows
// are deleted.
func (d *Dispatcher) runDML(ctx context.Context, conn *sql.Conn, res translate.Result) (*Outcome, error) {
	var preRowids []int64
	if res.ReturningSelect != "" && res.Kind == translate.KindUpdate {
		ids, err := captureRowids(ctx, conn, res)
		if err != nil {
			return nil, err
		}
		preRowids = ids
	}
	var deletedCols []string
	var deletedRows [][]interface{}
	if res.ReturningSelect != "" && res.Kind == translate.KindDelete {
		cols, rows, err := query(ctx, conn, res.ReturningSelect)
		if err != nil {
			return nil, err
		}
		deletedCols = cols[1:] // drop the leading rowid column
		for _, row := range rows {
			deletedRows = append(deletedRows, row[1:])
		}
	}

	result, err := conn.ExecContext(ctx, res.Statements[0])
	if err != nil {
		return nil, wrapSQLiteError(err, res.Statements[0])
	}
	affected, _ := result.RowsAffected()

	if res.ReturningSelect == "" {
		return &Outcome{Kind: res.Kind, CommandTag: dmlTag(res.Kind, affected), RowsAffected: affected}, nil
	}

	if res.Kind == translate.KindDelete {
		return &Outcome{Kind: res.Kind, Columns: deletedCols, Rows: deletedRows, CommandTag: dmlTag(res.Kind, affected), RowsAffected: affected}, nil
	}

	selectSQL := res.ReturningSelect
	if res.Kind == translate.KindUpdate {
		selectSQL = translate.BuildRowidReselectForReturning(res.Table, res.Returning, preRowids)
	}
	cols, rows, err := query(ctx, conn, selectSQL)
	if err != nil {
		return nil, err
	}
	return &Outcome{Kind: res.Kind, Columns: cols, Rows: rows, CommandTag: dmlTag(res.Kind, affected), RowsAffected: affected}, nil
}

// captureRowids runs the pre-mutation SELECT rowid FROM table WHERE ...
// res.ReturningSelect already carries (built by translate.buildRowidCaptureSelect)
// and returns the matched rowids.
func captureRowids(ctx context.Context, conn *sql.Conn, res translate.Result) ([]int64, error) {
	rows, err := conn.QueryContext(ctx, res.ReturningSelect)
	if err != nil {
		return nil, wrapSQLiteError(err, res.ReturningSelect)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var ids []int64
	for rows.Next() {
		var id int64
		ptrs := make([]interface{}, len(cols))
		ptrs[0] = &id
		for i := 1; i < len(cols); i++ {
			var discard interface{}
			ptrs[i] = &discard
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// execute runs a single statement directly (fast path or pass-through
// KindOther), distinguishing SELECT (row-returning) from everything else
// by sniffing the first keyword, since at this point it is guaranteed to
// be a single simple statement.
func (d *Dispatcher) execute(ctx context.Context, conn *sql.Conn, sqlText string) (*Outcome, error) {
	trimmed := strings.TrimSpace(sqlText)
	if len(trimmed) >= 6 && strings.EqualFold(trimmed[:6], "select") {
		cols, rows, err := query(ctx, conn, sqlText)
		if err != nil {
			return nil, err
		}
		return &Outcome{Kind: translate.KindSelect, Columns: cols, Rows: rows}, nil
	}

	result, err := conn.ExecContext(ctx, sqlText)
	if err != nil {
		return nil, wrapSQLiteError(err, sqlText)
	}
	affected, _ := result.RowsAffected()
	kind := translate.KindOther
	switch {
	case strings.HasPrefix(strings.ToUpper(trimmed), "INSERT"):
		kind = translate.KindInsert
	case strings.HasPrefix(strings.ToUpper(trimmed), "UPDATE"):
		kind = translate.KindUpdate
	case strings.HasPrefix(strings.ToUpper(trimmed), "DELETE"):
		kind = translate.KindDelete
	}
	return &Outcome{Kind: kind, CommandTag: dmlTag(kind, affected), RowsAffected: affected}, nil
}

// query runs sqlText and drains every row into [][]interface{}, the shape
// pkg/wire's DataRow encoder consumes directly.
func query(ctx context.Context, conn *sql.Conn, sqlText string) ([]string, [][]interface{}, error) {
	rows, err := conn.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, nil, wrapSQLiteError(err, sqlText)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var out [][]interface{}
	for rows.Next() {
		vals := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		out = append(out, vals)
	}
	return cols, out, rows.Err()
}

// rowsToSlices converts a catalog.Result's Row maps into the ordered
// [][]interface{} shape query() produces, using Columns for order.
func rowsToSlices(columns []string, rows []catalog.Row) [][]interface{} {
	out := make([][]interface{}, len(rows))
	for i, r := range rows {
		vals := make([]interface{}, len(columns))
		for j, c := range columns {
			vals[j] = r[c]
		}
		out[i] = vals
	}
	return out
}

// tableNameHint extracts the first identifier following FROM/INTO/UPDATE,
// a cheap heuristic used only to decide whether a cached TableSchema is
// available before running the (more expensive) FastPathEligible check.
func tableNameHint(sqlText string) string {
	upper := strings.ToUpper(sqlText)
	for _, kw := range []string{" FROM ", " INTO ", "UPDATE ", " JOIN "} {
		if idx := strings.Index(upper, kw); idx != -1 {
			rest := strings.TrimSpace(sqlText[idx+len(kw):])
			end := 0
			for end < len(rest) && (isIdentByte(rest[end])) {
				end++
			}
			if end > 0 {
				return rest[:end]
			}
		}
	}
	return ""
}

func isIdentByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_'
}

func ddlTag(kind translate.StmtKind) string {
	if kind == translate.KindCreateTable {
		return "CREATE TABLE"
	}
	return "DROP TABLE"
}

func transactionTag(kind translate.StmtKind) string {
	switch kind {
	case translate.KindBegin:
		return "BEGIN"
	case translate.KindCommit:
		return "COMMIT"
	default:
		return "ROLLBACK"
	}
}

func dmlTag(kind translate.StmtKind, affected int64) string {
	switch kind {
	case translate.KindInsert:
		return "INSERT 0 " + strconv.FormatInt(affected, 10)
	case translate.KindUpdate:
		return "UPDATE " + strconv.FormatInt(affected, 10)
	case translate.KindDelete:
		return "DELETE " + strconv.FormatInt(affected, 10)
	default:
		return "OK"
	}
}

// wrapSQLiteError maps a mattn/go-sqlite3 error into pgsqlite's SQLSTATE
// taxonomy constraint-violation mapping table.
func wrapSQLiteError(err error, sqlText string) error {
	sqliteErr, ok := err.(sqlite3.Error)
	if !ok {
		return pgerr.Wrap(err, pgerr.ErrInternalError, "sqlite execution failed").WithDetail(sqlText).Err()
	}
	switch sqliteErr.Code {
	case sqlite3.ErrConstraint:
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return pgerr.Wrap(err, pgerr.ErrUniqueViolation, "duplicate key value violates unique constraint").Err()
		case sqlite3.ErrConstraintNotNull:
			return pgerr.Wrap(err, pgerr.ErrNotNullViolation, "null value violates not-null constraint").Err()
		case sqlite3.ErrConstraintForeignKey:
			return pgerr.Wrap(err, pgerr.ErrForeignKeyViolation, "insert or update violates foreign key constraint").Err()
		case sqlite3.ErrConstraintCheck:
			return pgerr.Wrap(err, pgerr.ErrCheckViolation, "new row violates check constraint").Err()
		default:
			return pgerr.Wrap(err, pgerr.ErrIntegrityConstraintViolation, "constraint violation").Err()
		}
	case sqlite3.ErrBusy, sqlite3.ErrLocked:
		return pgerr.Wrap(err, pgerr.ErrConnectionException, "database is locked").Err()
	case sqlite3.ErrInterrupt:
		return pgerr.Wrap(err, pgerr.ErrQueryCanceled, "canceling statement due to user request").Err()
	default:
		return pgerr.Wrap(err, pgerr.ErrSyntaxError, fmt.Sprintf("sqlite error: %v", sqliteErr)).WithDetail(sqlText).Err()
	}
}
