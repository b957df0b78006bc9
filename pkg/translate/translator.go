// Package translate rewrites incoming Postgres SQL into the SQLite
// statement(s) that preserve its semantics. DDL is parsed with
// github.com/pganalyze/pg_query_go/v6 for a real AST instead of a
// strings.Split/strings.Fields column scanner, which tends to mishandle
// nested parens in column definitions. DML/SELECT rewriting stays
// textual and pattern-driven, since those rewrites are a fixed list of
// substitutions rather than a full relational rewrite.
package translate

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"

	pgerr "github.com/pgsqlite/pgsqlite/pkg/errors"
	"github.com/pgsqlite/pgsqlite/pkg/storage"
)

// StmtKind classifies the translated statement for CommandComplete tag
// generation and RETURNING handling in pkg/dispatcher.
type StmtKind int

const (
KindOther StmtKind = iota
KindSelect
KindInsert
KindUpdate
KindDelete
KindCreateTable
KindDropTable
KindCreateIndex
KindBegin
KindCommit
KindRollback
)

// Result is everything the dispatcher needs to execute a translated
// statement and report it back to the client correctly.
type Result struct {
	Kind StmtKind
	Statements []string // SQLite statements to run, in order
	Table string // base table, when known

	// RETURNING handling (see returning.go)
	Returning []string
	ReturningSelect string // INSERT: SELECT run after Statements[0]; UPDATE/DELETE: capture SELECT run before it

	// Invalidation: tables whose schema/query caches should be dropped
	// after this statement runs (DDL only).
	Invalidate []string
}

// Translator holds no mutable state; schemaLookup supplies the per-table
// metadata (column types, constraints) DML/SELECT rewriting needs.
type Translator struct {
	schemaLookup func(table string) (*storage.TableSchema, bool)
}

// New creates a Translator that consults lookup for table schema during
// DML/SELECT rewriting (e.g. to recognise a numeric column's scale).
func New(lookup func(table string) (*storage.TableSchema, bool)) *Translator {
	return &Translator{schemaLookup: lookup}
}

// Translate dispatches sqlText to the appropriate rewrite path.
func (t *Translator) Translate(sqlText string) (Result, error) {
	trimmed := strings.TrimSpace(sqlText)
	upper := strings.ToUpper(trimmed)

	switch {
	case strings.HasPrefix(upper, "BEGIN") || strings.HasPrefix(upper, "START TRANSACTION"):
		return Result{Kind: KindBegin, Statements: []string{"BEGIN"}}, nil
	case strings.HasPrefix(upper, "COMMIT") || strings.HasPrefix(upper, "END"):
		return Result{Kind: KindCommit, Statements: []string{"COMMIT"}}, nil
	case strings.HasPrefix(upper, "ROLLBACK"):
		return Result{Kind: KindRollback, Statements: []string{"ROLLBACK"}}, nil
	case strings.HasPrefix(upper, "CREATE TABLE"):
		return t.translateCreateTable(trimmed)
	case strings.HasPrefix(upper, "DROP TABLE"):
		return t.translateDropTable(trimmed)
	case strings.HasPrefix(upper, "CREATE INDEX") || strings.HasPrefix(upper, "CREATE UNIQUE INDEX"):
		return Result{Kind: KindCreateIndex, Statements: []string{trimmed}}, nil
	case strings.HasPrefix(upper, "INSERT"):
		return t.translateInsert(trimmed)
	case strings.HasPrefix(upper, "UPDATE"):
		return t.translateUpdate(trimmed)
	case strings.HasPrefix(upper, "DELETE"):
		return t.translateDelete(trimmed)
	case strings.HasPrefix(upper, "SELECT") || strings.HasPrefix(upper, "WITH"):
		return t.translateSelect(trimmed)
	default:
		return Result{Kind: KindOther, Statements: []string{trimmed}}, nil
	}
}

// parseOne parses sqlText and returns its single top-level statement node,
// erroring with a 42601 syntax-error code (matching the
// "Syntax / unimplemented" category) when pg_query_go rejects the text or
// it contains more than one statement.
func parseOne(sqlText string) (*pg_query.Node, error) {
	tree, err := pg_query.Parse(sqlText)
	if err != nil {
		return nil, pgerr.New(pgerr.ErrSyntaxError, fmt.Sprintf("invalid SQL: %v", err)).Err()
	}
	if len(tree.Stmts) != 1 {
		return nil, pgerr.New(pgerr.ErrSyntaxError, "expected exactly one statement").Err()
	}
	return tree.Stmts[0].Stmt, nil
}
