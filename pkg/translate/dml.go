package translate

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"

	pgerr "github.com/pgsqlite/pgsqlite/pkg/errors"
	"github.com/pgsqlite/pgsqlite/pkg/storage"
	"github.com/pgsqlite/pgsqlite/pkg/types"
)

func (t *Translator) translateInsert(sqlText string) (Result, error) {
	base, returningCols, hasReturning := splitReturning(sqlText)

	node, err := parseOne(base)
	if err != nil {
		return Result{}, err
	}
	ins, ok := node.Node.(*pg_query.Node_InsertStmt)
	if !ok {
		return Result{}, pgerr.New(pgerr.ErrSyntaxError, "expected INSERT").Err()
	}
	table := ins.InsertStmt.Relation.Relname

	if err := t.checkInsertNumericConstraints(table, ins.InsertStmt); err != nil {
		return Result{}, err
	}

	rewritten := t.rewriteDMLLiterals(table, base)

	res := Result{Kind: KindInsert, Statements: []string{rewritten}, Table: table}
	if hasReturning {
		res.Returning = returningCols
		res.ReturningSelect = buildInsertReturning(table, returningCols)
	}
	return res, nil
}

func (t *Translator) translateUpdate(sqlText string) (Result, error) {
	base, returningCols, hasReturning := splitReturning(sqlText)

	node, err := parseOne(base)
	if err != nil {
		return Result{}, err
	}
	upd, ok := node.Node.(*pg_query.Node_UpdateStmt)
	if !ok {
		return Result{}, pgerr.New(pgerr.ErrSyntaxError, "expected UPDATE").Err()
	}
	table := upd.UpdateStmt.Relation.Relname

	if err := t.checkUpdateNumericConstraints(table, upd.UpdateStmt); err != nil {
		return Result{}, err
	}

	rewritten := t.rewriteDMLLiterals(table, base)

	res := Result{Kind: KindUpdate, Statements: []string{rewritten}, Table: table}
	if hasReturning {
		_, whereClause := extractWhereClause(base)
		res.Returning = returningCols
		res.ReturningSelect = buildRowidCaptureSelect(table, whereClause, returningCols, true)
	}
	return res, nil
}

func (t *Translator) translateDelete(sqlText string) (Result, error) {
	base, returningCols, hasReturning := splitReturning(sqlText)

	node, err := parseOne(base)
	if err != nil {
		return Result{}, err
	}
	del, ok := node.Node.(*pg_query.Node_DeleteStmt)
	if !ok {
		return Result{}, pgerr.New(pgerr.ErrSyntaxError, "expected DELETE").Err()
	}
	table := del.DeleteStmt.Relation.Relname

	rewritten := stripCasts(base)

	res := Result{Kind: KindDelete, Statements: []string{rewritten}, Table: table}
	if hasReturning {
		_, whereClause := extractWhereClause(base)
		res.Returning = returningCols
		res.ReturningSelect = buildRowidCaptureSelect(table, whereClause, returningCols, true)
	}
	return res, nil
}

// rewriteDMLLiterals applies the INSERT/UPDATE literal rewrites: cast
// stripping, boolean normalisation, and array-literal-to-JSON conversion.
// NUMERIC(p,s) enforcement runs earlier, in checkInsertNumericConstraints/
// checkUpdateNumericConstraints, since that needs the parsed VALUES/SET
// AST rather than the rewritten SQL text this function produces.
func (t *Translator) rewriteDMLLiterals(table, sqlText string) string {
	out := stripCasts(sqlText)
	out = normalizeBooleanLiterals(out)
	out = normalizeArrayLiterals(out)
	return out
}

// checkInsertNumericConstraints validates every literal VALUES entry bound
// for a NUMERIC(p,s) column against __pgsqlite_numeric_constraints,
// rejecting precision/scale overflow with 22003 before the statement
// reaches SQLite. Non-literal expressions (subqueries, function calls,
// arithmetic) cannot be checked statically and are left for SQLite to
// store as-is.
func (t *Translator) checkInsertNumericConstraints(table string, ins *pg_query.InsertStmt) error {
	schema := t.numericSchema(table)
	if schema == nil {
		return nil
	}

	var colNames []string
	for _, c := range ins.Cols {
		if rt, ok := c.Node.(*pg_query.Node_ResTarget); ok {
			colNames = append(colNames, rt.ResTarget.Name)
		}
	}
	if ins.SelectStmt == nil {
		return nil
	}
	sel, ok := ins.SelectStmt.Node.(*pg_query.Node_SelectStmt)
	if !ok {
		return nil
	}

	for _, row := range sel.SelectStmt.ValuesLists {
		list, ok := row.Node.(*pg_query.Node_List)
		if !ok {
			continue
		}
		for i, item := range list.List.Items {
			if i >= len(colNames) {
				break
			}
			if err := checkNumericLiteral(schema, colNames[i], item); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkUpdateNumericConstraints validates each literal "col = value"
// assignment in a SET clause the same way checkInsertNumericConstraints
// does for INSERT.
func (t *Translator) checkUpdateNumericConstraints(table string, upd *pg_query.UpdateStmt) error {
	schema := t.numericSchema(table)
	if schema == nil {
		return nil
	}
	for _, tgt := range upd.TargetList {
		rt, ok := tgt.Node.(*pg_query.Node_ResTarget)
		if !ok {
			continue
		}
		if err := checkNumericLiteral(schema, rt.ResTarget.Name, rt.ResTarget.Val); err != nil {
			return err
		}
	}
	return nil
}

// numericSchema returns table's schema when the caller configured a lookup
// and the table has at least one NUMERIC/DECIMAL column, nil otherwise.
func (t *Translator) numericSchema(table string) *storage.TableSchema {
	if t.schemaLookup == nil {
		return nil
	}
	schema, ok := t.schemaLookup(table)
	if !ok || !schema.HasDecimal {
		return nil
	}
	return schema
}

// checkNumericLiteral runs types.ParseNumeric against a single assigned
// value when colName names a column carrying a numeric (precision, scale)
// constraint and node is a literal ParseNumeric can read a text form from.
func checkNumericLiteral(schema *storage.TableSchema, colName string, node *pg_query.Node) error {
	col, ok := schema.ColumnByName(colName)
	if !ok || !col.HasNumericConstraint {
		return nil
	}
	text, ok := numericLiteralText(node)
	if !ok {
		return nil
	}
	_, err := types.ParseNumeric(text, col.NumericPrecision, col.NumericScale, true)
	return err
}

// numericLiteralText extracts a bare numeric constant's text form from a
// parsed VALUES/SET expression, unwrapping an explicit cast and a leading
// unary minus. Anything else (subqueries, function calls, column
// references) is reported as not-a-literal so the caller skips validation.
func numericLiteralText(node *pg_query.Node) (string, bool) {
	if node == nil {
		return "", false
	}
	switch n := node.Node.(type) {
	case *pg_query.Node_AConst:
		switch v := n.AConst.Val.(type) {
		case *pg_query.A_Const_Ival:
			return fmt.Sprintf("%d", v.Ival.Ival), true
		case *pg_query.A_Const_Fval:
			return v.Fval.Fval, true
		case *pg_query.A_Const_Sval:
			return v.Sval.Sval, true
		}
		return "", false
	case *pg_query.Node_TypeCast:
		return numericLiteralText(n.TypeCast.Arg)
	case *pg_query.Node_AExpr:
		if n.AExpr.Name != nil && len(n.AExpr.Name) == 1 {
			if s, ok := n.AExpr.Name[0].Node.(*pg_query.Node_String_); ok && s.String_.Sval == "-" && n.AExpr.Lexpr == nil {
				if text, ok := numericLiteralText(n.AExpr.Rexpr); ok {
					return "-" + text, true
				}
			}
		}
		return "", false
	default:
		return "", false
	}
}

var boolLiteralRE = regexp.MustCompile(`(?i)\b(TRUE|FALSE)\b`)

func normalizeBooleanLiterals(sqlText string) string {
	return replaceOutsideQuotes(sqlText, boolLiteralRE, func(m string) string {
		if strings.EqualFold(m, "TRUE") {
			return "1"
		}
		return "0"
	})
}

var arrayLiteralRE = regexp.MustCompile(`'(\{[^']*\})'`)

// normalizeArrayLiterals converts a Postgres array literal '{a,b}' to its
// JSON storage form "translate array literals '{a,b}'
// into JSON [\"a\",\"b\"]".
func normalizeArrayLiterals(sqlText string) string {
	return arrayLiteralRE.ReplaceAllStringFunc(sqlText, func(m string) string {
		inner := m[2 : len(m)-2] // strip surrounding '{ }'
		values, err := types.ParseArrayText("{" + inner + "}")
		if err != nil {
			return m
		}
		jsonValues := make([]interface{}, len(values))
		for i, v := range values {
			if v == nil {
				jsonValues[i] = nil
			} else {
				jsonValues[i] = *v
			}
		}
		encoded, err := json.Marshal(jsonValues)
		if err != nil {
			return m
		}
		return "'" + strings.ReplaceAll(string(encoded), "'", "''") + "'"
	})
}

// replaceOutsideQuotes applies re's replacement only to the portions of s
// that are not inside single-quoted string literals.
func replaceOutsideQuotes(s string, re *regexp.Regexp, repl func(string) string) string {
	var b strings.Builder
	inQuote := false
	start := 0
	flush := func(end int) {
		if inQuote {
			b.WriteString(s[start:end])
		} else {
			b.WriteString(re.ReplaceAllStringFunc(s[start:end], repl))
		}
	}
	i := 0
	for i < len(s) {
		if s[i] == '\'' {
			flush(i)
			b.WriteByte('\'')
			inQuote = !inQuote
			start = i + 1
		}
		i++
	}
	flush(len(s))
	return b.String()
}

// extractWhereClause returns the text before WHERE and the WHERE
// expression text (without the WHERE keyword itself), scanning for the
// keyword outside quoted strings. Returns an empty whereClause if none is
// present (matching an unconditional UPDATE/DELETE).
func extractWhereClause(sqlText string) (before, whereClause string) {
	upper := strings.ToUpper(sqlText)
	inQuote := false
	for i := 0; i+5 <= len(sqlText); i++ {
		if sqlText[i] == '\'' {
			inQuote = !inQuote
			continue
		}
		if inQuote {
			continue
		}
		if upper[i:i+5] == "WHERE" && (i == 0 || isWordBoundary(sqlText[i-1])) &&
		(i+5 == len(sqlText) || isWordBoundary(sqlText[i+5])) {
			return strings.TrimSpace(sqlText[:i]), strings.TrimSpace(sqlText[i+5:])
		}
	}
	return sqlText, ""
}

func isWordBoundary(c byte) bool {
	return !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_')
}
