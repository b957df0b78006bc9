package translate

import (
	"fmt"
	"regexp"
	"strings"
)

var returningRE = regexp.MustCompile(`(?is)\bRETURNING\b(.*)$`)

// splitReturning separates a RETURNING clause from the rest of the
// statement, respecting that RETURNING only ever appears once and at the
// end of INSERT/UPDATE/DELETE RETURNING handling.
func splitReturning(sqlText string) (base string, columns []string, hasReturning bool) {
	loc := returningRE.FindStringSubmatchIndex(sqlText)
	if loc == nil {
		return sqlText, nil, false
	}
	base = strings.TrimSpace(sqlText[:loc[0]])
	cols := strings.TrimSpace(sqlText[loc[2]:loc[3]])
	for _, c := range strings.Split(cols, ",") {
		columns = append(columns, strings.TrimSpace(c))
	}
	return base, columns, true
}

// buildInsertReturning produces the follow-up SELECT that implements
// RETURNING: run the base statement then SELECT <returning> FROM t
// WHERE rowid = last_insert_rowid()".
func buildInsertReturning(table string, columns []string) string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE rowid = last_insert_rowid()",
	strings.Join(columns, ", "), quoteIdent(table))
}

// buildRowidCaptureSelect produces the pre-capture SELECT UPDATE/DELETE
// RETURNING needs: the affected rowids (and, for DELETE, the full
// projection) before the mutating statement runs.
func buildRowidCaptureSelect(table, whereClause string, columns []string, includeRowid bool) string {
	proj := strings.Join(columns, ", ")
	if includeRowid {
		proj = "rowid, " + proj
	}
	sql := fmt.Sprintf("SELECT %s FROM %s", proj, quoteIdent(table))
	if whereClause != "" {
		sql += " WHERE " + whereClause
	}
	return sql
}

// BuildRowidReselectForReturning produces the post-mutation re-select by
// captured rowid list for UPDATE ... RETURNING (DELETE's rows are gone
// afterwards, so the dispatcher returns its pre-captured projection
// instead). Exported for pkg/dispatcher, which runs the mutation between
// the pre-capture SELECT and this one.
func BuildRowidReselectForReturning(table string, columns []string, rowids []int64) string {
	ids := make([]string, len(rowids))
	for i, id := range rowids {
		ids[i] = fmt.Sprintf("%d", id)
	}
	return fmt.Sprintf("SELECT %s FROM %s WHERE rowid IN (%s)",
	strings.Join(columns, ", "), quoteIdent(table), strings.Join(ids, ","))
}
