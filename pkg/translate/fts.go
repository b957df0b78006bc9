package translate

import (
	"fmt"
	"regexp"
)

// FTSShadowTable returns the deterministic shadow-table name for a
// tsvector column.
func FTSShadowTable(table, column string) string {
	return fmt.Sprintf("__pgsqlite_fts_%s_%s", table, column)
}

var toTSVectorRE = regexp.MustCompile(`(?i)to_tsvector\s*\(\s*(?:'[^']*'\s*,\s*)?([^)]*)\)`)

// ExtractTSVectorContent pulls the text argument out of a to_tsvector(...)
// call appearing in an INSERT/UPDATE value list, returning the plain
// content expression to store both in the parent TEXT column (as the
// original call result is never materialised by SQLite) and in the FTS5
// shadow table's content column.
func ExtractTSVectorContent(valueExpr string) (content string, ok bool) {
	m := toTSVectorRE.FindStringSubmatch(valueExpr)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// BuildFTSShadowInsert produces the paired insert into a tsvector column's
// FTS5 shadow table, keyed by the parent row's rowid:
// "Inserts/updates of the parent row trigger a paired insert/delete keyed
// by rowid."
func BuildFTSShadowInsert(shadowTable string, rowid string, content string) string {
	return fmt.Sprintf("INSERT INTO %s (rowid, content, weights, lexemes) VALUES (%s, %s, '', '')",
	quoteIdent(shadowTable), rowid, content)
}

// BuildFTSShadowDelete removes a shadow row before re-inserting it on
// UPDATE, or permanently on DELETE of the parent row.
func BuildFTSShadowDelete(shadowTable string, rowid string) string {
	return fmt.Sprintf("DELETE FROM %s WHERE rowid = %s", quoteIdent(shadowTable), rowid)
}
