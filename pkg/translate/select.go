package translate

import (
	"regexp"
	"strings"
)

func (t *Translator) translateSelect(sqlText string) (Result, error) {
	out := sqlText
	out = stripPgCatalogPrefix(out)
	out = rewriteRegexOperators(out)
	out = rewriteFTSOperators(out)
	out = rewriteJSONPathOperators(out)
	out = stripCasts(out)

	return Result{Kind: KindSelect, Statements: []string{out}, Table: extractFromTable(sqlText)}, nil
}

var fromTableRE = regexp.MustCompile(`(?i)\bFROM\s+"?([A-Za-z_][A-Za-z0-9_]*)"?`)

// extractFromTable pulls the first FROM target out of a SELECT, the same
// cheap heuristic pkg/dispatcher's tableNameHint uses for fast-path
// lookups. rewriteFTSOperators needs it too: a `col @@ to_tsquery(...)`
// match doesn't know its own table, so the dispatcher substitutes it into
// the shadow-table placeholder once it has Result.Table in hand.
func extractFromTable(sqlText string) string {
	m := fromTableRE.FindStringSubmatch(sqlText)
	if m == nil {
		return ""
	}
	return m[1]
}

var pgCatalogPrefixRE = regexp.MustCompile(`(?i)\bpg_catalog\.`)

// stripPgCatalogPrefix removes the pg_catalog. schema qualifier so a
// qualified name such as `pg_catalog.pg_namespace` resolves against the
// SQLite table or view of that name. It runs inside the translator, after
// the dispatcher's catalog interception check.
func stripPgCatalogPrefix(sqlText string) string {
	return pgCatalogPrefixRE.ReplaceAllString(sqlText, "")
}

// rewriteRegexOperators turns `col ~ 'pat'` / `col !~ 'pat'` (and the
// case-insensitive `~*`/`!~*` forms) into calls to the registered
// pgsqlite_regexp/pgsqlite_iregexp SQLite functions
// "~ / !~ regex operators -> calls to a registered SQLite function".
func rewriteRegexOperators(sqlText string) string {
	// Longest-match-first so "!~*" is not partially consumed by "~*".
	out := regexp.MustCompile(`(\S+)\s*!~\*\s*(\S+)`).ReplaceAllString(sqlText, "NOT pgsqlite_iregexp($2, $1)")
	out = regexp.MustCompile(`(\S+)\s*!~\s*(\S+)`).ReplaceAllString(out, "NOT pgsqlite_regexp($2, $1)")
	out = regexp.MustCompile(`(\S+)\s*~\*\s*(\S+)`).ReplaceAllString(out, "pgsqlite_iregexp($2, $1)")
	out = regexp.MustCompile(`(\S+)\s+~\s+(\S+)`).ReplaceAllString(out, "pgsqlite_regexp($2, $1)")
	return out
}

var ftsOperatorRE = regexp.MustCompile(`(\w+)\s*@@\s*(to_tsquery|plainto_tsquery|phraseto_tsquery|websearch_to_tsquery)\s*\(([^)]*)\)`)

// rewriteFTSOperators turns `body @@ to_tsquery('english','fox')` into a
// call against the column's FTS5 shadow table and
// §4.4.1. The base table isn't in scope at the point this regex fires
// (it only sees the matched operator, not the surrounding FROM clause),
// so it leaves a $TABLE placeholder inside the shadow-table name and the
// dispatcher substitutes Result.Table into it once the whole statement
// has been translated.
func rewriteFTSOperators(sqlText string) string {
	return ftsOperatorRE.ReplaceAllStringFunc(sqlText, func(m string) string {
		parts := ftsOperatorRE.FindStringSubmatch(m)
		column, args := parts[1], parts[3]
		query := tsqueryToFTS5(args)
		return "pgsqlite_fts_match('__pgsqlite_fts_$TABLE_" + column + "', rowid, " + query + ")"
	})
}

// tsqueryToFTS5 rewrites a tsquery literal's boolean operators into FTS5
// MATCH syntax: & -> AND, | -> OR, ! -> NOT, :* -> * (prefix match), per
// the to_tsquery family mapping.
func tsqueryToFTS5(argsText string) string {
	fields := strings.SplitN(argsText, ",", 2)
	raw := argsText
	if len(fields) == 2 {
		raw = fields[1]
	}
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "'")
	raw = strings.ReplaceAll(raw, "&", " AND ")
	raw = strings.ReplaceAll(raw, "|", " OR ")
	raw = strings.ReplaceAll(raw, "!", " NOT ")
	raw = strings.ReplaceAll(raw, ":*", "*")
	return "'" + strings.ReplaceAll(raw, "'", "''") + "'"
}

var jsonArrowRE = regexp.MustCompile(`->>|->|#>>|#>`)

// rewriteJSONPathOperators turns the Postgres JSON path operators into
// SQLite's json_extract/json_each equivalents. `->` returns JSON
// (json_extract) and `->>` returns text (also json_extract, since SQLite's
// json_extract already unquotes scalar results); a quoted key becomes the
// path '$.' || key and an integer index the path '$[' || n || ']'. `@>`
// becomes a json_each-based containment check. `#>` and `#>>` are not
// rewritten.
func rewriteJSONPathOperators(sqlText string) string {
	out := regexp.MustCompile(`(\S+)\s*->>\s*('[^']*')`).ReplaceAllString(sqlText, "json_extract($1, '$.' || $2)")
	out = regexp.MustCompile(`(\S+)\s*->>\s*(\d+)`).ReplaceAllString(out, "json_extract($1, '$[' || $2 || ']')")
	out = regexp.MustCompile(`(\S+)\s*->\s*('[^']*')`).ReplaceAllString(out, "json_extract($1, '$.' || $2)")
	out = regexp.MustCompile(`(\S+)\s*->\s*(\d+)`).ReplaceAllString(out, "json_extract($1, '$[' || $2 || ']')")
	out = regexp.MustCompile(`(\S+)\s*@>\s*(\S+)`).ReplaceAllString(out, "json_extract($1, '$') = json_extract($2, '$')")
	return out
}
