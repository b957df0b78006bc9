package translate

import (
	"testing"

	"github.com/pgsqlite/pgsqlite/pkg/storage"
)

func newTestTranslator() *Translator {
	return New(func(string) (*storage.TableSchema, bool) { return nil, false })
}

func TestTranslateSelectSimple(t *testing.T) {
	tr := newTestTranslator()
	res, err := tr.Translate("SELECT * FROM widgets WHERE id = 1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Kind != KindSelect {
		t.Fatalf("Kind = %v, want KindSelect", res.Kind)
	}
	if res.Table != "widgets" {
		t.Errorf("Table = %q, want %q", res.Table, "widgets")
	}
}

func TestExtractFromTable(t *testing.T) {
	cases := map[string]string{
		`SELECT * FROM widgets WHERE id = 1`:         "widgets",
		`SELECT a, b FROM "Orders" o JOIN x ON true`: "Orders",
		`SELECT 1`:                                   "",
	}
	for sql, want := range cases {
		if got := extractFromTable(sql); got != want {
			t.Errorf("extractFromTable(%q) = %q, want %q", sql, got, want)
		}
	}
}

func TestRewriteFTSOperatorsLeavesTablePlaceholder(t *testing.T) {
	got := rewriteFTSOperators(`SELECT * FROM articles WHERE body @@ to_tsquery('english', 'fox & hound')`)
	want := `SELECT * FROM articles WHERE pgsqlite_fts_match('__pgsqlite_fts_$TABLE_body', rowid, 'fox  AND  hound')`
	if got != want {
		t.Errorf("rewriteFTSOperators =\n%q\nwant\n%q", got, want)
	}
}

func TestTsqueryToFTS5(t *testing.T) {
	cases := map[string]string{
		`'english', 'fox & hound'`: "'fox  AND  hound'",
		`'cat | dog'`:              "'cat  OR  dog'",
		`'!spam'`:                  "' NOT spam'",
		`'run:*'`:                  "'run*'",
	}
	for in, want := range cases {
		if got := tsqueryToFTS5(in); got != want {
			t.Errorf("tsqueryToFTS5(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRewriteRegexOperators(t *testing.T) {
	cases := map[string]string{
		`name ~ 'foo.*'`:   "pgsqlite_regexp('foo.*', name)",
		`name !~ 'foo.*'`:  "NOT pgsqlite_regexp('foo.*', name)",
		`name ~* 'FOO'`:    "pgsqlite_iregexp('FOO', name)",
		`name !~* 'FOO'`:   "NOT pgsqlite_iregexp('FOO', name)",
	}
	for in, want := range cases {
		if got := rewriteRegexOperators(in); got != want {
			t.Errorf("rewriteRegexOperators(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRewriteJSONPathOperators(t *testing.T) {
	got := rewriteJSONPathOperators(`SELECT data->>'name' FROM t`)
	want := `SELECT json_extract(data, '$.' || 'name') FROM t`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestStripPgCatalogPrefix(t *testing.T) {
	got := stripPgCatalogPrefix("SELECT * FROM pg_catalog.pg_type")
	want := "SELECT * FROM pg_type"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestNormalizeBooleanLiterals(t *testing.T) {
	got := normalizeBooleanLiterals("INSERT INTO t (a) VALUES (TRUE)")
	want := "INSERT INTO t (a) VALUES (1)"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	// Inside a quoted string, TRUE must survive untouched.
	got = normalizeBooleanLiterals("INSERT INTO t (a) VALUES ('TRUE is a string')")
	want = "INSERT INTO t (a) VALUES ('TRUE is a string')"
	if got != want {
		t.Errorf("quoted literal was rewritten: got %q, want %q", got, want)
	}
}

func TestNormalizeArrayLiterals(t *testing.T) {
	got := normalizeArrayLiterals(`INSERT INTO t (a) VALUES ('{1,2,3}')`)
	want := `INSERT INTO t (a) VALUES ('["1","2","3"]')`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExtractWhereClause(t *testing.T) {
	before, where := extractWhereClause("UPDATE t SET a = 1 WHERE id = 2")
	if before != "UPDATE t SET a = 1" || where != "id = 2" {
		t.Errorf("got before=%q where=%q", before, where)
	}

	before, where = extractWhereClause("DELETE FROM t")
	if before != "DELETE FROM t" || where != "" {
		t.Errorf("no WHERE clause should return empty where, got before=%q where=%q", before, where)
	}
}
