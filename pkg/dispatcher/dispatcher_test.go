package dispatcher

import (
	"testing"

	"github.com/pgsqlite/pgsqlite/pkg/translate"
)

func TestBatchIsReadOnly(t *testing.T) {
	cases := []struct {
		name string
		in   []string
		want bool
	}{
		{"all selects", []string{"SELECT 1", " SELECT 2 "}, true},
		{"with clause counts as read-only", []string{"WITH x AS (SELECT 1) SELECT * FROM x"}, true},
		{"blank entries ignored", []string{"SELECT 1", "  "}, true},
		{"write in batch", []string{"SELECT 1", "INSERT INTO t VALUES (1)"}, false},
		{"empty batch", nil, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := BatchIsReadOnly(tc.in); got != tc.want {
				t.Errorf("BatchIsReadOnly(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestTableNameHint(t *testing.T) {
	cases := map[string]string{
		"SELECT * FROM widgets WHERE id = 1": "widgets",
		"INSERT INTO orders VALUES (1)":      "orders",
		"UPDATE accounts SET a = 1":          "accounts",
		"SELECT * FROM a JOIN b ON true":     "a",
		"BEGIN":                              "",
	}
	for sql, want := range cases {
		if got := tableNameHint(sql); got != want {
			t.Errorf("tableNameHint(%q) = %q, want %q", sql, got, want)
		}
	}
}

func TestResolveFTSPlaceholder(t *testing.T) {
	res := translate.Result{
		Table: "articles",
		Statements: []string{
			"SELECT * FROM articles WHERE pgsqlite_fts_match('__pgsqlite_fts_$TABLE_body', rowid, 'fox')",
		},
		ReturningSelect: "SELECT * FROM articles WHERE pgsqlite_fts_match('__pgsqlite_fts_$TABLE_body', rowid, 'fox')",
	}
	resolveFTSPlaceholder(&res)

	want := "SELECT * FROM articles WHERE pgsqlite_fts_match('__pgsqlite_fts_articles_body', rowid, 'fox')"
	if res.Statements[0] != want {
		t.Errorf("Statements[0] = %q, want %q", res.Statements[0], want)
	}
	if res.ReturningSelect != want {
		t.Errorf("ReturningSelect = %q, want %q", res.ReturningSelect, want)
	}
}

func TestResolveFTSPlaceholderNoOpWithoutTable(t *testing.T) {
	stmt := "SELECT * FROM articles WHERE pgsqlite_fts_match('__pgsqlite_fts_$TABLE_body', rowid, 'fox')"
	res := translate.Result{Statements: []string{stmt}}
	resolveFTSPlaceholder(&res)
	if res.Statements[0] != stmt {
		t.Errorf("expected no-op when Table is empty, got %q", res.Statements[0])
	}
}

func TestDMLTag(t *testing.T) {
	cases := []struct {
		kind     translate.StmtKind
		affected int64
		want     string
	}{
		{translate.KindInsert, 3, "INSERT 0 3"},
		{translate.KindUpdate, 2, "UPDATE 2"},
		{translate.KindDelete, 1, "DELETE 1"},
		{translate.KindOther, 0, "OK"},
	}
	for _, tc := range cases {
		if got := dmlTag(tc.kind, tc.affected); got != tc.want {
			t.Errorf("dmlTag(%v, %d) = %q, want %q", tc.kind, tc.affected, got, tc.want)
		}
	}
}

func TestDDLTag(t *testing.T) {
	if got := ddlTag(translate.KindCreateTable); got != "CREATE TABLE" {
		t.Errorf("ddlTag(KindCreateTable) = %q", got)
	}
	if got := ddlTag(translate.KindDropTable); got != "DROP TABLE" {
		t.Errorf("ddlTag(KindDropTable) = %q", got)
	}
}

func TestTransactionTag(t *testing.T) {
	cases := map[translate.StmtKind]string{
		translate.KindBegin:    "BEGIN",
		translate.KindCommit:   "COMMIT",
		translate.KindRollback: "ROLLBACK",
	}
	for kind, want := range cases {
		if got := transactionTag(kind); got != want {
			t.Errorf("transactionTag(%v) = %q, want %q", kind, got, want)
		}
	}
}
