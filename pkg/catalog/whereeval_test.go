package catalog

import "testing"

func sampleRows() []Row {
	return []Row{
		{"relname": "widgets", "relkind": "r", "relpages": int64(3)},
		{"relname": "gadgets", "relkind": "r", "relpages": int64(0)},
		{"relname": "pg_type", "relkind": "v", "relpages": int64(0)},
	}
}

func TestEvaluateEquality(t *testing.T) {
	got := Evaluate(sampleRows(), "relname = 'widgets'")
	if len(got) != 1 || got[0]["relname"] != "widgets" {
		t.Fatalf("got %#v", got)
	}
}

func TestEvaluateAndOr(t *testing.T) {
	got := Evaluate(sampleRows(), "relkind = 'r' AND relpages = 0")
	if len(got) != 1 || got[0]["relname"] != "gadgets" {
		t.Fatalf("got %#v", got)
	}

	got = Evaluate(sampleRows(), "relname = 'widgets' OR relname = 'gadgets'")
	if len(got) != 2 {
		t.Fatalf("got %d rows, want 2: %#v", len(got), got)
	}
}

func TestEvaluateNot(t *testing.T) {
	got := Evaluate(sampleRows(), "NOT relkind = 'r'")
	if len(got) != 1 || got[0]["relname"] != "pg_type" {
		t.Fatalf("got %#v", got)
	}
}

func TestEvaluateIn(t *testing.T) {
	got := Evaluate(sampleRows(), "relname IN ('widgets', 'pg_type')")
	if len(got) != 2 {
		t.Fatalf("got %d rows, want 2: %#v", len(got), got)
	}
}

func TestEvaluateLike(t *testing.T) {
	got := Evaluate(sampleRows(), "relname LIKE 'g%'")
	if len(got) != 1 || got[0]["relname"] != "gadgets" {
		t.Fatalf("got %#v", got)
	}
}

func TestEvaluateIsNull(t *testing.T) {
	rows := []Row{
		{"relname": "a", "relnamespace": nil},
		{"relname": "b", "relnamespace": int64(11)},
	}
	got := Evaluate(rows, "relnamespace IS NULL")
	if len(got) != 1 || got[0]["relname"] != "a" {
		t.Fatalf("got %#v", got)
	}

	got = Evaluate(rows, "relnamespace IS NOT NULL")
	if len(got) != 1 || got[0]["relname"] != "b" {
		t.Fatalf("got %#v", got)
	}
}

func TestEvaluateEmptyWhereMatchesAll(t *testing.T) {
	got := Evaluate(sampleRows(), "")
	if len(got) != 3 {
		t.Fatalf("got %d rows, want all 3", len(got))
	}
}

func TestEvaluateUnparsableFallsBackToAll(t *testing.T) {
	got := Evaluate(sampleRows(), "relname ??? 'widgets'")
	if len(got) != 3 {
		t.Fatalf("unparsable WHERE should match every row, got %d", len(got))
	}
}

func TestEvaluateNumericComparison(t *testing.T) {
	got := Evaluate(sampleRows(), "relpages > 0")
	if len(got) != 1 || got[0]["relname"] != "widgets" {
		t.Fatalf("got %#v", got)
	}
}
