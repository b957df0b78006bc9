package storage

import "testing"

func TestMigrationsAreOrderedAndVersioned(t *testing.T) {
	ms := migrations()
	if len(ms) == 0 {
		t.Fatalf("expected at least one migration")
	}
	for i, m := range ms {
		if m.Version != int64(i+1) {
			t.Errorf("migration %d: Version = %d, want %d (migrations must be contiguous, ascending)", i, m.Version, i+1)
		}
		if m.Name == "" {
			t.Errorf("migration %d has no Name", m.Version)
		}
		if len(m.Up) == 0 {
			t.Errorf("migration %d (%s) has an empty Up batch", m.Version, m.Name)
		}
	}
}

func TestMigrationsNamesUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, m := range migrations() {
		if seen[m.Name] {
			t.Errorf("duplicate migration name %q", m.Name)
		}
		seen[m.Name] = true
	}
}

func TestCatalogViewStatementsNonEmpty(t *testing.T) {
	stmts := catalogViewStatements()
	if len(stmts) == 0 {
		t.Fatalf("expected catalog view statements")
	}
	for i, s := range stmts {
		if s == "" {
			t.Errorf("statement %d is empty", i)
		}
	}
}
