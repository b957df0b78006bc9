package main

import "testing"

func TestParseSCRAMUsers(t *testing.T) {
	got := parseSCRAMUsers([]string{"alice=secret", "bob=hunter2", "malformed"})
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d: %#v", len(got), got)
	}
	if got["alice"] != "secret" || got["bob"] != "hunter2" {
		t.Errorf("unexpected map contents: %#v", got)
	}
	if _, ok := got["malformed"]; ok {
		t.Errorf("entry without '=' should have been skipped")
	}
}

func TestCertDirFor(t *testing.T) {
	cases := map[string]string{
		":memory:":            ".",
		"":                    ".",
		"/var/lib/pgsqlite.db": "/var/lib",
	}
	for in, want := range cases {
		if got := certDirFor(in); got != want {
			t.Errorf("certDirFor(%q) = %q, want %q", in, got, want)
		}
	}
}
