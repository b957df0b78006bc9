package main

import (
	"bufio"
	"crypto/tls"
	"os"
	"strings"
	"testing"

	"github.com/pgsqlite/pgsqlite/pkg/storage"
	"github.com/pgsqlite/pgsqlite/pkg/wire"
)

func captureBanner(t *testing.T, storageCfg storage.Config, wireCfg wire.Config, listeners []*wire.Listener) string {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	printBanner(w, storageCfg, wireCfg, listeners)
	w.Close()

	var out strings.Builder
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		out.WriteString(scanner.Text())
		out.WriteString("\n")
	}
	return out.String()
}

func TestPrintBannerTrustAuth(t *testing.T) {
	storageCfg := storage.Config{Database: "/tmp/test.db", JournalMode: storage.JournalWAL, Synchronous: "NORMAL"}
	out := captureBanner(t, storageCfg, wire.Config{}, nil)

	if !strings.Contains(out, "pgsqlite ") {
		t.Errorf("banner missing version line: %q", out)
	}
	if !strings.Contains(out, "/tmp/test.db") {
		t.Errorf("banner missing database path: %q", out)
	}
	if !strings.Contains(out, "Authentication: trust") {
		t.Errorf("banner should default to trust authentication: %q", out)
	}
	if strings.Contains(out, "TLS: enabled") {
		t.Errorf("banner should not mention TLS when none is configured: %q", out)
	}
}

func TestPrintBannerSCRAMAndTLS(t *testing.T) {
	storageCfg := storage.Config{Database: ":memory:", JournalMode: storage.JournalWAL, Synchronous: "NORMAL"}
	wireCfg := wire.Config{RequireSCRAM: true, TLSConfig: &tls.Config{MinVersion: tls.VersionTLS12}}
	out := captureBanner(t, storageCfg, wireCfg, nil)

	if !strings.Contains(out, "Authentication: SCRAM-SHA-256") {
		t.Errorf("banner should mention SCRAM when RequireSCRAM is set: %q", out)
	}
	if !strings.Contains(out, "TLS: enabled") {
		t.Errorf("banner should mention TLS when a TLSConfig is set: %q", out)
	}
}
