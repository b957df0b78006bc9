// Package version provides version information for pgsqlite.
//
// The version is kept in sync with version.txt in this directory.
package version

import (
	_ "embed"
	"strings"
)

//go:embed version.txt
var versionFile string

// Version is the current version of pgsqlite, embedded from version.txt.
var Version = strings.TrimSpace(versionFile)

// String returns the version string.
func String() string {
	return Version
}

// Full returns a full version string suitable for --version output.
func Full() string {
	return "pgsqlite " + Version
}

// ServerVersion returns a Postgres-compatible server_version string.
// Clients (drivers, ORMs) parse this to gate feature availability, so it
// must look like a real Postgres version even though the number itself
// is nominal.
func ServerVersion() string {
	return "16.3 (pgsqlite " + Version + ")"
}
