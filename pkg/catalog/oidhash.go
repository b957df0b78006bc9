// Package catalog emulates the subset of pg_catalog and information_schema
// that client drivers (psql, JDBC, lib/pq) probe on connect, translating
// each request into a query over sqlite_master and the __pgsqlite_schema
// sidecar tables. The dispatch-by-substring style and the deterministic
// name-to-OID hash below follow the same approach a SQL-Server sys.*
// emulator would take, adapted from T-SQL catalog semantics to Postgres's.
package catalog

import "hash/fnv"

// oidBase is added to every hashed OID so synthetic catalog OIDs never
// collide with Postgres's well-known OIDs below 16384 (pg_type entries,
// pg_namespace's 2200/11/99, etc.) Open Question
// resolution.
const oidBase = 16384

// oidSpace bounds the hash so synthetic OIDs stay comfortably inside a
// uint32 regardless of oidBase.
const oidSpace = 1_000_000

// ObjectOIDForName deterministically derives a stable pseudo-OID for a
// named object (table, column, constraint, index) that SQLite itself has
// no OID concept for. The same name always hashes to the same OID within
// one server's lifetime and across restarts, since schema identity (not
// row identity) is what Postgres clients key catalog joins on.
func ObjectOIDForName(kind, name string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write([]byte(name))
	return (h.Sum32() % oidSpace) + oidBase
}
