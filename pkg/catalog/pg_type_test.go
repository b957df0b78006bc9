package catalog

import (
	"testing"

	"github.com/pgsqlite/pgsqlite/pkg/types"
)

func TestQueryPgTypeContainsBool(t *testing.T) {
	res, err := queryPgType("")
	if err != nil {
		t.Fatalf("queryPgType: %v", err)
	}
	var found Row
	for _, r := range res.Rows {
		if r["oid"] == int64(types.BoolOID) {
			found = r
			break
		}
	}
	if found == nil {
		t.Fatalf("bool OID not present in pg_type rows")
	}
	if found["typname"] != "bool" {
		t.Errorf("typname = %v, want bool", found["typname"])
	}
	if found["typcategory"] != "B" {
		t.Errorf("typcategory = %v, want B", found["typcategory"])
	}
}

func TestQueryPgTypeArrayCategory(t *testing.T) {
	res, err := queryPgType("")
	if err != nil {
		t.Fatalf("queryPgType: %v", err)
	}
	for _, r := range res.Rows {
		if r["oid"] == int64(types.TextArrayOID) {
			if r["typcategory"] != "A" {
				t.Errorf("typcategory for an array OID = %v, want A", r["typcategory"])
			}
			return
		}
	}
	t.Fatalf("text array OID not present in pg_type rows")
}

func TestQueryPgTypeWhereFilters(t *testing.T) {
	res, err := queryPgType("typname = 'bool'")
	if err != nil {
		t.Fatalf("queryPgType: %v", err)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("expected exactly 1 row for typname = bool, got %d", len(res.Rows))
	}
}

func TestElementToArrayOID(t *testing.T) {
	arr, ok := elementToArrayOID(types.Int4OID)
	if !ok || arr != types.Int4ArrayOID {
		t.Errorf("elementToArrayOID(Int4OID) = %v, %v; want %v, true", arr, ok, types.Int4ArrayOID)
	}
	if _, ok := elementToArrayOID(types.Int4ArrayOID); ok {
		t.Errorf("an array OID itself should have no further array mapping")
	}
}

func TestTypLen(t *testing.T) {
	cases := map[types.OID]int{
		types.BoolOID: 1,
		types.Int2OID: 2,
		types.Int4OID: 4,
		types.Int8OID: 8,
		types.UUIDOID: 16,
		types.TextOID: -1,
	}
	for oid, want := range cases {
		if got := typLen(oid); got != want {
			t.Errorf("typLen(%v) = %d, want %d", oid, got, want)
		}
	}
}
