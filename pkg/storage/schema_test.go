package storage

import (
	"testing"

	"github.com/pgsqlite/pgsqlite/pkg/types"
)

func TestTableSchemaColumnByName(t *testing.T) {
	ts := &TableSchema{Name: "widgets", Columns: []ColumnSchema{
		{Name: "id", PgType: "int4"},
		{Name: "price", PgType: "numeric"},
	}}
	c, ok := ts.ColumnByName("price")
	if !ok || c.PgType != "numeric" {
		t.Fatalf("ColumnByName(price) = %+v, %v", c, ok)
	}
	if _, ok := ts.ColumnByName("missing"); ok {
		t.Fatalf("expected miss for nonexistent column")
	}
}

func TestRecomputeBloomFlags(t *testing.T) {
	ts := &TableSchema{Columns: []ColumnSchema{
		{PgType: "numeric"},
		{PgType: "timestamptz"},
		{PgType: "jsonb"},
		{PgType: "tsvector"},
		{PgType: "int4[]"},
	}}
	ts.recomputeBloom()
	if !ts.HasDecimal || !ts.HasDatetime || !ts.HasJSON || !ts.HasFTS || !ts.HasArray {
		t.Errorf("expected all bloom flags set, got %+v", ts)
	}
	if ts.HasEnum {
		t.Errorf("HasEnum should be false: no column declared an enum type")
	}
}

func TestSchemaCachePutGetInvalidate(t *testing.T) {
	c := NewSchemaCache()
	if _, ok := c.Get("widgets"); ok {
		t.Fatalf("expected miss on empty cache")
	}

	c.Put(&TableSchema{Name: "widgets", Columns: []ColumnSchema{{PgType: "numeric"}}})
	ts, ok := c.Get("widgets")
	if !ok {
		t.Fatalf("expected hit after Put")
	}
	if !ts.HasDecimal {
		t.Errorf("Put should have recomputed bloom flags")
	}

	c.Invalidate("widgets")
	if _, ok := c.Get("widgets"); ok {
		t.Errorf("expected miss after Invalidate")
	}
}

func TestSchemaCacheInvalidateAll(t *testing.T) {
	c := NewSchemaCache()
	c.Put(&TableSchema{Name: "a"})
	c.Put(&TableSchema{Name: "b"})
	c.InvalidateAll()
	if _, ok := c.Get("a"); ok {
		t.Errorf("expected a to be gone after InvalidateAll")
	}
	if _, ok := c.Get("b"); ok {
		t.Errorf("expected b to be gone after InvalidateAll")
	}
}

func TestPgTypeNameToOID(t *testing.T) {
	cases := map[string]types.OID{
		"int4":        types.Int4OID,
		"integer":     types.Int4OID,
		"bigint":      types.Int8OID,
		"text":        types.TextOID,
		"numeric":     types.NumericOID,
		"timestamptz": types.TimestamptzOID,
		"unknown-pg-type": types.TextOID,
	}
	for pgType, want := range cases {
		if got := PgTypeNameToOID(pgType); got != want {
			t.Errorf("PgTypeNameToOID(%q) = %v, want %v", pgType, got, want)
		}
	}
}

func TestPgTypeNameToOIDArraySuffix(t *testing.T) {
	got := PgTypeNameToOID("int4[]")
	if got != types.Int4ArrayOID {
		t.Errorf("PgTypeNameToOID(int4[]) = %v, want %v", got, types.Int4ArrayOID)
	}
}
