package storage

import (
	"context"
	"database/sql"
	"sync"

	"github.com/pgsqlite/pgsqlite/pkg/types"
)

// ColumnSchema is one row of __pgsqlite_schema: the authoritative source
// of truth for a column's Postgres identity .
type ColumnSchema struct {
	Name string
	SQLiteType string
	PgType string
	PgOID types.OID
	NotNull bool
	Default string
	TypeModifier int32 // -1 when not applicable
	DatetimeFormat string
	TimezoneOffset int32
	FTSTableName string
	FTSConfig string

	HasNumericConstraint bool
	NumericPrecision int
	NumericScale int
}

// TableSchema is the per-table cache entry : the ordered
// column list plus a bloom-style flag set used by the dispatcher's
// fast-path eligibility test.
type TableSchema struct {
	Name string
	Columns []ColumnSchema

	HasDecimal bool
	HasDatetime bool
	HasArray bool
	HasJSON bool
	HasFTS bool
	HasEnum bool
}

// ColumnByName looks up a column case-sensitively, matching Postgres's
// default unquoted-identifier folding being handled upstream by the
// translator rather than here.
func (t *TableSchema) ColumnByName(name string) (ColumnSchema, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnSchema{}, false
}

func (t *TableSchema) recomputeBloom() {
	t.HasDecimal, t.HasDatetime, t.HasArray, t.HasJSON, t.HasFTS, t.HasEnum = false, false, false, false, false, false
	for _, c := range t.Columns {
		switch c.PgType {
		case "numeric", "decimal":
			t.HasDecimal = true
		case "date", "time", "timetz", "timestamp", "timestamptz":
			t.HasDatetime = true
		case "json", "jsonb":
			t.HasJSON = true
		case "tsvector", "tsquery":
			t.HasFTS = true
		default:
			if len(c.PgType) > 0 && c.PgType[len(c.PgType)-1] == ']' {
				t.HasArray = true
			}
		}
	}
}

// SchemaCache is the shared, multi-reader/single-writer table-schema
// cache , keyed by table name and invalidated wholesale
// on DDL against that table.
type SchemaCache struct {
	mu sync.RWMutex
	tables map[string]*TableSchema
}

// NewSchemaCache creates an empty cache.
func NewSchemaCache() *SchemaCache {
	return &SchemaCache{tables: make(map[string]*TableSchema)}
}

// Get returns the cached schema for table, if present.
func (c *SchemaCache) Get(table string) (*TableSchema, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[table]
	return t, ok
}

// Put inserts or replaces a table's cached schema, recomputing its bloom
// flags.
func (c *SchemaCache) Put(schema *TableSchema) {
	schema.recomputeBloom()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables[schema.Name] = schema
}

// Invalidate drops table from the cache; the next lookup reloads it from
// __pgsqlite_schema.
func (c *SchemaCache) Invalidate(table string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tables, table)
}

// InvalidateAll drops every cached entry, used by watch.go when the
// underlying database file is replaced out from under the server.
func (c *SchemaCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables = make(map[string]*TableSchema)
}

// Load reads a table's schema from __pgsqlite_schema plus
// __pgsqlite_numeric_constraints. It neither reads nor fills a
// SchemaCache; storing the result with Put is up to the caller.
func Load(ctx context.Context, db *sql.DB, table string) (*TableSchema, error) {
	rows, err := db.QueryContext(ctx, `
	SELECT column_name, sqlite_type, pg_type, not_null, col_default,
	type_modifier, datetime_format, timezone_offset, fts_table_name, fts_config
	FROM __pgsqlite_schema WHERE table_name = ? ORDER BY rowid`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	schema := &TableSchema{Name: table}
	for rows.Next() {
		var c ColumnSchema
		var notNull int
		var typeModifier sql.NullInt64
		var datetimeFormat, ftsTable, ftsConfig, colDefault sql.NullString
		var tzOffset sql.NullInt64
		if err := rows.Scan(&c.Name, &c.SQLiteType, &c.PgType, &notNull, &colDefault,
		&typeModifier, &datetimeFormat, &tzOffset, &ftsTable, &ftsConfig); err != nil {
			return nil, err
		}
		c.NotNull = notNull != 0
		c.Default = colDefault.String
		c.TypeModifier = -1
		if typeModifier.Valid {
			c.TypeModifier = int32(typeModifier.Int64)
		}
		c.DatetimeFormat = datetimeFormat.String
		c.TimezoneOffset = int32(tzOffset.Int64)
		c.FTSTableName = ftsTable.String
		c.FTSConfig = ftsConfig.String
		c.PgOID = PgTypeNameToOID(c.PgType)
		schema.Columns = append(schema.Columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := loadNumericConstraints(ctx, db, schema); err != nil {
		return nil, err
	}
	return schema, nil
}

// loadNumericConstraints attaches each column's declared (precision, scale)
// from __pgsqlite_numeric_constraints, the constraint the write path checks
// against before a NUMERIC literal or bound parameter reaches SQLite.
func loadNumericConstraints(ctx context.Context, db *sql.DB, schema *TableSchema) error {
	rows, err := db.QueryContext(ctx,
	`SELECT column_name, precision, scale FROM __pgsqlite_numeric_constraints WHERE table_name = ?`,
	schema.Name)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var col string
		var precision, scale int
		if err := rows.Scan(&col, &precision, &scale); err != nil {
			return err
		}
		for i := range schema.Columns {
			if schema.Columns[i].Name == col {
				schema.Columns[i].HasNumericConstraint = true
				schema.Columns[i].NumericPrecision = precision
				schema.Columns[i].NumericScale = scale
				break
			}
		}
	}
	return rows.Err()
}

// PgTypeNameToOID maps a __pgsqlite_schema pg_type string back to its OID.
// Array types are suffixed "[]" in storage (e.g. "int4[]").
func PgTypeNameToOID(pgType string) types.OID {
	if len(pgType) > 2 && pgType[len(pgType)-2:] == "[]" {
		base := pgTypeNameToScalarOID(pgType[:len(pgType)-2])
		if arr, ok := types.ArrayOIDFor(base); ok {
			return arr
		}
	}
	return pgTypeNameToScalarOID(pgType)
}

func pgTypeNameToScalarOID(name string) types.OID {
	switch name {
	case "bool", "boolean":
		return types.BoolOID
	case "int2", "smallint":
		return types.Int2OID
	case "int4", "integer", "int":
		return types.Int4OID
	case "int8", "bigint":
		return types.Int8OID
	case "float4", "real":
		return types.Float4OID
	case "float8", "double precision":
		return types.Float8OID
	case "numeric", "decimal":
		return types.NumericOID
	case "text":
		return types.TextOID
	case "varchar":
		return types.VarcharOID
	case "bpchar", "char":
		return types.BPCharOID
	case "bytea":
		return types.ByteaOID
	case "uuid":
		return types.UUIDOID
	case "json":
		return types.JSONOID
	case "jsonb":
		return types.JSONBOID
	case "date":
		return types.DateOID
	case "time":
		return types.TimeOID
	case "timetz":
		return types.TimetzOID
	case "timestamp":
		return types.TimestampOID
	case "timestamptz":
		return types.TimestamptzOID
	case "money":
		return types.MoneyOID
	case "inet":
		return types.InetOID
	case "cidr":
		return types.CIDROID
	case "macaddr":
		return types.MacaddrOID
	case "macaddr8":
		return types.Macaddr8OID
	case "bit":
		return types.BitOID
	case "varbit":
		return types.VarbitOID
	case "tsvector":
		return types.TSVectorOID
	case "tsquery":
		return types.TSQueryOID
	default:
		return types.TextOID
	}
}
