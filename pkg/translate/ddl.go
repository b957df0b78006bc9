package translate

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"

	pgerr "github.com/pgsqlite/pgsqlite/pkg/errors"
)

// columnPlan is the translator's intermediate per-column decision before
// statements are emitted CREATE TABLE mapping table.
type columnPlan struct {
	Name string
	PgType string // normalised Postgres type name, e.g. "numeric", "int4[]"
	SQLiteType string
	NotNull bool
	Default string
	Precision int
	Scale int
	HasPS bool
	StrLen int
	IsChar bool
	IsArray bool
	ElemType string
	IsFTS bool
	IsEnum bool
	EnumName string
}

func (t *Translator) translateCreateTable(sqlText string) (Result, error) {
	node, err := parseOne(sqlText)
	if err != nil {
		return Result{}, err
	}
	create, ok := node.Node.(*pg_query.Node_CreateStmt)
	if !ok {
		return Result{}, pgerr.New(pgerr.ErrSyntaxError, "expected CREATE TABLE").Err()
	}
	cs := create.CreateStmt
	table := cs.Relation.Relname

	var plans []columnPlan
	var tableConstraints []string
	for _, elt := range cs.TableElts {
		switch e := elt.Node.(type) {
		case *pg_query.Node_ColumnDef:
			plan := planColumn(e.ColumnDef)
			plans = append(plans, plan)
		case *pg_query.Node_Constraint:
			if sql := tableLevelConstraintSQL(e.Constraint); sql != "" {
				tableConstraints = append(tableConstraints, sql)
			}
		}
	}

	var colDefs []string
	var schemaRows []string
	var numericRows []string
	var stringRows []string
	var arrayRows []string
	var ftsStatements []string
	var ftsMetaRows []string

	for _, p := range plans {
		def := fmt.Sprintf("%s %s", quoteIdent(p.Name), p.SQLiteType)
		if p.NotNull {
			def += " NOT NULL"
		}
		if p.Default != "" {
			def += " DEFAULT " + p.Default
		}
		colDefs = append(colDefs, def)

		schemaRows = append(schemaRows, fmt.Sprintf(
		"INSERT INTO __pgsqlite_schema (table_name, column_name, pg_type, sqlite_type, not_null, col_default) VALUES (%s, %s, %s, %s, %d, %s)",
		sqlQuote(table), sqlQuote(p.Name), sqlQuote(p.PgType), sqlQuote(p.SQLiteType), boolToInt(p.NotNull), nullableQuote(p.Default)))

		if p.HasPS {
			numericRows = append(numericRows, fmt.Sprintf(
			"INSERT INTO __pgsqlite_numeric_constraints (table_name, column_name, precision, scale) VALUES (%s, %s, %d, %d)",
			sqlQuote(table), sqlQuote(p.Name), p.Precision, p.Scale))
		}
		if p.StrLen > 0 {
			stringRows = append(stringRows, fmt.Sprintf(
			"INSERT INTO __pgsqlite_string_constraints (table_name, column_name, max_length, is_char) VALUES (%s, %s, %d, %d)",
			sqlQuote(table), sqlQuote(p.Name), p.StrLen, boolToInt(p.IsChar)))
		}
		if p.IsArray {
			arrayRows = append(arrayRows, fmt.Sprintf(
			"INSERT INTO __pgsqlite_array_types (table_name, column_name, element_type) VALUES (%s, %s, %s)",
			sqlQuote(table), sqlQuote(p.Name), sqlQuote(p.ElemType)))
		}
		if p.IsFTS {
			ftsTable := fmt.Sprintf("__pgsqlite_fts_%s_%s", table, p.Name)
			ftsStatements = append(ftsStatements, fmt.Sprintf(
			"CREATE VIRTUAL TABLE %s USING fts5(content, weights UNINDEXED, lexemes UNINDEXED, tokenize='porter unicode61')",
			quoteIdent(ftsTable)))
			ftsMetaRows = append(ftsMetaRows, fmt.Sprintf(
			"INSERT INTO __pgsqlite_fts_metadata (table_name, column_name, fts_table_name, config) VALUES (%s, %s, %s, 'english')",
			sqlQuote(table), sqlQuote(p.Name), sqlQuote(ftsTable)))
		}
	}

	allColDefs := append(append([]string{}, colDefs...), tableConstraints...)
	createSQL := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(table), strings.Join(allColDefs, ", "))

	stmts := []string{createSQL}
	stmts = append(stmts, ftsStatements...)
	stmts = append(stmts, schemaRows...)
	stmts = append(stmts, numericRows...)
	stmts = append(stmts, stringRows...)
	stmts = append(stmts, arrayRows...)
	stmts = append(stmts, ftsMetaRows...)

	return Result{
		Kind: KindCreateTable,
		Statements: stmts,
		Table: table,
		Invalidate: []string{table},
	}, nil
}

func (t *Translator) translateDropTable(sqlText string) (Result, error) {
	node, err := parseOne(sqlText)
	if err != nil {
		return Result{}, err
	}
	drop, ok := node.Node.(*pg_query.Node_DropStmt)
	if !ok {
		return Result{}, pgerr.New(pgerr.ErrSyntaxError, "expected DROP TABLE").Err()
	}
	var tables []string
	for _, obj := range drop.DropStmt.Objects {
		if list, ok := obj.Node.(*pg_query.Node_List); ok {
			tables = append(tables, lastStringItem(list.List))
		}
	}

	var stmts []string
	for _, table := range tables {
		stmts = append(stmts,
		fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdent(table)),
		fmt.Sprintf("DELETE FROM __pgsqlite_schema WHERE table_name = %s", sqlQuote(table)),
		fmt.Sprintf("DELETE FROM __pgsqlite_numeric_constraints WHERE table_name = %s", sqlQuote(table)),
		fmt.Sprintf("DELETE FROM __pgsqlite_string_constraints WHERE table_name = %s", sqlQuote(table)),
		fmt.Sprintf("DELETE FROM __pgsqlite_array_types WHERE table_name = %s", sqlQuote(table)),
		fmt.Sprintf("DELETE FROM __pgsqlite_fts_metadata WHERE table_name = %s", sqlQuote(table)),
		)
	}

	return Result{Kind: KindDropTable, Statements: stmts, Invalidate: tables}, nil
}

func lastStringItem(list *pg_query.List) string {
	var last string
	for _, item := range list.Items {
		if s, ok := item.Node.(*pg_query.Node_String_); ok {
			last = s.String_.Sval
		}
	}
	return last
}

func planColumn(cd *pg_query.ColumnDef) columnPlan {
	p := columnPlan{Name: cd.Colname}

	var typeParts []string
	if cd.TypeName != nil {
		for _, n := range cd.TypeName.Names {
			if s, ok := n.Node.(*pg_query.Node_String_); ok {
				typeParts = append(typeParts, s.String_.Sval)
			}
		}
	}
	pgType := strings.ToLower(strings.Join(typeParts, "."))
	pgType = strings.TrimPrefix(pgType, "pg_catalog.")

	isArray := cd.TypeName != nil && len(cd.TypeName.ArrayBounds) > 0

	var mods []int
	if cd.TypeName != nil {
		for _, m := range cd.TypeName.Typmods {
			if c, ok := m.Node.(*pg_query.Node_AConst); ok {
				if iv, ok := c.AConst.Val.(*pg_query.A_Const_Ival); ok {
					mods = append(mods, int(iv.Ival.Ival))
				}
			}
		}
	}

	sqliteType := "TEXT"
	switch pgType {
	case "bool", "boolean":
		sqliteType = "INTEGER"
	case "int2", "smallint", "int4", "integer", "int", "int8", "bigint", "serial", "bigserial":
		sqliteType = "INTEGER"
	case "float4", "real", "float8", "double precision":
		sqliteType = "REAL"
	case "numeric", "decimal":
		sqliteType = "TEXT"
		if len(mods) >= 1 {
			p.Precision = mods[0]
		}
		if len(mods) >= 2 {
			p.Scale = mods[1]
		}
		p.HasPS = len(mods) > 0
	case "varchar", "character varying":
		sqliteType = "TEXT"
		if len(mods) >= 1 {
			p.StrLen = mods[0]
		}
	case "char", "character", "bpchar":
		sqliteType = "TEXT"
		p.IsChar = true
		if len(mods) >= 1 {
			p.StrLen = mods[0]
		}
	case "text", "uuid", "json", "jsonb", "inet", "cidr", "macaddr", "macaddr8":
		sqliteType = "TEXT"
	case "bytea":
		sqliteType = "BLOB"
	case "date", "time", "timetz", "time with time zone", "timestamp", "timestamptz", "timestamp with time zone":
		sqliteType = "INTEGER"
	case "money":
		sqliteType = "INTEGER"
	case "bit", "varbit", "bit varying":
		sqliteType = "TEXT"
	case "tsvector":
		sqliteType = "TEXT"
		p.IsFTS = true
	case "tsquery":
		sqliteType = "TEXT"
	default:
		// Either an ENUM or an otherwise-unmodeled type; store as TEXT and
		// let __pgsqlite_enum_usage validate if it later resolves to one.
		sqliteType = "TEXT"
		p.IsEnum = true
		p.EnumName = pgType
	}

	if isArray {
		p.IsArray = true
		p.ElemType = pgType
		sqliteType = "TEXT"
		pgType = pgType + "[]"
	}

	p.PgType = pgType
	p.SQLiteType = sqliteType

	for _, c := range cd.Constraints {
		constraint, ok := c.Node.(*pg_query.Node_Constraint)
		if !ok {
			continue
		}
		switch constraint.Constraint.Contype {
		case pg_query.ConstrType_CONSTR_NOTNULL:
			p.NotNull = true
		case pg_query.ConstrType_CONSTR_PRIMARY:
			p.NotNull = true
		case pg_query.ConstrType_CONSTR_DEFAULT:
			p.Default = deparseExpr(constraint.Constraint.RawExpr)
		}
	}

	return p
}

// tableLevelConstraintSQL renders a table-level PRIMARY KEY/UNIQUE/FOREIGN
// KEY constraint back into SQLite DDL text, since SQLite's grammar matches
// Postgres's closely enough for the common case. CHECK and other table
// constraints are dropped and do not reach SQLite.
func tableLevelConstraintSQL(c *pg_query.Constraint) string {
	switch c.Contype {
	case pg_query.ConstrType_CONSTR_PRIMARY:
		return "PRIMARY KEY (" + strings.Join(keyColumns(c.Keys), ", ") + ")"
	case pg_query.ConstrType_CONSTR_UNIQUE:
		return "UNIQUE (" + strings.Join(keyColumns(c.Keys), ", ") + ")"
	case pg_query.ConstrType_CONSTR_FOREIGN:
		if c.Pktable == nil {
			return ""
		}
		ref := "FOREIGN KEY (" + strings.Join(keyColumns(c.FkAttrs), ", ") + ") REFERENCES " + quoteIdent(c.Pktable.Relname)
		if len(c.PkAttrs) > 0 {
			ref += " (" + strings.Join(keyColumns(c.PkAttrs), ", ") + ")"
		}
		return ref
	default:
		return ""
	}
}

func keyColumns(keys []*pg_query.Node) []string {
	var cols []string
	for _, k := range keys {
		if s, ok := k.Node.(*pg_query.Node_String_); ok {
			cols = append(cols, quoteIdent(s.String_.Sval))
		}
	}
	return cols
}

// deparseExpr renders a DEFAULT expression's literal form; only the
// constant cases the fixed type table needs are handled, matching the
// non-exhaustive approach taken elsewhere in this translator.
func deparseExpr(n *pg_query.Node) string {
	if n == nil {
		return ""
	}
	switch e := n.Node.(type) {
	case *pg_query.Node_AConst:
		switch v := e.AConst.Val.(type) {
		case *pg_query.A_Const_Ival:
			return fmt.Sprintf("%d", v.Ival.Ival)
		case *pg_query.A_Const_Sval:
			return sqlQuote(v.Sval.Sval)
		case *pg_query.A_Const_Fval:
			return v.Fval.Fval
		}
	}
	return ""
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func sqlQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func nullableQuote(s string) string {
	if s == "" {
		return "NULL"
	}
	return sqlQuote(s)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
