package wire

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgproto3"

	pgerr "github.com/pgsqlite/pgsqlite/pkg/errors"
	"github.com/pgsqlite/pgsqlite/pkg/session"
	"github.com/pgsqlite/pgsqlite/pkg/storage"
	"github.com/pgsqlite/pgsqlite/pkg/types"
)

// portalExec is the in-progress execution state of a bound portal: the
// dispatcher already runs a statement to completion and hands back a
// fully materialised row set (the Dispatch never streams), so
// Execute's max_rows chunking is implemented here as slicing that row set
// across repeated Execute calls rather than a live SQLite cursor.
type portalExec struct {
	columns []string
	rows [][]interface{}
	oids []types.OID
	tag string
	offset int
}

const (
PrepareStatementType = byte('S')
PreparePortalType = byte('P')
)

// handleParse implements the Parse message: it records the statement text
// (left with its $n placeholders, substituted at Bind time) plus inferred
// or client-declared parameter OIDs, grounded on kqlite's
// ClientConn.prepStmts / handleParse.
func (c *Conn) handleParse(ctx context.Context, msg *pgproto3.Parse) error {
	paramOIDs := make([]types.OID, len(msg.ParameterOIDs))
	for i, o := range msg.ParameterOIDs {
		paramOIDs[i] = types.OID(o)
	}
	var paramNumerics []*types.NumericConstraint
	if len(paramOIDs) == 0 {
		paramOIDs, paramNumerics = c.inferParamOIDs(msg.Query)
	}

	returnsRows := statementReturnsRows(msg.Query)
	var fields []session.FieldDescription
	if returnsRows {
		fields = c.inferResultFields(msg.Query)
	}

	stmt := &session.PreparedStatement{
		Name: msg.Name,
		SQL: msg.Query,
		ParamOIDs: paramOIDs,
		ParamNumerics: paramNumerics,
		Fields: fields,
	}
	c.sess.AddStatement(stmt)

	return c.send(&pgproto3.ParseComplete{})
}

// handleBind implements the Bind message: decode parameter values per
// their declared format/OID and register a Portal, per kqlite's
// handleBind / addPortal.
func (c *Conn) handleBind(ctx context.Context, msg *pgproto3.Bind) error {
	stmt, ok := c.sess.Statements[msg.PreparedStatement]
	if !ok {
		return c.sendErrorResponse(pgerr.New(pgerr.ErrInvalidSQLStatementName,
		fmt.Sprintf("prepared statement %q does not exist", msg.PreparedStatement)).Build())
	}

	portal := &session.Portal{
		Name: msg.DestinationPortal,
		StatementName: msg.PreparedStatement,
		Stmt: stmt,
		ParamValues: msg.Parameters,
		ParamFormats: msg.ParameterFormatCodes,
		ResultFormats: msg.ResultFormatCodes,
	}
	c.sess.AddPortal(portal)
	c.clearPortalState(msg.DestinationPortal)

	return c.send(&pgproto3.BindComplete{})
}

// handleDescribe implements the Describe message for both statement and
// portal targets.
func (c *Conn) handleDescribe(ctx context.Context, msg *pgproto3.Describe) error {
	switch msg.ObjectType {
	case PrepareStatementType:
		stmt, ok := c.sess.Statements[msg.Name]
		if !ok {
			return c.sendErrorResponse(pgerr.New(pgerr.ErrInvalidSQLStatementName,
			fmt.Sprintf("prepared statement %q does not exist", msg.Name)).Build())
		}
		oids := make([]uint32, len(stmt.ParamOIDs))
		for i, o := range stmt.ParamOIDs {
			oids[i] = uint32(o)
		}
		if err := c.send(&pgproto3.ParameterDescription{ParameterOIDs: oids}); err != nil {
			return err
		}
		return c.sendStatementRowDescription(stmt, nil)

	case PreparePortalType:
		portal, ok := c.sess.Portals[msg.Name]
		if !ok {
			return c.sendErrorResponse(pgerr.New(pgerr.ErrInvalidCursorName,
			fmt.Sprintf("unknown portal %q", msg.Name)).Build())
		}
		return c.sendStatementRowDescription(portal.Stmt, portal.ResultFormats)

	default:
		return c.sendErrorResponse(pgerr.New(pgerr.ErrProtocolViolation,
		fmt.Sprintf("invalid Describe subtype %x", msg.ObjectType)).Build())
	}
}

func (c *Conn) sendStatementRowDescription(stmt *session.PreparedStatement, formatCodes []int16) error {
	if len(stmt.Fields) == 0 {
		if !statementReturnsRows(stmt.SQL) {
			return c.send(&pgproto3.NoData{})
		}
		// Returns rows, but the columns were not staticly inferrable
		// (e.g. SELECT on a catalog view or fast-path passthrough) — an
		// empty RowDescription, matching kqlite's same fallback.
		return c.send(&pgproto3.RowDescription{})
	}
	oids := make([]types.OID, len(stmt.Fields))
	for i, f := range stmt.Fields {
		oids[i] = f.TypeOID
	}
	cols := make([]string, len(stmt.Fields))
	for i, f := range stmt.Fields {
		cols[i] = f.Name
	}
	return c.send(buildRowDescription(cols, oids, formatCodes))
}

// handleExecute implements the Execute message: substitute the portal's
// bound parameters into the statement text as SQL literals (the pipeline
// this module shares with Simple Query has no native bind-parameter
// execution path), dispatch, and chunk the result by msg.MaxRows.
func (c *Conn) handleExecute(ctx context.Context, msg *pgproto3.Execute) error {
	portal, ok := c.sess.Portals[msg.Portal]
	if !ok {
		return c.sendErrorResponse(pgerr.New(pgerr.ErrInvalidCursorName,
		fmt.Sprintf("unknown portal %q", msg.Portal)).Build())
	}

	state, ok := c.portalState(msg.Portal)
	if !ok {
		sqlText, err := substituteParams(portal.Stmt.SQL, portal.ParamValues, portal.ParamFormats, portal.Stmt.ParamOIDs, portal.Stmt.ParamNumerics)
		if err != nil {
			return c.sendErrorResponse(err)
		}

		queryCtx, done := c.sess.BeginQuery(ctx)
		outcome, err := c.dispatch().Dispatch(queryCtx, c.sess.Conn, sqlText)
		done()
		if err != nil {
			c.sess.MarkFailed()
			c.clearPortalState(msg.Portal)
			return c.sendErrorResponse(err)
		}
		c.applyTxStatus(outcome.Kind)

		oids := inferOIDs(outcome.Columns, outcome.Rows)
		tag := outcome.CommandTag
		if tag == "" && len(outcome.Columns) > 0 {
			tag = fmt.Sprintf("SELECT %d", len(outcome.Rows))
		}
		state = &portalExec{columns: outcome.Columns, rows: outcome.Rows, oids: oids, tag: tag}
		c.setPortalState(msg.Portal, state)
	}

	if len(state.columns) == 0 {
		c.clearPortalState(msg.Portal)
		return c.send(&pgproto3.CommandComplete{CommandTag: []byte(state.tag)})
	}

	limit := len(state.rows)
	if msg.MaxRows > 0 && int(msg.MaxRows) < len(state.rows)-state.offset {
		limit = state.offset + int(msg.MaxRows)
	}
	for _, row := range state.rows[state.offset:limit] {
		dataRow, err := encodeDataRow(row, state.oids, portal.ResultFormats)
		if err != nil {
			return err
		}
		if err := c.send(dataRow); err != nil {
			return err
		}
	}
	state.offset = limit

	if state.offset < len(state.rows) {
		return c.send(&pgproto3.PortalSuspended{})
	}

	tag := state.tag
	if tag == "" {
		tag = fmt.Sprintf("SELECT %d", len(state.rows))
	}
	c.clearPortalState(msg.Portal)
	return c.send(&pgproto3.CommandComplete{CommandTag: []byte(tag)})
}

// handleClose implements the Close message for both statement and portal
// targets. Closing a name that does not exist is not an error, per the
// protocol ("It is not an error to issue Close against a nonexistent
// statement or portal").
func (c *Conn) handleClose(ctx context.Context, msg *pgproto3.Close) error {
	switch msg.ObjectType {
	case PrepareStatementType:
		c.sess.CloseStatement(msg.Name)
	case PreparePortalType:
		c.sess.ClosePortal(msg.Name)
		c.clearPortalState(msg.Name)
	default:
		return c.sendErrorResponse(pgerr.New(pgerr.ErrProtocolViolation,
		fmt.Sprintf("invalid Close subtype %x", msg.ObjectType)).Build())
	}
	return c.send(&pgproto3.CloseComplete{})
}

// handleSync implements the Sync message: end of an extended-query
// round trip.
func (c *Conn) handleSync(ctx context.Context, msg *pgproto3.Sync) error {
	return c.send(c.readyForQuery())
}

func (c *Conn) portalState(name string) (*portalExec, bool) {
	if c.portalExecs == nil {
		return nil, false
	}
	s, ok := c.portalExecs[name]
	return s, ok
}

func (c *Conn) setPortalState(name string, s *portalExec) {
	if c.portalExecs == nil {
		c.portalExecs = make(map[string]*portalExec)
	}
	c.portalExecs[name] = s
}

func (c *Conn) clearPortalState(name string) {
	delete(c.portalExecs, name)
}

// substituteParams renders each $n placeholder in sqlText as a SQL literal
// decoded from its bound value, so the shared Dispatch pipeline (which
// only accepts literal SQL text) can run it unchanged. A parameter bound
// for a column carrying a NUMERIC(p,s) constraint (per numerics, indexed
// the same as oids) is validated against that constraint before
// substitution, rejecting a precision/scale overflow with the same 22003
// the literal-VALUES path raises rather than letting it reach SQLite.
func substituteParams(sqlText string, values [][]byte, formats []int16, oids []types.OID, numerics []*types.NumericConstraint) (string, error) {
	if len(values) == 0 {
		return sqlText, nil
	}
	var firstErr error
	result := paramPlaceholderRE.ReplaceAllStringFunc(sqlText, func(m string) string {
		n, _ := strconv.Atoi(m[1:])
		idx := n - 1
		if idx < 0 || idx >= len(values) {
			return m
		}
		if values[idx] == nil {
			return "NULL"
		}
		oid := types.TextOID
		if idx < len(oids) && oids[idx] != 0 {
			oid = oids[idx]
		}
		format := int16(0)
		if idx < len(formats) {
			format = formats[idx]
		} else if len(formats) == 1 {
			format = formats[0]
		}

		var v interface{}
		var err error
		if format == 1 {
			v, err = types.DecodeBinary(oid, values[idx])
		} else {
			v, err = types.DecodeText(oid, string(values[idx]))
		}
		if err != nil {
			v = string(values[idx])
		}

		if oid == types.NumericOID && idx < len(numerics) && numerics[idx] != nil {
			if text, ok := v.(string); ok {
				if _, err := types.ParseNumeric(text, numerics[idx].Precision, numerics[idx].Scale, true); err != nil {
					if firstErr == nil {
						firstErr = err
					}
				}
			}
		}

		return literalSQL(v)
	})
	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

func literalSQL(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(val, "'", "''") + "'"
	case []byte:
		return "x'" + fmt.Sprintf("%x", val) + "'"
	case bool:
		if val {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprintf("%v", val)
	}
}

var paramPlaceholderRE = regexp.MustCompile(`\$(\d+)`)

func statementReturnsRows(sqlText string) bool {
	upper := strings.ToUpper(strings.TrimSpace(sqlText))
	if strings.HasPrefix(upper, "SELECT") || strings.HasPrefix(upper, "WITH") || strings.HasPrefix(upper, "PRAGMA") {
		return true
	}
	return strings.Contains(upper, " RETURNING ")
}

var selectColumnsRE = regexp.MustCompile(`(?is)^\s*SELECT\s+(.*?)\s+FROM\s+([a-zA-Z_][a-zA-Z0-9_]*)`)

// inferResultFields performs limited static analysis, the same shortfall
// other lightweight Postgres-wire shims accept: a plain "SELECT cols FROM
// table" is resolved against the schema cache; anything else (joins,
// expressions, catalog views) is left for Describe's empty-RowDescription
// fallback.
func (c *Conn) inferResultFields(sqlText string) []session.FieldDescription {
	m := selectColumnsRE.FindStringSubmatch(sqlText)
	if m == nil {
		return nil
	}
	table := m[2]
	schema, ok := c.listener.sess.Engine().Schema.Get(table)
	if !ok {
		return nil
	}

	projection := strings.TrimSpace(m[1])
	var colNames []string
	if projection == "*" {
		for _, col := range schema.Columns {
			colNames = append(colNames, col.Name)
		}
	} else {
		for _, c := range strings.Split(projection, ",") {
			colNames = append(colNames, strings.TrimSpace(c))
		}
	}

	fields := make([]session.FieldDescription, 0, len(colNames))
	for i, name := range colNames {
		col, ok := schema.ColumnByName(name)
		oid := types.TextOID
		if ok {
			oid = col.PgOID
		}
		fields = append(fields, session.FieldDescription{
			Name: name,
			ColumnID: int16(i + 1),
			TypeOID: oid,
			TypeSize: types.FixedBinarySize(oid),
			TypeMod: -1,
		})
	}
	return fields
}

var insertColumnsRE = regexp.MustCompile(`(?is)^\s*INSERT\s+INTO\s+([a-zA-Z_][a-zA-Z0-9_]*)\s*\(([^)]*)\)`)
var whereParamRE = regexp.MustCompile(`(?i)([a-zA-Z_][a-zA-Z0-9_]*)\s*(?:=|<>|!=|<=|>=|<|>)\s*\$(\d+)`)
var paramCastRE = regexp.MustCompile(`\$(\d+)\s*::\s*"?([a-zA-Z_][a-zA-Z0-9_ ]*)"?`)

// inferParamOIDs resolves parameter types when the client's Parse message
// left ParameterOIDs empty, from an INSERT's target column list, a
// "col op $n" pattern elsewhere in the statement, or an explicit
// "$n::type" cast. An explicit cast is the most specific signal available
// and overrides whatever the column-based inference above it guessed. The
// second return value carries, for any parameter resolved against a schema
// column declaring NUMERIC(p,s), that constraint (nil where none applies);
// a cast alone carries no precision/scale so it never populates this slice.
func (c *Conn) inferParamOIDs(sqlText string) ([]types.OID, []*types.NumericConstraint) {
	var table string
	var columns []string
	if m := insertColumnsRE.FindStringSubmatch(sqlText); m != nil {
		table = m[1]
		for _, col := range strings.Split(m[2], ",") {
			columns = append(columns, strings.TrimSpace(col))
		}
	}

	paramCount := 0
	for _, m := range paramPlaceholderRE.FindAllStringSubmatch(sqlText, -1) {
		n, _ := strconv.Atoi(m[1])
		if n > paramCount {
			paramCount = n
		}
	}
	if paramCount == 0 {
		return nil, nil
	}
	oids := make([]types.OID, paramCount)
	for i := range oids {
		oids[i] = types.TextOID
	}
	numerics := make([]*types.NumericConstraint, paramCount)

	applyColumn := func(idx int, cs storage.ColumnSchema) {
		oids[idx] = cs.PgOID
		if cs.HasNumericConstraint {
			numerics[idx] = &types.NumericConstraint{Precision: cs.NumericPrecision, Scale: cs.NumericScale}
		}
	}

	var schema *storage.TableSchema
	if table != "" {
		if s, ok := c.listener.sess.Engine().Schema.Get(table); ok {
			schema = s
		}
	}
	if schema != nil && len(columns) > 0 {
		for i, col := range columns {
			if i >= paramCount {
				break
			}
			if cs, ok := schema.ColumnByName(col); ok {
				applyColumn(i, cs)
			}
		}
	}

	for _, m := range whereParamRE.FindAllStringSubmatch(sqlText, -1) {
		colName, nStr := m[1], m[2]
		n, _ := strconv.Atoi(nStr)
		if n < 1 || n > paramCount {
			continue
		}
		tbl := table
		if tbl == "" {
			tbl = tableNameFromFrom(sqlText)
		}
		if tbl == "" {
			continue
		}
		if s, ok := c.listener.sess.Engine().Schema.Get(tbl); ok {
			if cs, ok := s.ColumnByName(colName); ok {
				applyColumn(n-1, cs)
			}
		}
	}

	for _, m := range paramCastRE.FindAllStringSubmatch(sqlText, -1) {
		n, _ := strconv.Atoi(m[1])
		if n < 1 || n > paramCount {
			continue
		}
		typeName := strings.ToLower(strings.TrimSpace(m[2]))
		if oid := storage.PgTypeNameToOID(typeName); oid != types.TextOID || typeName == "text" {
			oids[n-1] = oid
		}
	}

	return oids, numerics
}

var fromTableRE = regexp.MustCompile(`(?i)\bFROM\s+([a-zA-Z_][a-zA-Z0-9_]*)`)

func tableNameFromFrom(sqlText string) string {
	m := fromTableRE.FindStringSubmatch(sqlText)
	if m == nil {
		return ""
	}
	return m[1]
}
