package wire

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgproto3"

	"github.com/pgsqlite/pgsqlite/pkg/dispatcher"
	pgerr "github.com/pgsqlite/pgsqlite/pkg/errors"
	"github.com/pgsqlite/pgsqlite/pkg/session"
	"github.com/pgsqlite/pgsqlite/pkg/translate"
)

// handleSimpleQuery implements the Simple Query ('Q') protocol: split the
// batch on top-level ';', apply the read-only optimizer hint SPEC_FULL.md
// §5 adds, dispatch each statement in turn, and end with ReadyForQuery.
func (c *Conn) handleSimpleQuery(ctx context.Context, msg *pgproto3.Query) error {
	statements := splitStatements(msg.String)

	readOnly := dispatcher.BatchIsReadOnly(statements)
	c.dispatch().MarkReadOnly(ctx, c.sess.Conn, readOnly)

	if len(statements) == 0 {
		return c.sendAll(&pgproto3.EmptyQueryResponse{}, c.readyForQuery())
	}

	queryCtx, done := c.sess.BeginQuery(ctx)
	defer done()

	for _, stmt := range statements {
		trimmed := strings.TrimSpace(stmt)
		if trimmed == "" {
			continue
		}
		if err := c.runOneSimple(queryCtx, trimmed); err != nil {
			c.sess.MarkFailed()
			if sendErr := c.sendErrorResponse(err); sendErr != nil {
				return sendErr
			}
			break
		}
	}

	return c.send(c.readyForQuery())
}

func (c *Conn) runOneSimple(ctx context.Context, stmt string) error {
	outcome, err := c.dispatch().Dispatch(ctx, c.sess.Conn, stmt)
	if err != nil {
		return err
	}
	c.applyTxStatus(outcome.Kind)

	if outcome.Kind == translate.KindSelect || len(outcome.Columns) > 0 {
		oids := inferOIDs(outcome.Columns, outcome.Rows)
		if err := c.send(buildRowDescription(outcome.Columns, oids, nil)); err != nil {
			return err
		}
		for _, row := range outcome.Rows {
			dataRow, err := encodeDataRow(row, oids, nil)
			if err != nil {
				return err
			}
			if err := c.send(dataRow); err != nil {
				return err
			}
		}
		tag := outcome.CommandTag
		if tag == "" {
			tag = fmt.Sprintf("SELECT %d", len(outcome.Rows))
		}
		return c.send(&pgproto3.CommandComplete{CommandTag: []byte(tag)})
	}

	return c.send(&pgproto3.CommandComplete{CommandTag: []byte(outcome.CommandTag)})
}

// applyTxStatus updates the session's ReadyForQuery indicator after a
// transaction-control statement state machine.
func (c *Conn) applyTxStatus(kind translate.StmtKind) {
	switch kind {
	case translate.KindBegin:
		c.sess.TxStatus = session.TxBlock
	case translate.KindCommit, translate.KindRollback:
		c.sess.TxStatus = session.TxIdle
	}
}

func (c *Conn) readyForQuery() *pgproto3.ReadyForQuery {
	return &pgproto3.ReadyForQuery{TxStatus: byte(c.sess.TxStatus)}
}

func (c *Conn) sendErrorResponse(err error) error {
	code := pgerr.ErrInternalError
	message := err.Error()
	detail, hint := "", ""
	if pe, ok := err.(*pgerr.Error); ok {
		code = pe.Code
		message = pe.Message
		detail = pe.Detail
		hint = pe.Hint
	}
	return c.send(&pgproto3.ErrorResponse{
		Severity: "ERROR",
		Code: string(code),
		Message: message,
		Detail: detail,
		Hint: hint,
	})
}

// splitStatements splits a Simple Query batch on top-level ';',
// respecting single-quoted strings, double-quoted identifiers, and
// dollar-quoted blocks so a semicolon inside a literal never ends a
// statement early.
func splitStatements(sql string) []string {
	var out []string
	var cur strings.Builder
	inSingle, inDouble := false, false
	dollarTag := ""

	i := 0
	for i < len(sql) {
		c := sql[i]
		switch {
		case dollarTag != "":
			if strings.HasPrefix(sql[i:], dollarTag) {
				cur.WriteString(dollarTag)
				i += len(dollarTag)
				dollarTag = ""
				continue
			}
			cur.WriteByte(c)
			i++
			continue
		case inSingle:
			cur.WriteByte(c)
			if c == '\'' {
				if i+1 < len(sql) && sql[i+1] == '\'' {
					cur.WriteByte(sql[i+1])
					i += 2
					continue
				}
				inSingle = false
			}
			i++
			continue
		case inDouble:
			cur.WriteByte(c)
			if c == '"' {
				inDouble = false
			}
			i++
			continue
		case c == '\'':
			inSingle = true
			cur.WriteByte(c)
			i++
		case c == '"':
			inDouble = true
			cur.WriteByte(c)
			i++
		case c == '$':
			if tag, ok := matchDollarTag(sql[i:]); ok {
				dollarTag = tag
				cur.WriteString(tag)
				i += len(tag)
				continue
			}
			cur.WriteByte(c)
			i++
		case c == ';':
			out = append(out, cur.String())
			cur.Reset()
			i++
		default:
			cur.WriteByte(c)
			i++
		}
	}
	if strings.TrimSpace(cur.String()) != "" {
		out = append(out, cur.String())
	}
	return out
}

// matchDollarTag recognises a Postgres dollar-quote opening tag ("$$" or
// "$tag$") at the start of s.
func matchDollarTag(s string) (string, bool) {
	if len(s) < 2 || s[0] != '$' {
		return "", false
	}
	for i := 1; i < len(s); i++ {
		if s[i] == '$' {
			return s[:i+1], true
		}
		if !isIdentByte(s[i]) {
			return "", false
		}
	}
	return "", false
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
