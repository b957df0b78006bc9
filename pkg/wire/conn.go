package wire

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgproto3"

	"github.com/pgsqlite/pgsqlite/pkg/dispatcher"
	"github.com/pgsqlite/pgsqlite/pkg/log"
	"github.com/pgsqlite/pgsqlite/pkg/session"
	"github.com/pgsqlite/pgsqlite/pkg/version"
)

// Conn is one client connection: its pgproto3 codec, its bound Session
// (opened lazily once Startup names a database), and the Extended Query
// bookkeeping the Parse/Bind/Execute cycle requires. It generalises a
// bare postgres.Conn, which only sketched single-shot Request/Result
// translation, into the full message loop.
type Conn struct {
	mu sync.Mutex

	netConn  net.Conn
	backend  *pgproto3.Backend
	listener *Listener

	user     string
	database string
	params   map[string]string

	sess *session.Session

	portalExecs map[string]*portalExec

	closed bool
}

func newConn(netConn net.Conn, l *Listener) *Conn {
	return &Conn{
		netConn:  netConn,
		backend:  pgproto3.NewBackend(netConn, netConn),
		listener: l,
		params:   make(map[string]string),
	}
}

func (c *Conn) send(msg pgproto3.BackendMessage) error {
	buf, err := msg.Encode(nil)
	if err != nil {
		return err
	}
	_, err = c.netConn.Write(buf)
	return err
}

func (c *Conn) sendAll(msgs ...pgproto3.BackendMessage) error {
	var buf []byte
	for _, m := range msgs {
		var err error
		buf, err = m.Encode(buf)
		if err != nil {
			return err
		}
	}
	_, err := c.netConn.Write(buf)
	return err
}

// handshake performs SSLRequest negotiation (if configured), reads the
// StartupMessage, runs authentication, opens the backing Session, and
// sends the ParameterStatus/BackendKeyData/ReadyForQuery sequence.
func (c *Conn) handshake(ctx context.Context) error {
	startupMsg, err := c.backend.ReceiveStartupMessage()
	if err != nil {
		return fmt.Errorf("receiving startup message: %w", err)
	}

	switch msg := startupMsg.(type) {
	case *pgproto3.SSLRequest:
		if c.listener.cfg.TLSConfig == nil {
			if _, err := c.netConn.Write([]byte{'N'}); err != nil {
				return err
			}
			return c.handshake(ctx)
		}
		if _, err := c.netConn.Write([]byte{'S'}); err != nil {
			return err
		}
		tlsConn := tls.Server(c.netConn, c.listener.cfg.TLSConfig)
		if err := tlsConn.Handshake(); err != nil {
			return fmt.Errorf("TLS handshake: %w", err)
		}
		c.netConn = tlsConn
		c.backend = pgproto3.NewBackend(tlsConn, tlsConn)
		return c.handshake(ctx)

	case *pgproto3.GSSEncRequest:
		// GSSAPI encryption is never offered; reply 'N' so the client
		// falls back to a plain or SSL-negotiated connection.
		if _, err := c.netConn.Write([]byte{'N'}); err != nil {
			return err
		}
		return c.handshake(ctx)

	case *pgproto3.CancelRequest:
		c.listener.sess.Cancel(msg.ProcessID, msg.SecretKey)
		return io.EOF // the cancel "connection" closes immediately, per protocol

	case *pgproto3.StartupMessage:
		c.user = msg.Parameters["user"]
		c.database = msg.Parameters["database"]
		for k, v := range msg.Parameters {
			c.params[k] = v
		}
		if c.database == "" {
			c.database = c.user
		}

		if err := c.authenticate(); err != nil {
			return err
		}

		sess, err := c.listener.sess.Open(ctx, sessionID(), c.user, c.database)
		if err != nil {
			c.send(&pgproto3.ErrorResponse{Severity: "FATAL", Code: "08006", Message: err.Error()})
			return err
		}
		c.sess = sess

		return c.sendAll(
			&pgproto3.ParameterStatus{Name: "server_version", Value: version.ServerVersion()},
			&pgproto3.ParameterStatus{Name: "server_encoding", Value: "UTF8"},
			&pgproto3.ParameterStatus{Name: "client_encoding", Value: "UTF8"},
			&pgproto3.ParameterStatus{Name: "DateStyle", Value: "ISO, MDY"},
			&pgproto3.ParameterStatus{Name: "TimeZone", Value: "UTC"},
			&pgproto3.ParameterStatus{Name: "integer_datetimes", Value: "on"},
			&pgproto3.BackendKeyData{ProcessID: sess.ProcessID, SecretKey: sess.SecretKey},
			&pgproto3.ReadyForQuery{TxStatus: byte(sess.TxStatus)},
		)

	default:
		return fmt.Errorf("unexpected startup message type: %T", msg)
	}
}

// Serve runs the connection's message loop until Terminate, EOF, or an
// unrecoverable protocol error.
func (c *Conn) Serve(ctx context.Context) error {
	defer c.Close()
	for {
		msg, err := c.backend.Receive()
		if err != nil {
			return err
		}

		switch m := msg.(type) {
		case *pgproto3.Query:
			if err := c.handleSimpleQuery(ctx, m); err != nil {
				return err
			}
		case *pgproto3.Parse:
			if err := c.handleParse(ctx, m); err != nil {
				return err
			}
		case *pgproto3.Bind:
			if err := c.handleBind(ctx, m); err != nil {
				return err
			}
		case *pgproto3.Describe:
			if err := c.handleDescribe(ctx, m); err != nil {
				return err
			}
		case *pgproto3.Execute:
			if err := c.handleExecute(ctx, m); err != nil {
				return err
			}
		case *pgproto3.Close:
			if err := c.handleClose(ctx, m); err != nil {
				return err
			}
		case *pgproto3.Sync:
			if err := c.handleSync(ctx, m); err != nil {
				return err
			}
		case *pgproto3.Flush:
			// No output buffering beyond a single Write per message, so
			// Flush is a no-op: every prior response is already on the wire.
		case *pgproto3.Terminate:
			return nil
		default:
			c.sendAll(&pgproto3.ErrorResponse{
				Severity: "ERROR", Code: "08P01",
				Message: fmt.Sprintf("unsupported message type %T", msg),
			})
		}
	}
}

// Close closes the underlying session and network connection.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.sess != nil {
		c.listener.sess.Close(c.sess)
	}
	return c.netConn.Close()
}

// RemoteAddr returns the peer's network address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.netConn.RemoteAddr()
}

// SetDeadline sets the read/write deadline on the underlying connection.
func (c *Conn) SetDeadline(t time.Time) error {
	return c.netConn.SetDeadline(t)
}

// dispatch returns the shared statement pipeline every query handler calls
// through; kept as a small accessor so simple.go/extended.go don't reach
// into c.listener directly.
func (c *Conn) dispatch() *dispatcher.Dispatcher {
	return c.listener.dispatch
}

func (c *Conn) logger() *log.Logger {
	return c.listener.logger
}

func sessionID() string {
	var buf [16]byte
	rand.Read(buf[:])
	return fmt.Sprintf("%x-%x", binary.BigEndian.Uint64(buf[:8]), binary.BigEndian.Uint64(buf[8:]))
}
