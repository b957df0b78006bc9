// Package wire implements the PostgreSQL wire protocol (v3) on top of
// jackc/pgx's pgproto3 codec, generalising a single-shot Request/Result
// translation listener into the full Simple Query and Extended Query
// state machines.
package wire

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"

	"github.com/pgsqlite/pgsqlite/pkg/dispatcher"
	"github.com/pgsqlite/pgsqlite/pkg/log"
	"github.com/pgsqlite/pgsqlite/pkg/session"
)

// Config holds the listener-level settings exposed as environment
// variables: the bind address, optional TLS, and the trust-vs-SCRAM
// authentication switch.
type Config struct {
	Network      string // "tcp" (default) or "unix"
	Address      string // host:port for "tcp", socket file path for "unix"
	TLSConfig    *tls.Config // nil disables SSLRequest negotiation
	RequireSCRAM bool
	SCRAMUsers   map[string]string // user -> password, checked when RequireSCRAM is set
	MaxRowsChunk int32             // not consulted by Execute: MaxRows=0 always returns every remaining row
}

// Listener accepts PostgreSQL wire connections. It carries a connection
// tracking map, an atomic connection counter, and TLS-optional Listen,
// extended to the fuller message set this protocol needs.
type Listener struct {
	mu sync.RWMutex

	cfg     Config
	logger  *log.Logger
	sess    *session.Manager
	dispatch *dispatcher.Dispatcher

	listener net.Listener

	connections map[*Conn]struct{}
	connCount   int64

	ctx    context.Context
	cancel context.CancelFunc
	closed bool
}

// New creates a Listener bound to a session manager and dispatcher; it
// does not start listening until Listen is called.
func New(cfg Config, sess *session.Manager, dispatch *dispatcher.Dispatcher, logger *log.Logger) *Listener {
	ctx, cancel := context.WithCancel(context.Background())
	if cfg.MaxRowsChunk <= 0 {
		cfg.MaxRowsChunk = 0 // 0 means "return everything", matching Execute's MaxRows=0 convention
	}
	return &Listener{
		cfg:         cfg,
		logger:      logger,
		sess:        sess,
		dispatch:    dispatch,
		connections: make(map[*Conn]struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Listen starts listening on the configured network and address. A unix
// socket path left behind by a previous unclean shutdown is removed first,
// matching the convention real Postgres's own socket listener follows.
func (l *Listener) Listen() error {
	network := l.cfg.Network
	if network == "" {
		network = "tcp"
	}
	if network == "unix" {
		os.Remove(l.cfg.Address)
	}
	ln, err := net.Listen(network, l.cfg.Address)
	if err != nil {
		return fmt.Errorf("listen on %s %s: %w", network, l.cfg.Address, err)
	}
	l.listener = ln
	return nil
}

// Serve accepts connections until the listener is closed, handling each
// on its own goroutine. It returns nil when Close has been called.
func (l *Listener) Serve() error {
	for {
		conn, err := l.Accept()
		if err != nil {
			l.mu.RLock()
			closed := l.closed
			l.mu.RUnlock()
			if closed {
				return nil
			}
			l.logger.Wire().Warn("accept failed", "error", err)
			continue
		}
		go func() {
			if err := conn.Serve(l.ctx); err != nil {
				l.logger.Wire().Debug("connection terminated", "error", err)
			}
			l.removeConnection(conn)
		}()
	}
}

// Accept waits for and returns the next connection, performing the
// startup handshake before handing it back.
func (l *Listener) Accept() (*Conn, error) {
	if l.listener == nil {
		return nil, fmt.Errorf("listener not started")
	}

	netConn, err := l.listener.Accept()
	if err != nil {
		return nil, err
	}

	conn := newConn(netConn, l)
	if err := conn.handshake(l.ctx); err != nil {
		netConn.Close()
		return nil, fmt.Errorf("handshake failed: %w", err)
	}

	l.mu.Lock()
	l.connections[conn] = struct{}{}
	atomic.AddInt64(&l.connCount, 1)
	l.mu.Unlock()

	return conn, nil
}

// Close stops the listener and every tracked connection.
func (l *Listener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.cancel()
	conns := make([]*Conn, 0, len(l.connections))
	for c := range l.connections {
		conns = append(conns, c)
	}
	l.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
	if l.listener != nil {
		return l.listener.Close()
	}
	return nil
}

// Addr returns the listener's network address.
func (l *Listener) Addr() net.Addr {
	if l.listener == nil {
		return nil
	}
	return l.listener.Addr()
}

// ConnectionCount returns the number of active connections.
func (l *Listener) ConnectionCount() int {
	return int(atomic.LoadInt64(&l.connCount))
}

func (l *Listener) removeConnection(conn *Conn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.connections[conn]; ok {
		delete(l.connections, conn)
		atomic.AddInt64(&l.connCount, -1)
	}
}
