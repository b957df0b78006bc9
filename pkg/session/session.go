// Package session implements the per-connection state the wire protocol
// engine drives: transaction state, prepared statements, and portals, per
// the Session/PreparedStatement/Portal entities.
package session

import (
	"context"
	"database/sql"
	"sync"

	"github.com/pgsqlite/pgsqlite/pkg/storage"
	"github.com/pgsqlite/pgsqlite/pkg/types"
)

// TxStatus is the single-byte ReadyForQuery transaction indicator.
type TxStatus byte

const (
TxIdle TxStatus = 'I'
TxBlock TxStatus = 'T'
TxFailed TxStatus = 'E'
)

// FieldDescription describes one column of a result set, enough to build
// a RowDescription message.
type FieldDescription struct {
	Name string
	TableOID uint32
	ColumnID int16
	TypeOID types.OID
	TypeSize int16
	TypeMod int32
	FormatCode int16
}

// PreparedStatement is the artifact of a Parse message.
type PreparedStatement struct {
	Name string
	SQL string
	ParamOIDs []types.OID // client-declared, or inferred when empty
	ParamNumerics []*types.NumericConstraint // inferred NUMERIC(p,s) target per parameter, nil entries unconstrained
	Fields []FieldDescription
	TranslatedStmts []string // SQL actually run against SQLite
}

// Portal is the artifact of a Bind message: a prepared statement bound to
// concrete parameter values.
type Portal struct {
	Name string
	StatementName string
	Stmt *PreparedStatement
	ParamValues [][]byte
	ParamFormats []int16
	ResultFormats []int16
}

// Session is one logical PostgreSQL connection: its own SQLite connection,
// transaction state, and prepared-statement/portal namespaces.
type Session struct {
	mu sync.Mutex

	ID string
	ProcessID uint32
	SecretKey uint32
	User string
	Database string

	Conn *sql.Conn

	TxStatus TxStatus

	Statements map[string]*PreparedStatement
	Portals map[string]*Portal

	Settings map[string]string // timezone, datestyle, search_path placeholder, ...

	walSubscription <-chan struct{}

	ReadOnly bool // MarkReadOnly optimizer hint, pkg/dispatcher

	queryMu sync.Mutex
	queryCancel context.CancelFunc
}

// BeginQuery derives a cancellable context for one statement execution.
// The go-sqlite3 driver watches ctx.Done and calls sqlite3_interrupt,
// which is how CancelRequest reaches a running query.
func (s *Session) BeginQuery(parent context.Context) (ctx context.Context, done func()) {
	ctx, cancel := context.WithCancel(parent)
	s.queryMu.Lock()
	s.queryCancel = cancel
	s.queryMu.Unlock()
	return ctx, func() {
		s.queryMu.Lock()
		s.queryCancel = nil
		s.queryMu.Unlock()
		cancel()
	}
}

// interrupt cancels the session's in-flight query context, if any.
func (s *Session) interrupt() {
	s.queryMu.Lock()
	cancel := s.queryCancel
	s.queryMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// New creates an idle session bound to conn.
func New(id string, pid, secret uint32, conn *sql.Conn) *Session {
	return &Session{
		ID: id,
		ProcessID: pid,
		SecretKey: secret,
		Conn: conn,
		TxStatus: TxIdle,
		Statements: make(map[string]*PreparedStatement),
		Portals: make(map[string]*Portal),
		Settings: map[string]string{
			"timezone": "UTC",
			"datestyle": "ISO, MDY",
			"search_path": "public",
		},
	}
}

// SubscribeWAL registers this session with notifier for write-visibility
// refresh signals .
func (s *Session) SubscribeWAL(n *storage.WALNotifier) {
	s.walSubscription = n.Subscribe(s.ID)
}

// UnsubscribeWAL removes this session's registration from notifier.
func (s *Session) UnsubscribeWAL(n *storage.WALNotifier) {
	n.Unsubscribe(s.ID)
}

// PendingWALRefresh reports (without blocking) whether another session
// has committed a write since this session last checked.
func (s *Session) PendingWALRefresh(n *storage.WALNotifier) bool {
	if s.walSubscription == nil {
		return false
	}
	return n.Drain(s.walSubscription)
}

// InTransaction reports whether the session is inside BEGIN.
func (s *Session) InTransaction() bool {
	return s.TxStatus == TxBlock || s.TxStatus == TxFailed
}

// MarkFailed transitions the session into the failed-transaction state,
// used when a statement inside BEGIN errors (the failure
// model: subsequent statements other than ROLLBACK then error 25P02).
func (s *Session) MarkFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.TxStatus == TxBlock {
		s.TxStatus = TxFailed
	}
}

// AddStatement registers a prepared statement, replacing any existing
// statement under the same name (the unnamed statement "" is always
// implicitly replaceable; named statements are replaced here too since
// Close is what the protocol normally uses to free a name first).
func (s *Session) AddStatement(stmt *PreparedStatement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Statements[stmt.Name] = stmt
}

// CloseStatement removes a prepared statement and any portals bound to it.
func (s *Session) CloseStatement(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.Statements, name)
	for pname, p := range s.Portals {
		if p.StatementName == name {
			delete(s.Portals, pname)
		}
	}
}

// AddPortal registers a portal, replacing any existing portal under the
// same name.
func (s *Session) AddPortal(p *Portal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Portals[p.Name] = p
}

// ClosePortal removes a portal. Its in-progress result-set state, if any,
// lives in wire.Conn's portalExecs map and is cleared by the caller.
func (s *Session) ClosePortal(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.Portals, name)
}

// Close releases the underlying connection.
func (s *Session) Close() error {
	if s.Conn != nil {
		return s.Conn.Close()
	}
	return nil
}
