package session

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"sync"

	pgerr "github.com/pgsqlite/pgsqlite/pkg/errors"
	"github.com/pgsqlite/pgsqlite/pkg/log"
	"github.com/pgsqlite/pgsqlite/pkg/storage"
)

// Manager owns the shared storage.Engine and the live session table. A
// transactions-map-keyed-by-ID design becomes, here, a Session per
// connection rather than a transaction per statement batch.
type Manager struct {
	mu sync.RWMutex
	engine *storage.Engine
	logger *log.Logger
	sessions map[string]*Session
	byKey map[uint64]*Session // (pid<<32|secret) -> session, for CancelRequest lookup
}

// NewManager creates a Manager bound to an already-constructed Engine.
func NewManager(engine *storage.Engine, logger *log.Logger) *Manager {
	return &Manager{
		engine: engine,
		logger: logger,
		sessions: make(map[string]*Session),
		byKey: make(map[uint64]*Session),
	}
}

// Open creates a new session: a dedicated SQLite connection, migrated
// exactly once per Engine lifetime, registered for WAL-refresh signals.
func (m *Manager) Open(ctx context.Context, id, user, database string) (*Session, error) {
	db, err := m.engine.Open(ctx)
	if err != nil {
		return nil, err
	}
	if err := m.engine.EnsureMigrated(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, pgerr.Internal("acquiring session connection").WithCause(err).Err()
	}

	pid, secret := randomBackendKey()
	sess := New(id, pid, secret, conn)
	sess.User = user
	sess.Database = database
	sess.SubscribeWAL(m.engine.Notifier)

	m.mu.Lock()
	m.sessions[id] = sess
	m.byKey[backendKey(pid, secret)] = sess
	m.mu.Unlock()

	m.logger.Session().Info("session opened", "id", id, "user", user, "database", database)
	return sess, nil
}

// Close tears down a session and its connection.
func (m *Manager) Close(sess *Session) {
	m.mu.Lock()
	delete(m.sessions, sess.ID)
	delete(m.byKey, backendKey(sess.ProcessID, sess.SecretKey))
	m.mu.Unlock()

	sess.UnsubscribeWAL(m.engine.Notifier)
	sess.Close()
	m.logger.Session().Info("session closed", "id", sess.ID)
}

// Cancel looks up the session owning (pid, secret) and interrupts its
// in-flight query CancelRequest handling. Returns false
// if no session matches (the protocol ignores this silently — a
// CancelRequest for an unknown key is simply dropped).
func (m *Manager) Cancel(pid, secret uint32) bool {
	m.mu.RLock()
	sess, ok := m.byKey[backendKey(pid, secret)]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	sess.interrupt()
	return true
}

// Engine exposes the underlying storage engine, e.g. for the migration
// status the CLI reports at startup.
func (m *Manager) Engine() *storage.Engine {
	return m.engine
}

func backendKey(pid, secret uint32) uint64 {
	return uint64(pid)<<32 | uint64(secret)
}

func randomBackendKey() (uint32, uint32) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand failure is effectively unrecoverable system state;
		// fall back to a fixed pair rather than panic, since a predictable
		// cancel key only weakens CancelRequest targeting, not correctness.
		return 1, 1
	}
	pid := binary.BigEndian.Uint32(buf[0:4])
	secret := binary.BigEndian.Uint32(buf[4:8])
	return pid, secret
}
