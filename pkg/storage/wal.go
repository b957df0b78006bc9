package storage

import "sync"

// WALNotifier is the small pub-sub a committing or autocommit-writing
// session publishes into so every other open session can refresh its WAL
// snapshot and observe the new rows immediately and
// §8's autocommit-visibility property. It is deliberately best-effort:
// a subscriber that is mid-query simply picks up the refresh on its next
// statement boundary, and a publish with no subscribers is a no-op.
type WALNotifier struct {
	mu sync.RWMutex
	subscribers map[string]chan struct{}
}

// NewWALNotifier creates an empty notifier.
func NewWALNotifier() *WALNotifier {
	return &WALNotifier{subscribers: make(map[string]chan struct{})}
}

// Subscribe registers sessionID for refresh signals, returning a channel
// that receives a value (non-blocking, buffered) whenever another session
// commits a write. Callers must call Unsubscribe on session end.
func (n *WALNotifier) Subscribe(sessionID string) <-chan struct{} {
	ch := make(chan struct{}, 1)
	n.mu.Lock()
	n.subscribers[sessionID] = ch
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes a session's registration.
func (n *WALNotifier) Unsubscribe(sessionID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if ch, ok := n.subscribers[sessionID]; ok {
		close(ch)
		delete(n.subscribers, sessionID)
	}
}

// Publish signals every subscriber except the publishing session itself
// that a write committed. Signals are coalesced: if a subscriber already
// has a pending signal, a second publish before it is consumed is dropped
// rather than blocking.
func (n *WALNotifier) Publish(fromSessionID string) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for sessionID, ch := range n.subscribers {
		if sessionID == fromSessionID {
			continue
		}
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Drain consumes any pending refresh signal for sessionID without
// blocking, returning whether one was pending. A session calls this at
// the start of handling a new statement to decide whether to issue the
// dummy read that forces SQLite to advance its WAL snapshot.
func (n *WALNotifier) Drain(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
