package ingest

import "sync"

// sessionLocks serializes all mutations for one session while letting other
// sessions proceed in parallel. Entries are refcounted so idle sessions do
// not accumulate in the map.
type sessionLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{entries: make(map[string]*lockEntry)}
}

// acquire blocks until the caller holds the exclusive lock for sessionID.
// Waiters are granted the lock in mutex order, which preserves the FIFO
// arrival order of a single session channel.
func (l *sessionLocks) acquire(sessionID string) *lockEntry {
	l.mu.Lock()
	entry, ok := l.entries[sessionID]
	if !ok {
		entry = &lockEntry{}
		l.entries[sessionID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return entry
}

func (l *sessionLocks) release(sessionID string, entry *lockEntry) {
	entry.mu.Unlock()

	l.mu.Lock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, sessionID)
	}
	l.mu.Unlock()
}
