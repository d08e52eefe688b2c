package engage

import (
	"sync"

	"github.com/google/uuid"
)

// sessionLocks serializes iterations per session. Different sessions proceed
// concurrently; two calls for the same session queue behind one another.
// Entries are reference-counted and removed once the last holder releases.
type sessionLocks struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{entries: make(map[uuid.UUID]*lockEntry)}
}

// acquire blocks until the session lock is held and returns the release func.
func (l *sessionLocks) acquire(id uuid.UUID) func() {
	l.mu.Lock()
	entry, ok := l.entries[id]
	if !ok {
		entry = &lockEntry{}
		l.entries[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, id)
		}
		l.mu.Unlock()
	}
}
