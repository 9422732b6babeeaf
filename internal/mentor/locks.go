package mentor

import (
	"sync"

	"github.com/google/uuid"
)

// threadLocks serializes turns per thread within this process. A second
// turn on the same thread must not read history that an in-flight
// summarization of the previous turn is concurrently archiving. Row locks
// inside store transactions guard cross-process interleaving; this keyed
// mutex guards the longer read-generate-write span in-process.
type threadLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newThreadLocks() *threadLocks {
	return &threadLocks{locks: make(map[uuid.UUID]*lockEntry)}
}

// acquire blocks until the thread's lock is held and returns the release
// function. Entries are reference-counted so the map does not grow with
// the lifetime number of threads.
func (l *threadLocks) acquire(threadID uuid.UUID) func() {
	l.mu.Lock()
	entry, ok := l.locks[threadID]
	if !ok {
		entry = &lockEntry{}
		l.locks[threadID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, threadID)
		}
		l.mu.Unlock()
	}
}
