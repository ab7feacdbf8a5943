package tracking

import "sync"

// awbLocks serializes event processing per tracking identity. Two events for
// the same (transporter, AWB) are applied one at a time; events for different
// AWBs proceed concurrently.
type awbLocks struct {
	mu    sync.Mutex
	locks map[string]*awbLock
}

type awbLock struct {
	mu   sync.Mutex
	refs int
}

func newAWBLocks() *awbLocks {
	return &awbLocks{locks: make(map[string]*awbLock)}
}

// Acquire locks the key and returns the release function
func (l *awbLocks) Acquire(key string) func() {
	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &awbLock{}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}
