package journey

import "sync"

// monthLocks serializes recalculation per (tenant, user, month). The per-day
// algorithm is not commutative, so two concurrent recalculations of the same
// month must not interleave writes; the second caller simply waits.
//
// Lock entries are never evicted: the key space is bounded by the number of
// (user, month) pairs ever recalculated in-process.
type monthLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newMonthLocks() *monthLocks {
	return &monthLocks{locks: make(map[string]*sync.Mutex)}
}

// Acquire blocks until the key's lock is held and returns the release func.
func (ml *monthLocks) Acquire(key string) func() {
	ml.mu.Lock()
	l, ok := ml.locks[key]
	if !ok {
		l = &sync.Mutex{}
		ml.locks[key] = l
	}
	ml.mu.Unlock()

	l.Lock()
	return l.Unlock
}
