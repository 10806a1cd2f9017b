package stripe

import "sync"

// LockManager hands out one mutex per key, so concurrent deliveries of the
// same webhook event are handled one at a time while different events run
// in parallel. A key is forgotten once nobody holds or waits for its lock.
type LockManager struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sync.Mutex
	refs int
}

// NewLockManager creates a new lock manager
func NewLockManager() *LockManager {
	return &LockManager{locks: make(map[string]*keyLock)}
}

// Lock acquires the lock for key and returns the function releasing it.
func (lm *LockManager) Lock(key string) func() {
	lm.mu.Lock()
	lock, ok := lm.locks[key]
	if !ok {
		lock = &keyLock{}
		lm.locks[key] = lock
	}
	lock.refs++
	lm.mu.Unlock()

	lock.Lock()
	return func() {
		lock.Unlock()
		lm.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(lm.locks, key)
		}
		lm.mu.Unlock()
	}
}

// Size returns the number of keys currently locked or waited for.
func (lm *LockManager) Size() int {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return len(lm.locks)
}
