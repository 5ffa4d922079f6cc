package stripe

import (
	"sync"
)

// LockManager manages per-key locks to serialize state transitions for the
// same account or subscription while allowing parallel processing for
// different ones.
type LockManager struct {
	locks sync.Map // map[string]*sync.Mutex
}

// NewLockManager creates a new lock manager
func NewLockManager() *LockManager {
	return &LockManager{}
}

// Lock acquires the lock for the given key. It returns a function that must
// be called to release the lock.
func (lm *LockManager) Lock(key string) func() {
	lockInterface, _ := lm.locks.LoadOrStore(key, &sync.Mutex{})
	lock, ok := lockInterface.(*sync.Mutex)
	if !ok {
		// only *sync.Mutex values are ever stored
		panic("unexpected type in lock manager")
	}
	lock.Lock()
	return func() {
		lock.Unlock()
	}
}

// CleanupLocks removes locks that are not currently held. It can be called
// periodically to keep the map from growing with inactive keys.
func (lm *LockManager) CleanupLocks() {
	lm.locks.Range(func(key, value any) bool {
		lock, ok := value.(*sync.Mutex)
		if !ok {
			return true
		}
		if lock.TryLock() {
			lock.Unlock()
			lm.locks.Delete(key)
		}
		return true
	})
}
