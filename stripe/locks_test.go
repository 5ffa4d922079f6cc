package stripe

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func TestLockManagerSerializesSameKey(t *testing.T) {
	c := qt.New(t)

	lm := NewLockManager()
	var counter int
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := lm.Lock("account:1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()
	c.Assert(counter, qt.Equals, 50)
}

func TestLockManagerDifferentKeysDontBlock(t *testing.T) {
	c := qt.New(t)

	lm := NewLockManager()
	unlock := lm.Lock("account:1")
	defer unlock()

	done := make(chan struct{})
	go func() {
		other := lm.Lock("account:2")
		other()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		c.Fatal("lock on a different key blocked")
	}
}

func TestLockManagerCleanup(t *testing.T) {
	c := qt.New(t)

	lm := NewLockManager()
	unlock := lm.Lock("held")
	lm.Lock("released")()
	lm.CleanupLocks()

	_, heldKept := lm.locks.Load("held")
	c.Assert(heldKept, qt.IsTrue)
	_, releasedKept := lm.locks.Load("released")
	c.Assert(releasedKept, qt.IsFalse)
	unlock()
}

func TestMemoryEventStore(t *testing.T) {
	c := qt.New(t)

	store := NewMemoryEventStore(time.Hour)
	c.Assert(store.EventExists("evt_1"), qt.IsFalse)
	c.Assert(store.MarkIfNew("evt_1"), qt.IsTrue)
	c.Assert(store.EventExists("evt_1"), qt.IsTrue)
	c.Assert(store.MarkIfNew("evt_1"), qt.IsFalse)
	c.Assert(store.Size(), qt.Equals, 1)

	// unmarking releases the event for reprocessing
	store.Unmark("evt_1")
	c.Assert(store.EventExists("evt_1"), qt.IsFalse)
	c.Assert(store.MarkIfNew("evt_1"), qt.IsTrue)
}

func TestMemoryEventStoreConcurrentClaim(t *testing.T) {
	c := qt.New(t)

	store := NewMemoryEventStore(time.Hour)
	const goroutines = 50
	var wg sync.WaitGroup
	var claims int64
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if store.MarkIfNew("evt_shared") {
				atomic.AddInt64(&claims, 1)
			}
		}()
	}
	wg.Wait()
	c.Assert(claims, qt.Equals, int64(1))
}
