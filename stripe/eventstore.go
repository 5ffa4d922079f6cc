package stripe

import (
	"sync"
	"time"
)

// MemoryEventStore keeps track of processed webhook event IDs in memory so
// duplicate deliveries are dropped. Entries expire after the TTL.
type MemoryEventStore struct {
	events map[string]time.Time
	mutex  sync.RWMutex
	ttl    time.Duration
}

// NewMemoryEventStore creates a new in-memory event store
func NewMemoryEventStore(ttl time.Duration) *MemoryEventStore {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}

	store := &MemoryEventStore{
		events: make(map[string]time.Time),
		ttl:    ttl,
	}
	go store.cleanup()

	return store
}

// EventExists checks if an event has already been processed
func (m *MemoryEventStore) EventExists(eventID string) bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	_, exists := m.events[eventID]
	return exists
}

// MarkIfNew marks the event as processed and reports whether it was new.
// The check and the mark happen under one lock, so of two simultaneous
// deliveries of the same event exactly one observes it as new.
func (m *MemoryEventStore) MarkIfNew(eventID string) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.events[eventID]; exists {
		return false
	}
	m.events[eventID] = time.Now()
	return true
}

// Unmark removes the event so a later delivery can be processed again. Used
// when handling did not complete.
func (m *MemoryEventStore) Unmark(eventID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	delete(m.events, eventID)
}

// cleanup removes expired events periodically
func (m *MemoryEventStore) cleanup() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		m.mutex.Lock()
		now := time.Now()
		for eventID, timestamp := range m.events {
			if now.Sub(timestamp) > m.ttl {
				delete(m.events, eventID)
			}
		}
		m.mutex.Unlock()
	}
}

// Size returns the number of stored events (for monitoring/debugging)
func (m *MemoryEventStore) Size() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.events)
}
