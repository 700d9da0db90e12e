package guard

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps fingerprints in process memory. Each entry is removed by
// its own background timer when it expires.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*entry
	closed  bool
}

type entry struct {
	timer *time.Timer
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*entry)}
}

// Acquire implements Store.
func (m *MemoryStore) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[key]; ok {
		return false, nil
	}

	e := &entry{}
	m.entries[key] = e
	if !m.closed {
		e.timer = time.AfterFunc(ttl, func() { m.expire(key, e) })
	}
	return true, nil
}

// Exists implements Store.
func (m *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.entries[key]
	return ok, nil
}

// Release implements Store.
func (m *MemoryStore) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[key]; ok {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(m.entries, key)
	}
	return nil
}

// Len returns the number of registered fingerprints.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Close stops every pending expiry timer and drops all entries.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, e := range m.entries {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(m.entries, key)
	}
	m.closed = true
	return nil
}

// expire removes key only if it still maps to e, so a newer registration of
// the same key survives a stale timer.
func (m *MemoryStore) expire(key string, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.entries[key]; ok && cur == e {
		delete(m.entries, key)
	}
}
