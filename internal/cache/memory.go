package cache

import (
	"sync"
	"time"
)

// entry is a stored value with its insertion time.
type entry[V any] struct {
	value     V
	createdAt time.Time
}

// TTLMap is a keyed single-slot store with lazy expiry.
// Each key holds at most one value; Set overwrites. Expired values are
// evicted when read, or in bulk by Sweep.
type TTLMap[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]entry[V]
	ttl     time.Duration
	now     func() time.Time
}

// NewTTLMap creates a store whose values expire ttl after they were set.
// A nil now uses time.Now.
func NewTTLMap[K comparable, V any](ttl time.Duration, now func() time.Time) *TTLMap[K, V] {
	if now == nil {
		now = time.Now
	}
	return &TTLMap[K, V]{
		entries: make(map[K]entry[V]),
		ttl:     ttl,
		now:     now,
	}
}

// TTL returns the configured expiry window.
func (m *TTLMap[K, V]) TTL() time.Duration {
	return m.ttl
}

// Set stores value under key, replacing any previous value.
func (m *TTLMap[K, V]) Set(key K, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = entry[V]{value: value, createdAt: m.now()}
}

// Peek returns the live value for key without consuming it.
func (m *TTLMap[K, V]) Peek(key K) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.liveLocked(key)
}

// Take atomically returns and removes the live value for key.
func (m *TTLMap[K, V]) Take(key K) (V, bool) {
	return m.TakeIf(key, nil)
}

// TakeIf removes and returns the live value for key only when match accepts it.
// A non-matching value is left in place. A nil match accepts everything.
func (m *TTLMap[K, V]) TakeIf(key K, match func(V) bool) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.liveLocked(key)
	if !ok {
		return v, false
	}
	if match != nil && !match(v) {
		var zero V
		return zero, false
	}
	delete(m.entries, key)
	return v, true
}

// Delete removes key regardless of expiry.
func (m *TTLMap[K, V]) Delete(key K) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
}

// Len returns the number of stored entries, including expired ones not yet evicted.
func (m *TTLMap[K, V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.entries)
}

// Sweep removes all expired entries and returns how many were removed.
func (m *TTLMap[K, V]) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for key, e := range m.entries {
		if m.expired(e, now) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}

func (m *TTLMap[K, V]) liveLocked(key K) (V, bool) {
	e, ok := m.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if m.expired(e, m.now()) {
		delete(m.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

func (m *TTLMap[K, V]) expired(e entry[V], now time.Time) bool {
	return now.Sub(e.createdAt) > m.ttl
}
