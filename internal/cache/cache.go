package cache

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Cache is an expiring key/value store. Entries are idempotently recomputable,
// so implementations may lose entries under pressure without affecting
// correctness of callers.
type Cache[V any] interface {
	Get(ctx context.Context, key string) (V, bool)
	Set(ctx context.Context, key string, value V)
	Clear(ctx context.Context)
	Size(ctx context.Context) int
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Memory is an in-process TTL cache with size-bounded eviction. When a Set
// finds the store at or above capacity after sweeping expired entries, it
// evicts the oldest-by-expiry entries in a batch of max(1, capacity/10).
type Memory[V any] struct {
	mu       sync.RWMutex
	entries  map[string]entry[V]
	ttl      time.Duration
	capacity int
	now      func() time.Time
}

// NewMemory returns a memory cache holding at most capacity entries, each
// valid for ttl after its Set.
func NewMemory[V any](ttl time.Duration, capacity int) *Memory[V] {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Memory[V]{
		entries:  make(map[string]entry[V]),
		ttl:      ttl,
		capacity: capacity,
		now:      time.Now,
	}
}

// Get returns the value for key if present and unexpired. Expiry is checked
// here independently of any sweep, so a stale entry is never returned.
func (m *Memory[V]) Get(_ context.Context, key string) (V, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	var zero V
	if !ok || m.now().After(e.expiresAt) {
		return zero, false
	}
	return e.value, true
}

// Set stores value under key with expiry now+ttl, sweeping expired entries
// first and batch-evicting the oldest when the store is full.
func (m *Memory[V]) Set(_ context.Context, key string, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweepLocked()
	if len(m.entries) >= m.capacity {
		m.evictOldestLocked(max(1, m.capacity/10))
	}
	m.entries[key] = entry[V]{value: value, expiresAt: m.now().Add(m.ttl)}
}

// Clear removes every entry.
func (m *Memory[V]) Clear(_ context.Context) {
	m.mu.Lock()
	m.entries = make(map[string]entry[V])
	m.mu.Unlock()
}

// Size reports the entry count after sweeping expired entries.
func (m *Memory[V]) Size(_ context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked()
	return len(m.entries)
}

func (m *Memory[V]) sweepLocked() {
	now := m.now()
	for k, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, k)
		}
	}
}

func (m *Memory[V]) evictOldestLocked(count int) {
	if count <= 0 || len(m.entries) == 0 {
		return
	}
	type keyed struct {
		key       string
		expiresAt time.Time
	}
	ordered := make([]keyed, 0, len(m.entries))
	for k, e := range m.entries {
		ordered = append(ordered, keyed{k, e.expiresAt})
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].expiresAt.Before(ordered[j].expiresAt) })
	if count > len(ordered) {
		count = len(ordered)
	}
	for _, ke := range ordered[:count] {
		delete(m.entries, ke.key)
	}
}
