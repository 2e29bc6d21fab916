package cache

import (
	"context"
	"sync"
	"time"

	"github.com/sells-group/siteqa/internal/model"
)

// Memory is an in-process TTL cache. Entries are evicted lazily when read
// after expiry; there is no background sweep. Concurrent writers to one
// key are last-write-wins.
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]Entry

	nowFunc func() time.Time
}

// MemoryOption configures a Memory cache.
type MemoryOption func(*Memory)

// WithClock replaces time.Now as the source of store and expiry times.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.nowFunc = now
		}
	}
}

// NewMemory creates a Memory cache. A non-positive ttl uses DefaultTTL.
func NewMemory(ttl time.Duration, opts ...MemoryOption) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m := &Memory{
		ttl:     ttl,
		entries: make(map[string]Entry),
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the stored response if it is no older than the TTL.
func (m *Memory) Get(_ context.Context, key string) (*model.Response, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if m.nowFunc().Sub(e.StoredAt) > m.ttl {
		delete(m.entries, key)
		return nil, false, nil
	}
	return clone(&e.Payload), true, nil
}

// Set stores resp under key with the current time.
func (m *Memory) Set(_ context.Context, key string, resp *model.Response) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = Entry{Key: key, Payload: *clone(resp), StoredAt: m.nowFunc()}
	return nil
}

// Delete evicts key.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
