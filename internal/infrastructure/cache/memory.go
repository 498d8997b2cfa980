// Package cache provides the advisory in-memory TTL cache used around
// collection fan-out.
package cache

import (
	"sync"
	"time"

	"newsbrief/internal/ports"
)

type entry struct {
	value     string
	expiresAt time.Time
}

// Memory is a mutex-guarded TTL cache. Expired entries are dropped lazily on
// read; no background sweeper runs.
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
}

var _ ports.Cache = (*Memory)(nil)

// NewMemory builds an empty cache.
func NewMemory() *Memory {
	return &Memory{entries: map[string]entry{}}
}

// Get returns the value when present and unexpired.
func (m *Memory) Get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return "", false
	}
	if time.Now().After(e.expiresAt) {
		delete(m.entries, key)
		return "", false
	}
	return e.value, true
}

// Set stores the value for ttl; a non-positive ttl stores nothing.
func (m *Memory) Set(key, value string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry{value: value, expiresAt: time.Now().Add(ttl)}
}

// Len reports the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
