package idempotency

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	done      bool
	result    []byte
	expiresAt time.Time
}

// Memory is a process-local Ledger. Entries expire lazily on access and are
// swept by Prune.
type Memory struct {
	mu         sync.Mutex
	entries    map[string]memoryEntry
	ttl        time.Duration
	pendingTTL time.Duration
	now        func() time.Time
}

type MemoryOption func(*Memory)

func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

func WithMemoryTTL(ttl, pendingTTL time.Duration) MemoryOption {
	return func(m *Memory) {
		if ttl > 0 {
			m.ttl = ttl
		}
		if pendingTTL > 0 {
			m.pendingTTL = pendingTTL
		}
	}
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries:    make(map[string]memoryEntry),
		ttl:        DefaultTTL,
		pendingTTL: DefaultPendingTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Reserve(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if e, ok := m.entries[key]; ok && now.Before(e.expiresAt) {
		if !e.done {
			return nil, ErrInFlight
		}
		return append([]byte(nil), e.result...), nil
	}

	m.entries[key] = memoryEntry{expiresAt: now.Add(m.pendingTTL)}
	return nil, nil
}

func (m *Memory) Complete(_ context.Context, key string, result []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = memoryEntry{
		done:      true,
		result:    append([]byte(nil), result...),
		expiresAt: m.now().Add(m.ttl),
	}
	return nil
}

func (m *Memory) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}

// Prune removes expired entries and returns how many were dropped.
func (m *Memory) Prune(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for key, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, key)
			n++
		}
	}
	return n
}

// Len reports the number of tracked keys, expired or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
