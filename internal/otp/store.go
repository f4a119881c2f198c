package otp

import (
	"context"
	"sync"
	"time"
)

// Entry is a pending code and the number of failed attempts against it.
type Entry struct {
	Code     string
	Attempts int
}

// Store keeps pending codes keyed by phone with an expiry.
type Store interface {
	// Put stores code for phone, replacing any pending code and resetting attempts.
	Put(ctx context.Context, phone, code string, ttl time.Duration) error
	// Get returns the pending entry; expired entries are reported as absent.
	Get(ctx context.Context, phone string) (Entry, bool, error)
	// IncrementAttempts bumps the failure counter and returns the new value,
	// or -1 when no code is pending.
	IncrementAttempts(ctx context.Context, phone string) (int, error)
	Delete(ctx context.Context, phone string) error
}

type memoryEntry struct {
	Entry
	expiresAt time.Time
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (m *MemoryStore) Put(_ context.Context, phone, code string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[phone] = memoryEntry{
		Entry:     Entry{Code: code},
		expiresAt: m.now().Add(ttl),
	}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, phone string) (Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(phone)
	if !ok {
		return Entry{}, false, nil
	}
	return e.Entry, true, nil
}

func (m *MemoryStore) IncrementAttempts(_ context.Context, phone string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(phone)
	if !ok {
		return -1, nil
	}
	e.Attempts++
	m.entries[phone] = e
	return e.Attempts, nil
}

func (m *MemoryStore) Delete(_ context.Context, phone string) error {
	m.mu.Lock()
	delete(m.entries, phone)
	m.mu.Unlock()
	return nil
}

// live must be called with mu held.
func (m *MemoryStore) live(phone string) (memoryEntry, bool) {
	e, ok := m.entries[phone]
	if !ok {
		return memoryEntry{}, false
	}
	if !m.now().Before(e.expiresAt) {
		delete(m.entries, phone)
		return memoryEntry{}, false
	}
	return e, true
}
