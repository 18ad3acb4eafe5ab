package reconcile

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the in-process pending store used when Redis is not
// configured. Expired entries are swept on every Put and rejected on
// Take, so the map stays bounded without a background janitor.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

type memoryEntry struct {
	pending   Pending
	expiresAt time.Time
}

// NewMemoryStore creates a pending store with the given TTL. A
// non-positive TTL falls back to DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Put stores a pending reconciliation and sweeps expired entries.
func (s *MemoryStore) Put(_ context.Context, id string, p Pending) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for key, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, key)
		}
	}
	s.entries[id] = memoryEntry{pending: p, expiresAt: now.Add(s.ttl)}
	return nil
}

// Take removes and returns the entry, or ErrNotFound if it is unknown,
// consumed, or expired.
func (s *MemoryStore) Take(_ context.Context, id string) (Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return Pending{}, ErrNotFound
	}
	delete(s.entries, id)
	if s.now().After(entry.expiresAt) {
		return Pending{}, ErrNotFound
	}
	return entry.pending, nil
}
