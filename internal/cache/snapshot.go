package cache

import (
	"context"
	"sync"
	"time"
)

// SnapshotStore persists last-good payloads outside the engine's in-memory
// entry map, so a cold process (or a second client sharing a memcached) can
// serve cached data without a network call. Get reports ok=false on a miss.
type SnapshotStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type snapshotEntry struct {
	value     []byte
	expiresAt time.Time
}

// InMemorySnapshots implements SnapshotStore with a map and TTL-based
// expiration. Expired entries are removed on access. Safe for concurrent use.
type InMemorySnapshots struct {
	mu   sync.Mutex
	data map[string]snapshotEntry
}

// NewInMemorySnapshots returns an empty in-memory snapshot store.
func NewInMemorySnapshots() *InMemorySnapshots {
	return &InMemorySnapshots{data: make(map[string]snapshotEntry)}
}

// Get retrieves the payload for key if present and not expired.
func (s *InMemorySnapshots) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(s.data, key)
		return nil, false, nil
	}
	return entry.value, true, nil
}

// Set stores the payload for key with the given TTL.
func (s *InMemorySnapshots) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = snapshotEntry{
		value:     append([]byte(nil), value...),
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}
