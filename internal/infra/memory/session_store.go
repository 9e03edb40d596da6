package memory

import (
	"context"
	"sync"
	"time"

	"timed-quiz-service/internal/domain"
)

// EphemeralStore is an in-memory key/value store with per-entry TTL. Expired
// entries are dropped on read and by Sweep.
type EphemeralStore struct {
	clock func() time.Time

	mu      sync.RWMutex
	entries map[string]ephemeralEntry
}

type ephemeralEntry struct {
	value     []byte
	expiresAt time.Time
}

func NewEphemeralStore() *EphemeralStore {
	return NewEphemeralStoreWithClock(time.Now)
}

func NewEphemeralStoreWithClock(clock func() time.Time) *EphemeralStore {
	return &EphemeralStore{
		clock:   clock,
		entries: make(map[string]ephemeralEntry),
	}
}

func (s *EphemeralStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = ephemeralEntry{
		value:     append([]byte(nil), value...),
		expiresAt: s.clock().Add(ttl),
	}
	return nil
}

func (s *EphemeralStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrKeyNotFound
	}
	if !entry.expiresAt.After(s.clock()) {
		s.mu.Lock()
		if current, ok := s.entries[key]; ok && !current.expiresAt.After(s.clock()) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, domain.ErrKeyNotFound
	}
	return append([]byte(nil), entry.value...), nil
}

func (s *EphemeralStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Sweep removes every expired entry and reports how many were dropped.
func (s *EphemeralStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	dropped := 0
	for key, entry := range s.entries {
		if !entry.expiresAt.After(now) {
			delete(s.entries, key)
			dropped++
		}
	}
	return dropped
}

// RunJanitor sweeps every interval until ctx is done.
func (s *EphemeralStore) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
