package dedup

import (
	"context"
	"sync"
	"time"

	"github.com/amishk599/gigradar/internal/model"
)

var _ model.DedupStore = (*MemoryStore)(nil)

// MemoryStore is a mutex-guarded map of key expiry times. Expired keys are
// treated as absent on read and removed by Sweep.
type MemoryStore struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{expires: make(map[string]time.Time), now: time.Now}
}

func (s *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.expires[key]
	if !ok {
		return false, nil
	}
	if !s.now().Before(exp) {
		delete(s.expires, key)
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) Mark(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	s.expires[key] = s.now().Add(ttl)
	s.mu.Unlock()
	return nil
}

// Sweep drops expired keys and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for k, exp := range s.expires {
		if !now.Before(exp) {
			delete(s.expires, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of keys held, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.expires)
}
