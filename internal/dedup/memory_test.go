package dedup

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemory_TTL(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	if seen, _ := s.Exists(ctx, "fl:1"); seen {
		t.Fatal("empty store reports key")
	}
	if err := s.Mark(ctx, "fl:1", 360*time.Second); err != nil {
		t.Fatalf("Mark: %v", err)
	}
	now = now.Add(5 * time.Minute)
	if seen, _ := s.Exists(ctx, "fl:1"); !seen {
		t.Error("key should exist within TTL")
	}
	now = now.Add(time.Minute)
	if seen, _ := s.Exists(ctx, "fl:1"); seen {
		t.Error("key should expire at TTL")
	}
	if s.Len() != 0 {
		t.Errorf("expired key should be dropped on read, len = %d", s.Len())
	}
}

func TestMemory_Sweep(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.Mark(ctx, "a", time.Second)
	s.Mark(ctx, "b", time.Second)
	s.Mark(ctx, "c", time.Hour)
	now = now.Add(time.Minute)

	if removed := s.Sweep(); removed != 2 {
		t.Errorf("Sweep removed %d, want 2", removed)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := "k"
				if _, err := s.Exists(ctx, key); err != nil {
					t.Error(err)
					return
				}
				s.Mark(ctx, key, time.Minute)
			}
		}()
	}
	wg.Wait()

	if seen, _ := s.Exists(ctx, "k"); !seen {
		t.Error("key should exist after concurrent marks")
	}
}
