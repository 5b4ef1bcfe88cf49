package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/amishk599/gigradar/internal/model"
)

func TestWait_SameSource_EnforcesMinDelay(t *testing.T) {
	limiter := NewSourceRateLimiter(100 * time.Millisecond)
	ctx := context.Background()

	// First call should return immediately.
	if err := limiter.Wait(ctx, model.SourceKwork); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	start := time.Now()
	if err := limiter.Wait(ctx, model.SourceKwork); err != nil {
		t.Fatalf("second wait: %v", err)
	}
	// Allow 20ms for timer jitter.
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("expected >= 80ms wait, got %v", elapsed)
	}
}

func TestWait_DifferentSources_NoCrossBlocking(t *testing.T) {
	limiter := NewSourceRateLimiter(200 * time.Millisecond)
	ctx := context.Background()

	if err := limiter.Wait(ctx, model.SourceFL); err != nil {
		t.Fatalf("fl wait: %v", err)
	}

	start := time.Now()
	if err := limiter.Wait(ctx, model.SourceFreelancer); err != nil {
		t.Fatalf("freelancer wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("expected freelancer wait to be near-instant, got %v", elapsed)
	}
}

func TestWait_ConcurrentCallersGetSeparateSlots(t *testing.T) {
	limiter := NewSourceRateLimiter(50 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			limiter.Wait(ctx, model.SourceKwork)
		}()
	}
	wg.Wait()

	// Slots at 0, 50 and 100ms.
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Errorf("three callers finished in %v, want >= 90ms", elapsed)
	}
}

func TestWait_ContextCancellation(t *testing.T) {
	limiter := NewSourceRateLimiter(5 * time.Second)
	ctx := context.Background()

	if err := limiter.Wait(ctx, model.SourceFL); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := limiter.Wait(ctx, model.SourceFL); err == nil {
		t.Fatal("expected error from cancelled context, got nil")
	}
}

type recordingFetcher struct {
	called bool
}

func (f *recordingFetcher) Name() model.Source          { return model.SourceFL }
func (f *recordingFetcher) PollInterval() time.Duration { return time.Minute }

func (f *recordingFetcher) FetchRecent(_ context.Context, _ time.Duration) ([]model.Posting, error) {
	f.called = true
	return nil, nil
}

func TestRateLimitedFetcher_WaitsBeforeDelegating(t *testing.T) {
	limiter := NewSourceRateLimiter(100 * time.Millisecond)
	inner := &recordingFetcher{}
	fetcher := NewRateLimitedFetcher(inner, limiter)
	ctx := context.Background()

	if _, err := fetcher.FetchRecent(ctx, time.Minute); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if !inner.called {
		t.Fatal("inner fetcher was not called on first fetch")
	}
	inner.called = false

	start := time.Now()
	if _, err := fetcher.FetchRecent(ctx, time.Minute); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if !inner.called {
		t.Fatal("inner fetcher was not called on second fetch")
	}
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("expected >= 80ms wait on second fetch, got %v", elapsed)
	}
}
