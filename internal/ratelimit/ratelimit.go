package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/amishk599/gigradar/internal/model"
)

// SourceRateLimiter enforces a minimum gap between fetches of the same
// source, so forced refreshes cannot hammer a marketplace.
type SourceRateLimiter struct {
	mu       sync.Mutex
	next     map[model.Source]time.Time // earliest start of the next fetch
	minDelay time.Duration
}

// NewSourceRateLimiter creates a limiter with minDelay between consecutive
// fetches of one source.
func NewSourceRateLimiter(minDelay time.Duration) *SourceRateLimiter {
	return &SourceRateLimiter{
		next:     make(map[model.Source]time.Time),
		minDelay: minDelay,
	}
}

// Wait blocks until source may be fetched again. Concurrent callers are
// given consecutive slots.
func (r *SourceRateLimiter) Wait(ctx context.Context, source model.Source) error {
	r.mu.Lock()
	now := time.Now()
	slot := now
	if next, ok := r.next[source]; ok && next.After(now) {
		slot = next
	}
	r.next[source] = slot.Add(r.minDelay)
	r.mu.Unlock()

	wait := slot.Sub(now)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("rate limiter wait for %s: %w", source, ctx.Err())
	case <-timer.C:
		return nil
	}
}

var _ model.PostingFetcher = (*RateLimitedFetcher)(nil)

// RateLimitedFetcher decorates a PostingFetcher with its source's limiter.
type RateLimitedFetcher struct {
	inner   model.PostingFetcher
	limiter *SourceRateLimiter
}

// NewRateLimitedFetcher wraps inner. Fetchers may share one limiter; slots are
// tracked per source.
func NewRateLimitedFetcher(inner model.PostingFetcher, limiter *SourceRateLimiter) *RateLimitedFetcher {
	return &RateLimitedFetcher{inner: inner, limiter: limiter}
}

func (f *RateLimitedFetcher) Name() model.Source          { return f.inner.Name() }
func (f *RateLimitedFetcher) PollInterval() time.Duration { return f.inner.PollInterval() }

// FetchRecent waits for the limiter, then delegates.
func (f *RateLimitedFetcher) FetchRecent(ctx context.Context, window time.Duration) ([]model.Posting, error) {
	if err := f.limiter.Wait(ctx, f.inner.Name()); err != nil {
		return nil, err
	}
	return f.inner.FetchRecent(ctx, window)
}
