package poller

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/amishk599/gigradar/internal/model"
)

// CycleStats summarizes one fetch cycle.
type CycleStats struct {
	Fetched   int // postings returned by the fetcher
	Invalid   int // dropped for lacking an id
	Duplicate int // already marked in the dedup store
	Published int // published and marked
	Failed    int // publish errors; not marked, so retried next cycle
}

// SourcePoller owns the pipeline for a single source:
// fetch → drop invalid → dedup check → publish → mark.
type SourcePoller struct {
	fetcher   model.PostingFetcher
	store     model.DedupStore
	publisher model.Publisher
	window    time.Duration
	ttl       time.Duration
	logger    *slog.Logger
}

// NewSourcePoller creates a poller wired with all its dependencies. window is
// passed to FetchRecent and ttl to DedupStore.Mark.
func NewSourcePoller(
	fetcher model.PostingFetcher,
	store model.DedupStore,
	publisher model.Publisher,
	window time.Duration,
	ttl time.Duration,
	logger *slog.Logger,
) *SourcePoller {
	return &SourcePoller{
		fetcher:   fetcher,
		store:     store,
		publisher: publisher,
		window:    window,
		ttl:       ttl,
		logger:    logger.With("source", string(fetcher.Name())),
	}
}

// Source returns the source this poller fetches.
func (p *SourcePoller) Source() model.Source { return p.fetcher.Name() }

// Interval returns the fetcher's poll cadence.
func (p *SourcePoller) Interval() time.Duration { return p.fetcher.PollInterval() }

// Poll runs one cycle. It never returns an error: a fetch failure degrades to
// an empty cycle, and dedup store failures fail open.
func (p *SourcePoller) Poll(ctx context.Context) CycleStats {
	logger := p.logger.With("cycle", uuid.NewString())
	start := time.Now()

	var stats CycleStats
	postings, err := p.fetcher.FetchRecent(ctx, p.window)
	if err != nil {
		logger.Warn("fetch failed", "error", err)
		return stats
	}
	stats.Fetched = len(postings)

	topic := model.TopicFor(p.fetcher.Name())
	for _, posting := range postings {
		if ctx.Err() != nil {
			break
		}
		posting.Source = p.fetcher.Name()
		if !posting.Valid() {
			stats.Invalid++
			logger.Debug("dropping posting without id", "title", posting.Title)
			continue
		}

		key := posting.DedupKey()
		seen, err := p.store.Exists(ctx, key)
		if err != nil {
			logger.Warn("dedup check failed, publishing anyway", "key", key, "error", err)
		} else if seen {
			stats.Duplicate++
			continue
		}

		payload, err := model.EncodePosting(posting)
		if err != nil {
			stats.Invalid++
			logger.Debug("encoding posting", "key", key, "error", err)
			continue
		}
		if err := p.publisher.Publish(ctx, topic, payload); err != nil {
			stats.Failed++
			logger.Error("publish failed", "topic", topic, "key", key, "error", err)
			continue
		}
		stats.Published++

		if err := p.store.Mark(ctx, key, p.ttl); err != nil {
			logger.Warn("marking posting failed", "key", key, "error", err)
		}
	}

	logger.Info("polled source",
		"fetched", stats.Fetched,
		"invalid", stats.Invalid,
		"duplicate", stats.Duplicate,
		"published", stats.Published,
		"failed", stats.Failed,
		"took", time.Since(start).Round(time.Millisecond).String(),
	)
	return stats
}
