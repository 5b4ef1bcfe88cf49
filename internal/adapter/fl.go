package adapter

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/amishk599/gigradar/internal/model"
)

// DefaultFLFeedURL is the public FL.ru projects RSS feed.
const DefaultFLFeedURL = "https://www.fl.ru/rss/all.xml"

// FLAdapter fetches projects from the FL.ru RSS feed. Recency is judged by
// each item's published timestamp.
type FLAdapter struct {
	feedURL  string
	interval time.Duration
	client   *http.Client
	parser   *gofeed.Parser
	logger   *slog.Logger
	now      func() time.Time
}

// NewFLAdapter creates an adapter for the feed at feedURL.
func NewFLAdapter(feedURL string, interval time.Duration, client *http.Client, logger *slog.Logger) *FLAdapter {
	if feedURL == "" {
		feedURL = DefaultFLFeedURL
	}
	return &FLAdapter{
		feedURL:  feedURL,
		interval: interval,
		client:   client,
		parser:   gofeed.NewParser(),
		logger:   logger,
		now:      time.Now,
	}
}

func (a *FLAdapter) Name() model.Source          { return model.SourceFL }
func (a *FLAdapter) PollInterval() time.Duration { return a.interval }

// FetchRecent retrieves the feed and returns items published within window.
func (a *FLAdapter) FetchRecent(ctx context.Context, window time.Duration) ([]model.Posting, error) {
	body, err := get(ctx, a.client, a.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fl fetch: %w", err)
	}

	feed, err := a.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("fl fetch: parsing feed: %w", err)
	}

	now := a.now()
	postings := make([]model.Posting, 0, len(feed.Items))
	for _, item := range feed.Items {
		published := item.PublishedParsed
		if published == nil {
			published = item.UpdatedParsed
		}
		if published == nil {
			a.logger.Debug("fl item without date, skipping", "title", item.Title)
			continue
		}
		if !withinWindow(*published, now, window) {
			continue
		}

		id := item.GUID
		if id == "" {
			id = item.Link
		}

		description := extractText(item.Description)
		budget := ParseBudget(item.Title)
		if budget.Empty() {
			budget = ParseBudget(description)
		}

		t := published.UTC()
		postings = append(postings, model.Posting{
			ID:          id,
			Source:      model.SourceFL,
			Title:       extractText(item.Title),
			Description: description,
			URL:         item.Link,
			Budget:      budget,
			PublishedAt: &t,
		})
	}

	return postings, nil
}
