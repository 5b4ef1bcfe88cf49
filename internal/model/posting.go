package model

import (
	"context"
	"strings"
	"time"
)

// Source identifies a marketplace. It prefixes dedup keys and names topics.
type Source string

const (
	SourceFL         Source = "fl"
	SourceKwork      Source = "kwork"
	SourceFreelancer Source = "freelancer"
)

// Sources lists every marketplace in a stable order.
var Sources = []Source{SourceFL, SourceKwork, SourceFreelancer}

// Valid reports whether s is a known marketplace.
func (s Source) Valid() bool {
	for _, known := range Sources {
		if s == known {
			return true
		}
	}
	return false
}

// Label is the human-facing marketplace name.
func (s Source) Label() string {
	switch s {
	case SourceFL:
		return "FL"
	case SourceKwork:
		return "Kwork"
	case SourceFreelancer:
		return "Freelancer"
	default:
		return string(s)
	}
}

// Unified representation of a project listing from any marketplace.
type Posting struct {
	ID          string     // unique per source; empty means invalid
	Source      Source     // marketplace the posting came from
	Title       string     // listing title
	Description string     // free text, used with Title for keyword matching
	URL         string     // link to the listing
	Budget      Budget     // optional amounts and currency
	PublishedAt *time.Time // best-effort, only used by the adapter's recency filter
}

// Valid reports whether the posting can be deduplicated and published.
func (p Posting) Valid() bool {
	return strings.TrimSpace(p.ID) != ""
}

// DedupKey is the "{source}:{id}" key marking p as published.
func (p Posting) DedupKey() string {
	return DedupKey(p.Source, p.ID)
}

// Budget holds optional amounts. Absent values stay nil, never zero.
type Budget struct {
	Minimum  *float64
	Maximum  *float64
	Currency *string
}

// Empty reports whether no amount is known.
func (b Budget) Empty() bool {
	return b.Minimum == nil && b.Maximum == nil
}

// DedupKey builds the "{source}:{id}" suppression key.
func DedupKey(source Source, id string) string {
	return string(source) + ":" + id
}

// PostingFetcher fetches recent postings from one marketplace.
type PostingFetcher interface {
	Name() Source
	PollInterval() time.Duration
	// FetchRecent returns postings observed within window. Callers treat an
	// error the same as an empty result.
	FetchRecent(ctx context.Context, window time.Duration) ([]Posting, error)
}

// DedupStore is a TTL-backed set used as check-then-set around publish.
type DedupStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string, ttl time.Duration) error
}

// Publisher sends a payload to a named topic without waiting for consumers.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// RecipientStore returns a point-in-time snapshot of recipients opted into a source.
type RecipientStore interface {
	ForSource(ctx context.Context, source Source) ([]Recipient, error)
}

// Notifier delivers one rendered message to one recipient.
type Notifier interface {
	Deliver(ctx context.Context, chatID, text, link string) error
}
