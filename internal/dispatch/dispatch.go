// Package dispatch consumes posting topics and delivers each posting to the
// recipients whose keywords match it.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/amishk599/gigradar/internal/bus"
	"github.com/amishk599/gigradar/internal/filter"
	"github.com/amishk599/gigradar/internal/model"
	"github.com/amishk599/gigradar/internal/notifier"
)

// Subscriber hands out bus subscriptions.
type Subscriber interface {
	Subscribe(ctx context.Context, topics ...string) (*bus.Subscription, error)
}

// DispatchStats summarizes the handling of one event.
type DispatchStats struct {
	Eligible  int
	Delivered int
	Failed    int
}

// Service is the consume-match-deliver loop.
type Service struct {
	subscriber Subscriber
	recipients model.RecipientStore
	notifier   model.Notifier
	matcher    *filter.KeywordMatcher
	logger     *slog.Logger
}

// NewService wires the dispatcher.
func NewService(
	subscriber Subscriber,
	recipients model.RecipientStore,
	n model.Notifier,
	logger *slog.Logger,
) *Service {
	return &Service{
		subscriber: subscriber,
		recipients: recipients,
		notifier:   n,
		matcher:    filter.NewKeywordMatcher(),
		logger:     logger,
	}
}

// Run subscribes to every source topic and handles events until ctx is
// cancelled or the subscription closes.
func (s *Service) Run(ctx context.Context) error {
	sub, err := s.Subscribe(ctx)
	if err != nil {
		return err
	}
	s.Serve(ctx, sub)
	return nil
}

// Subscribe opens the subscription Serve consumes. Events published before
// it returns are not delivered.
func (s *Service) Subscribe(ctx context.Context) (*bus.Subscription, error) {
	topics := model.SourceTopics()
	sub, err := s.subscriber.Subscribe(ctx, topics...)
	if err != nil {
		return nil, fmt.Errorf("subscribing to %v: %w", topics, err)
	}
	s.logger.Info("dispatcher subscribed", "topics", topics)
	return sub, nil
}

// Serve handles events from sub until ctx is cancelled or sub closes, then
// closes sub.
func (s *Service) Serve(ctx context.Context, sub *bus.Subscription) {
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutting down dispatcher")
			return
		case msg, ok := <-sub.C():
			if !ok {
				s.logger.Info("dispatcher subscription closed")
				return
			}
			s.Handle(ctx, msg)
		}
	}
}

// Handle processes one bus message. Invalid messages are logged and skipped;
// a failure to reach one recipient never stops delivery to the others.
func (s *Service) Handle(ctx context.Context, msg bus.Message) DispatchStats {
	var stats DispatchStats
	logger := s.logger.With("topic", msg.Topic)

	source, ok := model.SourceFromTopic(msg.Topic)
	if !ok {
		logger.Warn("skipping event", "error", model.ErrUnknownTopic)
		return stats
	}
	posting, err := model.DecodePosting(source, msg.Payload)
	if err != nil {
		logger.Warn("skipping undecodable event", "error", err)
		return stats
	}

	recipients, err := s.recipients.ForSource(ctx, source)
	if err != nil {
		logger.Error("loading recipients", "source", string(source), "error", err)
		return stats
	}

	eligible := s.matcher.Select(recipients, posting)
	stats.Eligible = len(eligible)
	if len(eligible) == 0 {
		logger.Debug("no eligible recipients", "id", posting.ID)
		return stats
	}

	text := notifier.Render(posting)
	for _, r := range eligible {
		if err := s.deliver(ctx, r.ChatID, text, posting.URL); err != nil {
			stats.Failed++
			logger.Error("delivery failed", "chat_id", r.ChatID, "id", posting.ID, "error", err)
			continue
		}
		stats.Delivered++
	}

	logger.Info("dispatched posting",
		"id", posting.ID,
		"eligible", stats.Eligible,
		"delivered", stats.Delivered,
		"failed", stats.Failed,
	)
	return stats
}

// deliver isolates one recipient, turning a notifier panic into an error.
func (s *Service) deliver(ctx context.Context, chatID, text, link string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notifier panicked: %v", r)
		}
	}()
	return s.notifier.Deliver(ctx, chatID, text, link)
}
