// Package bus is the topic-based publish/subscribe transport between source
// pollers and the dispatcher. Delivery is at-most-once and publishing never
// waits for subscribers. Messages published before a subscription exists are
// not replayed.
package bus

import (
	"context"
	"errors"
	"sync"

	"github.com/amishk599/gigradar/internal/model"
)

// ErrClosed is returned when publishing on or subscribing to a closed bus.
var ErrClosed = errors.New("bus closed")

// Message is one payload received on a topic.
type Message struct {
	Topic   string
	Payload []byte
}

// Bus publishes payloads to named topics and hands out subscriptions.
type Bus interface {
	model.Publisher
	Subscribe(ctx context.Context, topics ...string) (*Subscription, error)
	Close() error
}

// Subscription is an unbounded stream of messages for a set of topics. The
// stream ends when the subscription or its bus is closed, or its context ends.
// Restarting means subscribing again.
type Subscription struct {
	topics []string
	ch     chan Message
	done   chan struct{}
	once   sync.Once
	stop   func()
}

func newSubscription(topics []string, buffer int, stop func()) *Subscription {
	return &Subscription{
		topics: topics,
		ch:     make(chan Message, buffer),
		done:   make(chan struct{}),
		stop:   stop,
	}
}

// C returns the message channel. It is closed when the subscription ends.
func (s *Subscription) C() <-chan Message { return s.ch }

// Topics returns the subscribed topic names.
func (s *Subscription) Topics() []string { return s.topics }

// Close ends the subscription. Safe to call more than once.
func (s *Subscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		if s.stop != nil {
			s.stop()
		}
	})
	return nil
}
