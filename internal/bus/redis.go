package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
)

// RedisBus carries topics over Redis PUBLISH/SUBSCRIBE, so pollers and the
// dispatcher may run in different processes. Redis itself drops messages for
// absent subscribers; a local relay drops them for slow ones.
type RedisBus struct {
	client *redis.Client
	buffer int

	dropped atomic.Int64
	logger  *slog.Logger
}

var _ Bus = (*RedisBus)(nil)

// NewRedisBus wraps an existing client.
func NewRedisBus(client *redis.Client, buffer int, logger *slog.Logger) *RedisBus {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &RedisBus{client: client, buffer: buffer, logger: logger}
}

func (b *RedisBus) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := b.client.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe blocks until Redis confirms the subscription, then relays
// messages until ctx ends or the subscription is closed.
func (b *RedisBus) Subscribe(ctx context.Context, topics ...string) (*Subscription, error) {
	ps := b.client.Subscribe(ctx, topics...)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("redis subscribe %v: %w", topics, err)
	}

	sub := newSubscription(topics, b.buffer, nil)
	go b.relay(ctx, ps, sub)
	return sub, nil
}

func (b *RedisBus) relay(ctx context.Context, ps *redis.PubSub, sub *Subscription) {
	defer close(sub.ch)
	defer ps.Close()

	in := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			sub.Close()
			return
		case <-sub.done:
			return
		case m, ok := <-in:
			if !ok {
				return
			}
			msg := Message{Topic: m.Channel, Payload: []byte(m.Payload)}
			select {
			case sub.ch <- msg:
			default:
				b.dropped.Add(1)
				b.logger.Warn("subscriber buffer full, dropping message", "topic", m.Channel)
			}
		}
	}
}

// Close is a no-op; the client is owned by the caller.
func (b *RedisBus) Close() error { return nil }

// Dropped returns how many relayed messages were discarded locally.
func (b *RedisBus) Dropped() int64 {
	return b.dropped.Load()
}
