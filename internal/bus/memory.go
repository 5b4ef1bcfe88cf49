package bus

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

const defaultBuffer = 256

// MemoryBus is an in-process bus. Each subscriber owns a buffered channel;
// publishing is a non-blocking send that drops the message for a subscriber
// whose buffer is full.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	buffer int
	closed bool

	dropped atomic.Int64
	logger  *slog.Logger
}

var _ Bus = (*MemoryBus)(nil)

// NewMemoryBus creates a bus whose subscribers buffer up to buffer messages.
func NewMemoryBus(buffer int, logger *slog.Logger) *MemoryBus {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &MemoryBus{
		subs:   make(map[*Subscription]struct{}),
		buffer: buffer,
		logger: logger,
	}
}

// Publish fans payload out to every current subscriber of topic.
func (b *MemoryBus) Publish(_ context.Context, topic string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	msg := Message{Topic: topic, Payload: payload}
	for sub := range b.subs {
		if !subscribed(sub, topic) {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
			b.dropped.Add(1)
			b.logger.Warn("subscriber buffer full, dropping message", "topic", topic)
		}
	}
	return nil
}

// Subscribe registers a subscription for topics. It ends when ctx is done.
func (b *MemoryBus) Subscribe(ctx context.Context, topics ...string) (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}

	var sub *Subscription
	sub = newSubscription(topics, b.buffer, func() { b.remove(sub) })
	b.subs[sub] = struct{}{}

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()
	return sub, nil
}

// remove detaches sub and closes its channel. Publish holds the read lock
// while sending, so closing under the write lock cannot race a send.
func (b *MemoryBus) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.ch)
	}
}

// Close ends every subscription and rejects further use.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := make([]*Subscription, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
	return nil
}

// Dropped returns how many deliveries were discarded because a subscriber
// was not keeping up.
func (b *MemoryBus) Dropped() int64 {
	return b.dropped.Load()
}

func subscribed(sub *Subscription, topic string) bool {
	for _, t := range sub.topics {
		if t == topic {
			return true
		}
	}
	return false
}
