// Package event provides the in-process notification bus connecting the
// document watcher to sandbox sessions. Delivery is synchronous: a publish
// runs every matching handler to completion before returning, so all engine
// work stays on the event that triggered it.
package event

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Topic identifies an event stream.
type Topic string

// Topics published by slicepad components.
const (
	// TopicBufferChanged fires when a scratch buffer's content changes.
	TopicBufferChanged Topic = "buffer.changed"

	// TopicArtifactChanged fires when an original artifact is modified
	// outside the engine while a session holds regions in it.
	TopicArtifactChanged Topic = "artifact.changed"
)

// BufferChanged reports an edit to a scratch buffer.
type BufferChanged struct {
	BufferID string
	At       time.Time
}

// ArtifactChanged reports an external modification of an original artifact.
type ArtifactChanged struct {
	Path string
	At   time.Time
}

// Handler processes a published event.
type Handler func(ctx context.Context, ev any)

// Subscription represents one registered handler.
type Subscription struct {
	id        string
	topic     Topic
	handler   Handler
	cancelled atomic.Bool
}

// ID returns the subscription's unique id.
func (s *Subscription) ID() string {
	return s.id
}

// Topic returns the subscribed topic.
func (s *Subscription) Topic() Topic {
	return s.topic
}

// Cancel deactivates the subscription. Safe to call multiple times.
func (s *Subscription) Cancel() {
	s.cancelled.Store(true)
}

// Bus is a topic-keyed synchronous publish/subscribe bus.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Topic][]*Subscription
	closed bool

	published atomic.Uint64
	delivered atomic.Uint64
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Topic][]*Subscription)}
}

// Subscribe registers a handler for a topic.
func (b *Bus) Subscribe(topic Topic, handler Handler) *Subscription {
	sub := &Subscription{
		id:      uuid.NewString(),
		topic:   topic,
		handler: handler,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		sub.Cancel()
		return sub
	}
	b.subs[topic] = append(b.subs[topic], sub)
	return sub
}

// Unsubscribe cancels and removes a subscription.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	sub.Cancel()

	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[sub.topic]
	for i, s := range list {
		if s.id == sub.id {
			b.subs[sub.topic] = append(list[:i], list[i+1:]...)
			break
		}
	}
}

// Publish delivers the event to every active subscriber of the topic,
// in subscription order, before returning.
func (b *Bus) Publish(ctx context.Context, topic Topic, ev any) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	list := make([]*Subscription, len(b.subs[topic]))
	copy(list, b.subs[topic])
	b.mu.RUnlock()

	b.published.Add(1)
	for _, sub := range list {
		if sub.cancelled.Load() {
			continue
		}
		sub.handler(ctx, ev)
		b.delivered.Add(1)
	}
}

// Close cancels all subscriptions and rejects further publishes.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for _, list := range b.subs {
		for _, sub := range list {
			sub.Cancel()
		}
	}
	b.subs = make(map[Topic][]*Subscription)
}

// Stats reports bus counters.
type Stats struct {
	Published uint64
	Delivered uint64
}

// Stats returns current counters.
func (b *Bus) Stats() Stats {
	return Stats{
		Published: b.published.Load(),
		Delivered: b.delivered.Load(),
	}
}
