// Package pubsub implements the per-table pub/sub fan-out (§4.4): a topic
// registry of bounded broadcast channels, with lag emulation the way the
// teacher's broadcast.go drops-and-flags a slow client's send buffer rather
// than blocking the publisher.
package pubsub

import (
	"sync"

	"github.com/adred-codev/localcached/internal/metrics"
	"github.com/adred-codev/localcached/internal/wire"
)

// laggedSentinelCap sizes the per-subscriber lag-signal channel: one slot,
// so repeated drops while a lag notification is already pending collapse
// into a single ErrLagged frame (§4.4: sent once, then the subscriber
// resumes at the current position).
const laggedSentinelCap = 1

// subscriber is one SUBSCRIBE connection's view of a topic.
type subscriber struct {
	events chan wire.PushEvent
	lagged chan struct{} // signaled once when this subscriber drops an event
}

// topic is a single broadcast channel: the set of current subscribers
// (each subscriber's buffer is sized by Bus.capacity). Channels are never
// deleted once created (§3).
type topic struct {
	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
}

// Bus is the process-wide topic registry.
type Bus struct {
	mu       sync.RWMutex
	topics   map[string]*topic
	capacity int
	metrics  *metrics.Metrics
}

// New builds an empty Bus. capacity bounds each subscriber's event channel
// (LOCALCACHED_PUBSUB_CAP).
func New(capacity int, m *metrics.Metrics) *Bus {
	return &Bus{
		topics:   make(map[string]*topic),
		capacity: capacity,
		metrics:  m,
	}
}

func (b *Bus) getOrCreateTopic(name string) *topic {
	b.mu.RLock()
	t, ok := b.topics[name]
	b.mu.RUnlock()
	if ok {
		return t
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if t, ok = b.topics[name]; ok {
		return t
	}
	t = &topic{
		subscribers: make(map[*subscriber]struct{}),
	}
	b.topics[name] = t
	return t
}

// Subscription is a live subscriber handle returned by Subscribe.
type Subscription struct {
	bus   *Bus
	topic *topic
	sub   *subscriber
}

// Subscribe lazily creates the topic's channel if this is its first
// subscriber (§3: "a topic exists... only if at least one subscribe has
// ever been served for it").
func (b *Bus) Subscribe(topicName string) *Subscription {
	t := b.getOrCreateTopic(topicName)
	sub := &subscriber{
		events: make(chan wire.PushEvent, b.capacity),
		lagged: make(chan struct{}, laggedSentinelCap),
	}
	t.mu.Lock()
	t.subscribers[sub] = struct{}{}
	t.mu.Unlock()
	return &Subscription{bus: b, topic: t, sub: sub}
}

// Events returns the channel of delivered push events.
func (s *Subscription) Events() <-chan wire.PushEvent { return s.sub.events }

// Lagged returns a channel that receives a signal each time this subscriber
// drops at least one event since the last signal.
func (s *Subscription) Lagged() <-chan struct{} { return s.sub.lagged }

// Close removes the subscriber from its topic.
func (s *Subscription) Close() {
	s.topic.mu.Lock()
	delete(s.topic.subscribers, s.sub)
	s.topic.mu.Unlock()
}

// Publish delivers event to every current subscriber of topicName. If the
// topic has no channel at all — i.e. nobody has ever subscribed to it — it
// is a no-op and is not metered; once a channel exists, every publish is
// metered even when no subscriber is currently attached. Slow subscribers that cannot
// accept the event immediately are marked lagged instead of blocking the
// publisher, the same non-blocking-send-then-flag pattern the teacher's
// Broadcast uses for full client send buffers.
func (b *Bus) Publish(topicName string, event wire.PushEvent) {
	b.mu.RLock()
	t, ok := b.topics[topicName]
	b.mu.RUnlock()
	if !ok {
		return
	}

	t.mu.Lock()
	subs := make([]*subscriber, 0, len(t.subscribers))
	for s := range t.subscribers {
		subs = append(subs, s)
	}
	t.mu.Unlock()

	for _, s := range subs {
		select {
		case s.events <- event:
			continue
		default:
		}
		// Full buffer: drop the oldest buffered event to make room for the
		// newest, so a lagged subscriber resynchronizes at the current
		// position rather than permanently trailing by one buffer's worth.
		select {
		case <-s.events:
		default:
		}
		select {
		case s.events <- event:
		default:
		}
		select {
		case s.lagged <- struct{}{}:
		default:
		}
		if b.metrics != nil {
			b.metrics.IncEventsLagged()
		}
	}

	if b.metrics != nil {
		b.metrics.IncEventsPublished()
	}
}

// TopicCount reports how many topics have ever been subscribed to.
func (b *Bus) TopicCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics)
}
