// Package eventbus implements the in-process pub/sub backing the Event Bus
// & SSE surface (spec §4.12): ingest publishes a node_added per created chunk
// node and, when it wrote any edges, one aggregate edges_added, broadcast to
// any subscriber whose buffer isn't already full.
//
// There is no direct teacher precedent for pub/sub; this is built in the
// teacher's idiom anyway — small structs guarded by a mutex, exported
// methods taking a context, no external broker.
package eventbus

import (
	"sync"

	"github.com/siherrmann/graphrag/model"
)

// subscriberCapacity bounds each subscriber's channel (spec §4.12).
const subscriberCapacity = 100

// Bus is a namespace-agnostic broadcaster: every subscriber receives every
// published event and filters by Event.Namespace itself if it cares to.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]chan model.Event
	next int
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[int]chan model.Event)}
}

// Subscription is a live subscriber handle; call Close when done listening.
type Subscription struct {
	id      int
	bus     *Bus
	Events  <-chan model.Event
}

// Subscribe registers a new subscriber with a capacity-100 buffered
// channel.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan model.Event, subscriberCapacity)
	id := b.next
	b.next++
	b.subs[id] = ch

	return &Subscription{id: id, bus: b, Events: ch}
}

// Close unregisters the subscription and closes its channel.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	if ch, ok := s.bus.subs[s.id]; ok {
		delete(s.bus.subs, s.id)
		close(ch)
	}
}

// Publish broadcasts ev to every current subscriber. A subscriber whose
// buffer is full has the event dropped rather than blocking the publisher
// (drop-newest on overflow).
func (b *Bus) Publish(ev model.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// SubscriberCount reports the number of live subscribers, mostly for
// metrics/diagnostics.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
