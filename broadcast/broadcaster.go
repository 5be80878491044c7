package broadcast

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// DefaultBufferSize bounds a subscription's outbound buffer when the
// configuration does not say otherwise.
const DefaultBufferSize = 64

// Metrics observes broadcaster activity. Implemented by metrics.Collector;
// nil disables observation.
type Metrics interface {
	EventPublishedInc()
	EventDroppedInc()
	SubscribersSet(n int)
}

// Broadcaster owns all subscriptions and delivers matching events to each.
// Publish never blocks on a slow subscriber.
type Broadcaster struct {
	mu      sync.RWMutex
	subs    map[string]*Subscription
	bufSize int
	metrics Metrics
	log     *slog.Logger
}

// New returns a broadcaster whose subscriptions buffer bufSize events.
func New(bufSize int, m Metrics) *Broadcaster {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	return &Broadcaster{
		subs:    map[string]*Subscription{},
		bufSize: bufSize,
		metrics: m,
		log:     slog.With("component", "broadcast"),
	}
}

// Subscribe registers a new subscription and starts its delivery goroutine.
func (b *Broadcaster) Subscribe(f Filter) *Subscription {
	sub := newSubscription(uuid.NewString(), f, b.bufSize)
	b.mu.Lock()
	b.subs[sub.ID] = sub
	n := len(b.subs)
	b.mu.Unlock()

	go sub.pump()
	if b.metrics != nil {
		b.metrics.SubscribersSet(n)
	}
	b.log.Debug("subscribed", "id", sub.ID, "subscribers", n)
	return sub
}

// Unsubscribe removes the subscription and closes its receive channel. No
// publish after return will reference it.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	_, known := b.subs[sub.ID]
	delete(b.subs, sub.ID)
	n := len(b.subs)
	b.mu.Unlock()
	if !known {
		return
	}

	sub.close()
	if b.metrics != nil {
		b.metrics.SubscribersSet(n)
	}
	b.log.Debug("unsubscribed", "id", sub.ID, "subscribers", n)
}

// Publish delivers the event to every live subscription whose filter
// matches. Slow subscribers lose their own oldest events instead.
func (b *Broadcaster) Publish(ev Event) {
	b.mu.RLock()
	targets := make([]*Subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.Filter.Matches(ev) {
			targets = append(targets, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range targets {
		if sub.enqueue(ev) && b.metrics != nil {
			b.metrics.EventDroppedInc()
		}
	}
	if b.metrics != nil {
		b.metrics.EventPublishedInc()
	}
}

// Len reports the number of live subscriptions.
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close removes every subscription.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	subs := make([]*Subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		subs = append(subs, sub)
	}
	b.subs = map[string]*Subscription{}
	b.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
	if b.metrics != nil {
		b.metrics.SubscribersSet(0)
	}
}
