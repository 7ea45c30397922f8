// Package feed delivers metrics snapshot changes to subscribers.
//
// Delivery is at-most-once per subscriber: each subscriber has a small
// queue and a slow subscriber loses notifications instead of blocking the
// writer. There is no replay log; a subscriber that misses a change
// recovers with an explicit fetch. Notifications are not ordered, so a
// subscriber must treat whatever arrives as authoritative.
package feed

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"execdash/internal/logger"
	"execdash/internal/snapshot"
	"execdash/internal/telemetry"
)

// Unsubscribe releases a subscription. It is idempotent.
type Unsubscribe func()

// Publisher accepts snapshot changes from the store.
type Publisher interface {
	Publish(ctx context.Context, s snapshot.Snapshot) error
}

// Subscriber is the consumer side of the feed.
type Subscriber interface {
	Subscribe(fn func(snapshot.Snapshot)) Unsubscribe
}

const defaultBuffer = 16

// Hub is the in-process change feed.
type Hub struct {
	mu     sync.RWMutex
	log    *logger.Logger
	subs   map[uuid.UUID]*subscription
	buffer int
	closed bool
}

type subscription struct {
	id     uuid.UUID
	fn     func(snapshot.Snapshot)
	queue  chan snapshot.Snapshot
	done   chan struct{}
	exited chan struct{}
	once   sync.Once
}

// Option configures a Hub.
type Option func(*Hub)

// WithBuffer sets the per-subscriber queue length.
func WithBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// NewHub creates an empty hub.
func NewHub(log *logger.Logger, opts ...Option) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	h := &Hub{
		log:    log.With("component", "FeedHub"),
		subs:   make(map[uuid.UUID]*subscription),
		buffer: defaultBuffer,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Subscribe registers fn. fn runs on a goroutine owned by the
// subscription, one notification at a time. The returned Unsubscribe
// waits for an in-flight fn to return, so it must not be called from
// inside fn.
func (h *Hub) Subscribe(fn func(snapshot.Snapshot)) Unsubscribe {
	sub := &subscription{
		id:     uuid.New(),
		fn:     fn,
		queue:  make(chan snapshot.Snapshot, h.buffer),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return func() {}
	}
	h.subs[sub.id] = sub
	h.mu.Unlock()

	telemetry.FeedSubscribers.Inc()
	go sub.run()
	h.log.Debug("feed subscriber added", "subscriberID", sub.id)

	return func() { h.remove(sub) }
}

// Publish fans s out to every current subscriber. It never blocks on a
// slow subscriber and never fails.
func (h *Hub) Publish(_ context.Context, s snapshot.Snapshot) error {
	h.Broadcast(s)
	return nil
}

// Broadcast is Publish without a context, used by transport forwarders.
func (h *Hub) Broadcast(s snapshot.Snapshot) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		select {
		case sub.queue <- s.Clone():
		default:
			telemetry.FeedDeliveries.WithLabelValues("dropped").Inc()
			h.log.Warn("dropping snapshot notification; subscriber queue full", "subscriberID", sub.id)
		}
	}
}

// Len returns the number of active subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close removes every subscription and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	subs := make([]*subscription, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		h.remove(s)
	}
}

func (h *Hub) remove(sub *subscription) {
	sub.once.Do(func() {
		h.mu.Lock()
		delete(h.subs, sub.id)
		h.mu.Unlock()

		close(sub.done)
		<-sub.exited
		telemetry.FeedSubscribers.Dec()
		h.log.Debug("feed subscriber removed", "subscriberID", sub.id)
	})
}

func (s *subscription) run() {
	defer close(s.exited)
	for {
		select {
		case <-s.done:
			return
		case snap := <-s.queue:
			select {
			case <-s.done:
				return
			default:
			}
			s.fn(snap)
			telemetry.FeedDeliveries.WithLabelValues("delivered").Inc()
		}
	}
}
