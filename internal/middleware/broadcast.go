package middleware

import (
	"sync"

	domrepo "LevelCast/internal/domain/repository"
)

// Broadcaster fans stream messages out to WebSocket subscribers with
// latest-wins delivery: a subscriber that cannot keep up loses intermediate
// messages, never the newest one, and never blocks the producer.
type Broadcaster struct {
	metrics domrepo.Metrics
	depth   int

	mu   sync.Mutex
	subs map[*Subscriber]struct{}
}

// Subscriber is one attached consumer. C yields stream messages; the channel
// is closed on Unsubscribe.
type Subscriber struct {
	C chan interface{}
}

type BroadcasterOption func(*Broadcaster)

// WithSubscriberDepth sets the per-subscriber channel depth. Depth 1 gives
// strict latest-wins.
func WithSubscriberDepth(n int) BroadcasterOption {
	return func(b *Broadcaster) {
		if n > 0 {
			b.depth = n
		}
	}
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster(metrics domrepo.Metrics, opts ...BroadcasterOption) *Broadcaster {
	b := &Broadcaster{
		metrics: metrics,
		depth:   1,
		subs:    make(map[*Subscriber]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe attaches a new consumer.
func (b *Broadcaster) Subscribe() *Subscriber {
	s := &Subscriber{C: make(chan interface{}, b.depth)}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	return s
}

// Unsubscribe detaches a consumer and closes its channel.
func (b *Broadcaster) Unsubscribe(s *Subscriber) {
	b.mu.Lock()
	if _, ok := b.subs[s]; ok {
		delete(b.subs, s)
		close(s.C)
	}
	b.mu.Unlock()
}

// Count returns the number of attached subscribers.
func (b *Broadcaster) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Publish delivers msg to every subscriber. When a subscriber's channel is
// full the stalest queued message is evicted so the newest always lands.
func (b *Broadcaster) Publish(msg interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs {
		select {
		case s.C <- msg:
			continue
		default:
		}
		select {
		case <-s.C:
			if b.metrics != nil {
				b.metrics.RecordError("broadcast_evict")
			}
		default:
		}
		select {
		case s.C <- msg:
		default:
			if b.metrics != nil {
				b.metrics.RecordError("broadcast_drop")
			}
		}
	}
}

// Close detaches every subscriber.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs {
		delete(b.subs, s)
		close(s.C)
	}
}
