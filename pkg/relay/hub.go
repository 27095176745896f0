package relay

import (
	"context"
	"sync"
)

// DefaultBacklog is the number of undelivered frames a subscriber may fall
// behind by before its oldest frames are dropped.
const DefaultBacklog = 100

// Subscription receives frames published on a Hub after it was created.
type Subscription struct {
	q        *Queue[[]byte]
	reported uint64
}

// Next blocks until the next frame is available, ctx is done, or the
// subscription is cancelled.
func (s *Subscription) Next(ctx context.Context) ([]byte, error) {
	return s.q.Pop(ctx)
}

// Lagged returns the number of frames dropped for this subscriber since the
// previous call to Lagged.
func (s *Subscription) Lagged() uint64 {
	total := s.q.Dropped()
	n := total - s.reported
	s.reported = total

	return n
}

// Hub fans out frames to every active subscriber. It is safe for concurrent
// use. A subscriber that falls more than the backlog behind loses its oldest
// unread frames; publishers never block on slow subscribers.
type Hub struct {
	mu      sync.Mutex
	backlog int
	subs    map[*Subscription]struct{}
}

// NewHub creates a Hub whose subscribers buffer up to backlog frames.
func NewHub(backlog int) *Hub {
	if backlog < 1 {
		backlog = DefaultBacklog
	}

	return &Hub{
		backlog: backlog,
		subs:    make(map[*Subscription]struct{}),
	}
}

// Subscribe registers a new subscriber. It only observes frames published
// after this call returns.
func (h *Hub) Subscribe() *Subscription {
	sub := &Subscription{q: NewQueue[[]byte](h.backlog)}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	return sub
}

// Unsubscribe removes the subscription and wakes its reader. Calling it more
// than once is harmless.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		sub.q.Close()
	}
}

// Publish delivers frame to all subscribers and returns how many received it.
// Publishes are serialized so every subscriber sees the same order.
func (h *Hub) Publish(frame []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs {
		sub.q.Push(frame)
	}

	return len(h.subs)
}

// Len returns the number of active subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.subs)
}
