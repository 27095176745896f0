package relay

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Queue.Pop once the queue is closed and drained.
var ErrClosed = errors.New("relay: queue closed")

// Queue is a bounded FIFO safe for many producers and one consumer. When full,
// Push evicts the oldest entry instead of blocking the producer.
type Queue[T any] struct {
	mu      sync.Mutex
	buf     []T
	head    int
	size    int
	dropped uint64
	closed  bool
	ready   chan struct{}
}

// NewQueue creates a queue holding at most capacity entries. A capacity below
// one is treated as one.
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}

	return &Queue[T]{
		buf:   make([]T, capacity),
		ready: make(chan struct{}, 1),
	}
}

// Push appends v. It reports whether an older entry was evicted to make room.
// Pushing to a closed queue is a no-op.
func (q *Queue[T]) Push(v T) (evicted bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	if q.size == len(q.buf) {
		var zero T
		q.buf[q.head] = zero
		q.head = (q.head + 1) % len(q.buf)
		q.size--
		q.dropped++
		evicted = true
	}

	q.buf[(q.head+q.size)%len(q.buf)] = v
	q.size++

	// Signalled under the lock so Close cannot race a send on ready.
	select {
	case q.ready <- struct{}{}:
	default:
	}

	return evicted
}

// TryPop removes and returns the oldest entry without blocking.
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.popLocked()
}

// Pop blocks until an entry is available, ctx is done, or the queue is closed
// and empty.
func (q *Queue[T]) Pop(ctx context.Context) (T, error) {
	for {
		q.mu.Lock()
		v, ok := q.popLocked()
		closed := q.closed
		q.mu.Unlock()

		if ok {
			return v, nil
		}

		if closed {
			return v, ErrClosed
		}

		select {
		case <-ctx.Done():
			return v, ctx.Err()
		case <-q.ready:
		}
	}
}

// Len returns the number of queued entries.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.size
}

// Dropped returns how many entries have been evicted since creation.
func (q *Queue[T]) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.dropped
}

// Close stops accepting entries and wakes a blocked Pop. Entries already
// queued can still be popped. Close is idempotent.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.ready)
}

func (q *Queue[T]) popLocked() (T, bool) {
	var zero T
	if q.size == 0 {
		return zero, false
	}

	v := q.buf[q.head]
	q.buf[q.head] = zero
	q.head = (q.head + 1) % len(q.buf)
	q.size--

	return v, true
}
