package subscription

import (
	"context"
	"errors"
	"sync"
)

var errQueueClosed = errors.New("queue closed")

// queue is a bounded ring buffer with a single consumer and an overflow
// policy for producers.
type queue[T any] struct {
	mu       sync.Mutex
	buf      []T
	head     int
	size     int
	overflow Overflow
	closed   bool

	notify chan struct{} // items available
	space  chan struct{} // room available (Block only)
	done   chan struct{} // closed by close()
}

func newQueue[T any](capacity int, overflow Overflow) *queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &queue[T]{
		buf:      make([]T, capacity),
		overflow: overflow,
		notify:   make(chan struct{}, 1),
		space:    make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// seed appends a replayed value before the consumer starts. It never blocks:
// on a full buffer the oldest value gives way.
func (q *queue[T]) seed(v T) {
	q.mu.Lock()
	if q.size < len(q.buf) {
		q.buf[(q.head+q.size)%len(q.buf)] = v
		q.size++
	} else {
		q.buf[q.head] = v
		q.head = (q.head + 1) % len(q.buf)
	}
	q.mu.Unlock()
	signal(q.notify)
}

// put stores v without waiting, applying overflow to a full buffer. full
// reports that v was not stored because the buffer is full under Block.
func (q *queue[T]) put(v T, overflow Overflow) (accepted bool, dropped int, full bool, err error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false, 0, false, errQueueClosed
	}
	if q.size < len(q.buf) {
		q.buf[(q.head+q.size)%len(q.buf)] = v
		q.size++
		roomLeft := q.size < len(q.buf)
		q.mu.Unlock()
		signal(q.notify)
		if roomLeft && q.overflow == Block {
			// Pass the wakeup on to other blocked producers.
			signal(q.space)
		}
		return true, 0, false, nil
	}

	switch overflow {
	case DropOldest:
		q.buf[q.head] = v
		q.head = (q.head + 1) % len(q.buf)
		q.mu.Unlock()
		signal(q.notify)
		return true, 1, false, nil
	case DropLatest:
		q.mu.Unlock()
		return false, 1, false, nil
	}
	q.mu.Unlock()
	return false, 0, true, nil
}

// push offers v. It reports whether v was accepted and how many values were
// discarded (the evicted oldest value, or v itself). Under Block it waits for
// room until ctx ends or the queue is closed.
func (q *queue[T]) push(ctx context.Context, v T) (accepted bool, dropped int, err error) {
	for {
		accepted, dropped, full, err := q.put(v, q.overflow)
		if !full {
			return accepted, dropped, err
		}

		select {
		case <-q.space:
		case <-q.done:
			return false, 0, errQueueClosed
		case <-ctx.Done():
			return false, 0, ctx.Err()
		}
	}
}

// offer is push for a queue whose consumer has not started yet. It never
// waits: under Block a full buffer gives way like DropOldest.
func (q *queue[T]) offer(v T) (accepted bool, dropped int, err error) {
	overflow := q.overflow
	if overflow == Block {
		overflow = DropOldest
	}
	accepted, dropped, _, err = q.put(v, overflow)
	return accepted, dropped, err
}

// pop removes the oldest value, waiting until one is available. It returns
// false once the queue is closed or ctx ends; values still buffered at that
// point are discarded.
func (q *queue[T]) pop(ctx context.Context) (T, bool) {
	var zero T
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return zero, false
		}
		if q.size > 0 {
			v := q.buf[q.head]
			q.buf[q.head] = zero
			q.head = (q.head + 1) % len(q.buf)
			q.size--
			q.mu.Unlock()
			signal(q.space)
			return v, true
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-q.done:
		case <-ctx.Done():
			return zero, false
		}
	}
}

func (q *queue[T]) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

func (q *queue[T]) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}
