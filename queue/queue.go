package queue

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"
)

// ErrClosed is returned by Enqueue once the queue has been closed.
var ErrClosed = errors.New("queue: enqueue on closed queue")

// Queue is a generic, unbounded FIFO queue that is safe for concurrent use.
//
// Readers block in Dequeue until an item is available. Close marks the end of
// the stream: items already queued can still be dequeued, after which Dequeue
// and TryDequeue report io.EOF.
type Queue[T any] struct {
	notify chan struct{}
	done   chan struct{}

	mu     sync.Mutex
	closed bool
	items  []T
}

// New creates and returns a new Queue instance.
func New[T any]() *Queue[T] {
	return &Queue[T]{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
		items:  []T{},
	}
}

// Enqueue adds an element to the end of the queue and wakes a blocked reader.
// It returns ErrClosed if the queue has been closed.
func (q *Queue[T]) Enqueue(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	q.items = append(q.items, item)
	q.signalLocked()
	return nil
}

// Close marks the end of the queue. It is safe to call more than once; only
// the first call has an effect.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.notify)
	close(q.done)
}

// Dequeue removes and returns the front element of the queue, blocking until
// one is available. It returns io.EOF once the queue is closed and drained,
// or ctx.Err() if ctx is cancelled while waiting.
func (q *Queue[T]) Dequeue(ctx context.Context) (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 {
		if q.closed {
			var zero T
			return zero, io.EOF
		}
		q.mu.Unlock()
		select {
		case <-q.notify:
			q.mu.Lock()
		case <-ctx.Done():
			q.mu.Lock()
			var zero T
			return zero, ctx.Err()
		}
	}
	return q.popLocked(), nil
}

// TryDequeue removes and returns the front element without blocking.
// The boolean is false if the queue is currently empty. The error is io.EOF
// if the queue is closed and drained.
func (q *Queue[T]) TryDequeue() (T, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		var zero T
		if q.closed {
			return zero, false, io.EOF
		}
		return zero, false, nil
	}
	return q.popLocked(), true, nil
}

// Peek returns the front element without removing it from the queue.
// The boolean indicates whether an element was found (false if the queue is empty).
func (q *Queue[T]) Peek() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		var zero T
		return zero, false
	}
	return q.items[0], true
}

// Len returns the number of elements in the queue.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// IsEmpty returns true if the queue is empty.
func (q *Queue[T]) IsEmpty() bool {
	return q.Len() == 0
}

// Closed reports whether Close has been called.
func (q *Queue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Done returns a channel that is closed when the queue is closed.
func (q *Queue[T]) Done() <-chan struct{} {
	return q.done
}

func (q *Queue[T]) popLocked() T {
	item := q.items[0]
	var zero T
	q.items[0] = zero
	q.items = q.items[1:]
	if len(q.items) > 0 {
		// Pass the wakeup on in case another reader is parked.
		q.signalLocked()
	}
	return item
}

func (q *Queue[T]) signalLocked() {
	if q.closed {
		return
	}
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
