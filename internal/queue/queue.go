// Package queue provides a bounded in-memory queue with context-aware
// operations. Capacity enforces backpressure: a full queue blocks producers,
// it never drops work.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrClosed is returned by Dequeue once the queue is closed and drained.
// Close is the end-of-data signal between a producer and its consumers,
// distinct from any data value.
var ErrClosed = errors.New("queue closed")

// Queue is a bounded blocking queue safe for concurrent producers and
// consumers.
type Queue[T any] struct {
	ch      chan T
	closeMu sync.Mutex
	closed  bool
}

// New constructs a queue with the provided capacity.
func New[T any](capacity int) *Queue[T] {
	return &Queue[T]{
		ch: make(chan T, capacity),
	}
}

// Enqueue pushes an item, blocking while the queue is full, or returns if
// the context ends first.
func (q *Queue[T]) Enqueue(ctx context.Context, item T) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- item:
		return nil
	}
}

// Dequeue pops the next item, blocking while the queue is empty. It returns
// ErrClosed once the queue is closed and every item has been consumed.
func (q *Queue[T]) Dequeue(ctx context.Context) (T, error) {
	var zero T
	select {
	case <-ctx.Done():
		return zero, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case item, ok := <-q.ch:
		if !ok {
			return zero, ErrClosed
		}
		return item, nil
	}
}

// Len reports the number of buffered items. Observational only; the value
// is stale the moment it is returned.
func (q *Queue[T]) Len() int {
	return len(q.ch)
}

// Close marks the end of data. Buffered items remain dequeueable; consumers
// see ErrClosed after the last one. Closing twice is safe, enqueueing after
// Close is not.
func (q *Queue[T]) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
