package task

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueClosed is returned when publishing to a closed Queue.
var ErrQueueClosed = errors.New("event queue closed")

// DefaultQueueSize is the buffer used when NewQueue receives a non-positive size.
const DefaultQueueSize = 16

// Queue is a bounded channel-backed Sink. Publish blocks while the buffer is
// full until the consumer drains it or ctx ends.
type Queue struct {
	ch     chan Event
	mu     sync.RWMutex
	closed bool
	done   chan struct{}
	once   sync.Once
}

// NewQueue creates a queue with the given buffer size.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{ch: make(chan Event, size), done: make(chan struct{})}
}

// Publish implements Sink.
func (q *Queue) Publish(ctx context.Context, ev Event) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- ev:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Events returns the receive side. It is closed after Close.
func (q *Queue) Events() <-chan Event { return q.ch }

// Close stops accepting events and closes the channel once in-flight
// publishers have returned. Safe to call more than once.
func (q *Queue) Close() {
	q.once.Do(func() {
		close(q.done)
		q.mu.Lock()
		q.closed = true
		close(q.ch)
		q.mu.Unlock()
	})
}
