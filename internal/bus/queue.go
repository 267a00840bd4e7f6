package bus

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrQueueFull   = errors.New("event queue full")
	ErrQueueClosed = errors.New("event queue closed")
)

// Event is the unit passed through the in-memory bus.
type Event struct {
	Topic      string
	Payload    any
	EnqueuedAt time.Time
}

// Queue is a bounded FIFO event queue. Consumers block on receive, so an
// empty queue costs nothing; there is no sleep-poll anywhere.
type Queue struct {
	ch     chan Event
	mu     sync.RWMutex
	closed bool
}

// NewQueue allocates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan Event, capacity)}
}

// Publish enqueues an event, stamping the enqueue time when unset.
// It blocks while the queue is full.
func (q *Queue) Publish(ctx context.Context, e Event) error {
	if e.EnqueuedAt.IsZero() {
		e.EnqueuedAt = time.Now()
	}

	// The read lock spans the send so Close cannot close the channel
	// between the closed check and the enqueue.
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryPublish enqueues an event without blocking.
func (q *Queue) TryPublish(e Event) error {
	if e.EnqueuedAt.IsZero() {
		e.EnqueuedAt = time.Now()
	}

	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops the queue from accepting new events. Idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Run consumes events until the context is done or the queue is closed
// and drained. Multiple goroutines may call Run on the same queue; each
// event is delivered to exactly one of them, in enqueue order, but no
// ordering holds across concurrent consumers.
func (q *Queue) Run(ctx context.Context, handler func(Event)) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-q.ch:
			if !ok {
				return
			}
			handler(e)
		}
	}
}
