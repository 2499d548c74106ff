// Package eventqueue implements the Event Queue (C1): a bounded, closable,
// multicast-with-tap event bus. Grounded on the teacher's
// pkg/service/sse/broker.go SSEBroker — a map of per-subscriber channels
// guarded by a sync.RWMutex with a non-blocking fan-out — generalized from
// broadcast-to-HTTP-byte-channels to broadcast-to-child-queues, and from
// silent drop to recorded, logged overflow (§4.1).
package eventqueue

import (
	"context"
	"errors"
	"sync"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel/metric"

	"github.com/theapemachine/a2a-engine/pkg/a2a"
)

// DefaultCapacity is the default per-queue buffer size (eventQueue.maxSize, §6).
const DefaultCapacity = 1024

var ErrClosed = errors.New("eventqueue: closed")

// Queue is a bounded multicast buffer of Events with child tap queues.
type Queue struct {
	capacity int

	mu       sync.RWMutex
	buf      chan a2a.Event
	children []*Queue
	closed   bool
	closeErr error

	overflowCounter metric.Int64Counter
}

// New allocates a Queue with the given capacity (0 uses DefaultCapacity).
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &Queue{
		capacity: capacity,
		buf:      make(chan a2a.Event, capacity),
	}
}

// WithOverflowCounter attaches an otel counter incremented on every dropped
// event. Queues created by internal/queuemanager carry no counter, so their
// overflows are only logged.
func (q *Queue) WithOverflowCounter(c metric.Int64Counter) *Queue {
	q.overflowCounter = c
	return q
}

// Enqueue fans event out to this queue's own subscriber channel and to
// every currently-registered child, under the read lock — concurrent with
// Tap, which takes the write lock, so a child either observes every event
// enqueued after it was created, or none enqueued before (§4.1 "Tap
// semantics").
func (q *Queue) Enqueue(ctx context.Context, event a2a.Event) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrClosed
	}

	q.offer(event)

	for _, child := range q.children {
		child.Enqueue(ctx, event)
	}

	return nil
}

// offer writes to the buffered channel without blocking; a full channel
// means a slow consumer, so the event is dropped from this queue only and
// the overflow is logged and counted (§4.1 "Capacity").
func (q *Queue) offer(event a2a.Event) {
	select {
	case q.buf <- event:
	default:
		log.Error("eventqueue overflow, dropping event", "kind", event.Kind)
		if q.overflowCounter != nil {
			q.overflowCounter.Add(context.Background(), 1)
		}
	}
}

// Subscribe returns the receive-only channel subscribers read from. It is
// closed by Close/CloseWithError.
func (q *Queue) Subscribe() <-chan a2a.Event {
	return q.buf
}

// Tap creates a new child Queue which receives all future events enqueued
// to q, atomically with respect to concurrent Enqueue calls (§4.1).
func (q *Queue) Tap() *Queue {
	q.mu.Lock()
	defer q.mu.Unlock()

	child := New(q.capacity)
	if q.closed {
		child.Close()
		return child
	}

	q.children = append(q.children, child)
	return child
}

// Close is idempotent; it closes this queue's subscriber channel and
// recurses into every child (§4.1).
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closeLocked(nil)
}

// CloseWithError is idempotent; it records err (retrievable via Err) and
// closes this queue and every child.
func (q *Queue) CloseWithError(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closeLocked(err)
}

func (q *Queue) closeLocked(err error) {
	if q.closed {
		return
	}
	q.closed = true
	q.closeErr = err
	close(q.buf)

	for _, child := range q.children {
		child.CloseWithError(err)
	}
}

// Err returns the error passed to CloseWithError, if any.
func (q *Queue) Err() error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closeErr
}

func (q *Queue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
