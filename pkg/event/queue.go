package event

import (
	"github.com/project-ocre/ocre/pkg/metrics"
	"github.com/project-ocre/ocre/pkg/ocreerr"
)

// Queue is a bounded, multi-producer multi-consumer pipe of events. A
// buffered channel already gives us everything the original spinlock/mutex
// ring buffer did — non-blocking push, FIFO order, a wake-up signal for
// waiting consumers — so that's the entire implementation.
//
// Per-producer FIFO order is guaranteed. Because there's a single
// underlying channel, order across producers is also preserved, which is a
// strictly stronger guarantee than required.
type Queue struct {
	ch chan Event
}

// NewQueue returns a queue that holds up to capacity events before Publish
// starts failing.
func NewQueue(capacity int) *Queue {
	return &Queue{ch: make(chan Event, capacity)}
}

// Publish enqueues evt without blocking. If the queue is full it returns
// ocreerr.ResourceExhausted and evt is dropped — the caller (a resource
// manager) is expected to log and move on, not retry.
func (q *Queue) Publish(evt Event) error {
	select {
	case q.ch <- evt:
		metrics.EventsPublishedTotal.WithLabelValues(evt.Type().String()).Inc()
		return nil
	default:
		metrics.EventsDroppedTotal.WithLabelValues(evt.Type().String()).Inc()
		return ocreerr.ResourceExhaustedf("event queue is full (capacity %d)", cap(q.ch))
	}
}

// Pop removes and returns the oldest event without blocking. ok is false if
// the queue is currently empty. This is the primitive a sandboxed module's
// get_event host call is built on.
func (q *Queue) Pop() (evt Event, ok bool) {
	select {
	case evt = <-q.ch:
		return evt, true
	default:
		return nil, false
	}
}

// C returns the underlying channel so a dispatch pool can block-wait for
// the next event instead of busy-polling Pop.
func (q *Queue) C() <-chan Event {
	return q.ch
}

// Len reports how many events are currently queued.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Cap reports the queue's capacity.
func (q *Queue) Cap() int {
	return cap(q.ch)
}
