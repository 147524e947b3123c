// Package queue is the bounded handoff between the edge handlers and the observer.
//
// Producers reserve a slot by a compare-and-swap on the tail counter, write the event
// and publish it by bumping the slot sequence. Events are delivered in the order their
// slots were reserved. A full queue never blocks a producer: the event is dropped and counted.
package queue

import (
	"context"
	"errors"
	"sync/atomic"

	"edgewatch/pkg/port"
)

// ErrInvalidCapacity is returned for queues with less than two slots.
var ErrInvalidCapacity = errors.New("queue capacity must be at least 2")

// slot holds one event. seq == position means free for the producer at position,
// seq == position+1 means filled for the consumer at position.
type slot struct {
	seq atomic.Uint64
	evt port.Event
}

// Queue is a bounded multi producer FIFO of port.Event.
type Queue struct {
	slots []slot
	size  uint64

	tail atomic.Uint64
	head atomic.Uint64

	dropped atomic.Uint64

	// notify wakes up a waiting consumer. It holds at most one pending signal.
	notify chan struct{}
}

// New creates a queue which holds up to capacity events.
// A single slot can't tell "free" from "filled", so capacity must be at least 2.
func New(capacity int) (*Queue, error) {
	if capacity < 2 {
		return nil, ErrInvalidCapacity
	}

	q := &Queue{
		slots:  make([]slot, capacity),
		size:   uint64(capacity),
		notify: make(chan struct{}, 1),
	}

	for i := range q.slots {
		q.slots[i].seq.Store(uint64(i))
	}
	return q, nil
}

// ForLines creates a queue sized to absorb a burst where every line toggles
// a few times before the observer drains: 3 events per line.
func ForLines(lines int) (*Queue, error) {
	return New(3 * lines)
}

// TryEnqueue adds e to the queue. It never blocks and never allocates.
// If the queue is full, e is dropped, the drop counter is incremented and false is returned.
func (q *Queue) TryEnqueue(e port.Event) bool {
	pos := q.tail.Load()
	for {
		s := &q.slots[pos%q.size]
		seq := s.seq.Load()

		switch diff := int64(seq - pos); {
		case diff == 0:
			if q.tail.CompareAndSwap(pos, pos+1) {
				s.evt = e
				s.seq.Store(pos + 1)

				select {
				case q.notify <- struct{}{}:
				default:
				}
				return true
			}
			pos = q.tail.Load()
		case diff < 0:
			// the slot still holds the event from one lap ago
			q.dropped.Add(1)
			return false
		default:
			pos = q.tail.Load()
		}
	}
}

// TryDequeue removes the oldest event. ok is false if no event is ready.
func (q *Queue) TryDequeue() (e port.Event, ok bool) {
	pos := q.head.Load()
	for {
		s := &q.slots[pos%q.size]
		seq := s.seq.Load()

		switch diff := int64(seq - (pos + 1)); {
		case diff == 0:
			if q.head.CompareAndSwap(pos, pos+1) {
				e = s.evt
				s.seq.Store(pos + q.size)
				return e, true
			}
			pos = q.head.Load()
		case diff < 0:
			return port.Event{}, false
		default:
			pos = q.head.Load()
		}
	}
}

// Dequeue removes the oldest event and waits for one if the queue is empty.
// It returns ctx.Err() if ctx is cancelled while waiting.
func (q *Queue) Dequeue(ctx context.Context) (port.Event, error) {
	for {
		if e, ok := q.TryDequeue(); ok {
			return e, nil
		}

		select {
		case <-ctx.Done():
			return port.Event{}, ctx.Err()
		case <-q.notify:
		}
	}
}

// Len returns the number of events reserved in the queue.
// It is a snapshot and may be stale by the time it is read.
func (q *Queue) Len() int {
	head := q.head.Load()
	tail := q.tail.Load()
	if tail < head {
		return 0
	}
	return int(tail - head)
}

// Cap returns the capacity of the queue.
func (q *Queue) Cap() int { return int(q.size) }

// Dropped returns the number of events rejected because the queue was full.
func (q *Queue) Dropped() uint64 { return q.dropped.Load() }
