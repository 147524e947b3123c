// Package observer is the deferred side of the edge pipeline.
// An Observer drains the handoff queue and feeds every event to exactly one Consumer.
package observer

import (
	"context"
	"sync/atomic"

	"edgewatch/pkg/port"

	"github.com/womat/debug"
)

// Source is the consumer side of the handoff queue.
type Source interface {
	// Dequeue waits for the next event until ctx is done.
	Dequeue(ctx context.Context) (port.Event, error)
}

// Consumer processes dequeued events. It is only called from the observer goroutine.
type Consumer interface {
	Consume(port.Event)
}

// Observer connects a Source to a Consumer.
type Observer struct {
	src      Source
	consumer Consumer
	consumed atomic.Uint64
}

// New creates a new observer.
func New(src Source, c Consumer) *Observer {
	return &Observer{src: src, consumer: c}
}

// Run waits for events and hands them to the consumer until ctx is cancelled.
// The wait for the next event is its only suspension point. Run returns ctx.Err().
func (o *Observer) Run(ctx context.Context) error {
	debug.InfoLog.Print("observer started")
	defer debug.InfoLog.Printf("observer stopped after %d events", o.consumed.Load())

	for {
		e, err := o.src.Dequeue(ctx)
		if err != nil {
			return err
		}

		debug.TraceLog.Printf("event: %v", e)
		o.consumer.Consume(e)
		o.consumed.Add(1)
	}
}

// Consumed returns the number of events handed to the consumer.
func (o *Observer) Consumed() uint64 { return o.consumed.Load() }
