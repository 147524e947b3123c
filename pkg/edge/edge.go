// Package edge is the handler called by a gpio backend for every edge on a watched line.
//
// The handler runs in the backend's event delivery context and may preempt the observer,
// so it only gets the capabilities it is allowed to use: a clock read, a level read and a
// non-blocking enqueue. Nothing it touches blocks or allocates.
package edge

import (
	"sync/atomic"

	"edgewatch/pkg/port"
)

// Clock is the interrupt safe part of clock.Clock.
type Clock interface {
	NowUs() int64
}

// Levels reads the instantaneous level of a line without blocking.
type Levels interface {
	Level(line int) port.StateType
}

// Sink accepts events without blocking and reports whether the event was kept.
type Sink interface {
	TryEnqueue(port.Event) bool
}

// Stamper is implemented by clocks sharing the CLOCK_MONOTONIC base of kernel event timestamps.
// StampUs converts a kernel timestamp in ns to µs since the clock epoch.
type Stamper interface {
	StampUs(ns int64) int64
}

// Handler stamps edges and hands them to the sink.
type Handler struct {
	clock   Clock
	stamper Stamper
	levels  Levels
	sink    Sink

	handled atomic.Uint64
	dropped atomic.Uint64
}

// New creates a handler. All three collaborators must be non-nil.
// If c is a Stamper, kernel timestamps passed to HandleAt are used instead of reading c.
func New(c Clock, l Levels, s Sink) *Handler {
	h := &Handler{clock: c, levels: l, sink: s}
	h.stamper, _ = c.(Stamper)
	return h
}

// Handle is called for every edge on line. The timestamp is read first, so it is never
// later than the enqueue. It returns false if the event was dropped.
func (h *Handler) Handle(line int) bool {
	return h.enqueue(line, h.clock.NowUs())
}

// HandleAt is called for an edge the kernel stamped at ns on CLOCK_MONOTONIC.
// The stamp is taken when the interrupt fires, so it carries no scheduling delay of the
// delivering goroutine. Without a Stamper clock it falls back to Handle.
func (h *Handler) HandleAt(line int, ns int64) bool {
	if h.stamper == nil {
		return h.Handle(line)
	}
	return h.enqueue(line, h.stamper.StampUs(ns))
}

func (h *Handler) enqueue(line int, t int64) bool {
	evt := port.Event{
		Line:      line,
		Type:      port.EdgeOf(h.levels.Level(line)),
		Timestamp: t,
	}

	h.handled.Add(1)
	if !h.sink.TryEnqueue(evt) {
		h.dropped.Add(1)
		return false
	}
	return true
}

// Handled returns the number of edges seen, including the dropped ones.
func (h *Handler) Handled() uint64 { return h.handled.Load() }

// Dropped returns the number of edges lost because the sink was full.
func (h *Handler) Dropped() uint64 { return h.dropped.Load() }
