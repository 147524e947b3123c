// Package clock provides the µs time source used to stamp edge events.
package clock

import (
	"errors"
	"sync/atomic"
	"time"
)

// ErrUnsupported is returned if a clock is not available on this platform.
var ErrUnsupported = errors.New("clock not supported on this platform")

// Clock returns microseconds since an epoch, which can be moved to "now" by Reset.
// NowUs must be safe to call from the edge handler: no blocking, no allocation.
type Clock interface {
	NowUs() int64
	Reset()
}

// System is a Clock on top of the monotonic reading of the go runtime.
type System struct {
	// base is captured once, all readings are relative to it
	base time.Time
	// epoch is the offset to base in ns, moved by Reset
	epoch atomic.Int64
}

// NewSystem creates a System clock with its epoch at the time of the call.
func NewSystem() *System {
	return &System{base: time.Now()}
}

// NowUs returns the µs elapsed since the last Reset.
func (c *System) NowUs() int64 {
	return (time.Since(c.base).Nanoseconds() - c.epoch.Load()) / int64(time.Microsecond)
}

// Reset zeroes the epoch.
func (c *System) Reset() {
	c.epoch.Store(time.Since(c.base).Nanoseconds())
}

// Manual is a Clock which only moves when told to. It is used by tests and the emulator.
type Manual struct {
	now atomic.Int64
}

// NewManual creates a Manual clock reading t µs.
func NewManual(t int64) *Manual {
	c := &Manual{}
	c.now.Store(t)
	return c
}

func (c *Manual) NowUs() int64 { return c.now.Load() }

func (c *Manual) Reset() { c.now.Store(0) }

// Set moves the clock to t µs.
func (c *Manual) Set(t int64) { c.now.Store(t) }

// Advance moves the clock by d µs and returns the new reading.
func (c *Manual) Advance(d int64) int64 { return c.now.Add(d) }
