//go:build linux

package clock

import (
	"fmt"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// Monotonic reads CLOCK_MONOTONIC directly, the clock the kernel uses for gpio line event timestamps.
type Monotonic struct {
	epoch atomic.Int64
}

// NewMonotonic reads CLOCK_MONOTONIC once and returns a clock with its epoch set to now.
// A failing read means the clock is unusable; the caller must not start monitoring.
func NewMonotonic() (*Monotonic, error) {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return nil, fmt.Errorf("clock_gettime(CLOCK_MONOTONIC): %w", err)
	}

	c := &Monotonic{}
	c.epoch.Store(ts.Nano())
	return c, nil
}

// NowUs returns the µs elapsed since the last Reset.
// The clock was read at creation, so a read error is not expected and yields the epoch.
func (c *Monotonic) NowUs() int64 {
	return (c.nano() - c.epoch.Load()) / 1000
}

// StampUs converts a CLOCK_MONOTONIC reading, e.g. a gpio line event timestamp, to µs since the epoch.
func (c *Monotonic) StampUs(ns int64) int64 {
	return (ns - c.epoch.Load()) / 1000
}

// Reset zeroes the epoch.
func (c *Monotonic) Reset() {
	c.epoch.Store(c.nano())
}

func (c *Monotonic) nano() int64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return c.epoch.Load()
	}
	return ts.Nano()
}
