//go:build linux

package raspberry

import (
	"fmt"
	"sync/atomic"

	"edgewatch/pkg/port"

	"github.com/warthog618/gpiod"
	"github.com/womat/debug"
)

// GpiodChip watches lines of a GPIO character device.
type GpiodChip struct {
	chip  *gpiod.Chip
	lines []*gpiod.Line
	// levels holds the level after the last kernel event per line
	levels [MaxLines]atomic.Int32
}

// openGpiod opens a GPIO character device, e.g. gpiochip0.
func openGpiod(device string) (*GpiodChip, error) {
	c, err := gpiod.NewChip(device)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", device, err)
	}

	chip := &GpiodChip{chip: c}
	for i := range chip.levels {
		chip.levels[i].Store(int32(port.Invalid))
	}
	return chip, nil
}

// Watch requests each line with an event handler for both edges.
// The kernel reports the edge type with the event, it is kept as the line level,
// so Level doesn't need a syscall in the handler. The kernel timestamp of the event
// is passed on to the handler.
func (c *GpiodChip) Watch(lines []int, bias Bias, handler Handler) error {
	if err := checkLines(lines); err != nil {
		return err
	}

	eh := func(evt gpiod.LineEvent) {
		if evt.Offset < 0 || evt.Offset >= MaxLines {
			return
		}

		switch evt.Type {
		case gpiod.LineEventRisingEdge:
			c.levels[evt.Offset].Store(int32(port.High))
		case gpiod.LineEventFallingEdge:
			c.levels[evt.Offset].Store(int32(port.Low))
		}
		handler.HandleAt(evt.Offset, evt.Timestamp.Nanoseconds())
	}

	opts := []gpiod.LineReqOption{gpiod.WithEventHandler(eh), gpiod.WithBothEdges, gpiod.AsInput}
	switch bias {
	case PullUp:
		opts = append(opts, gpiod.WithPullUp)
	case PullDown:
		opts = append(opts, gpiod.WithPullDown)
	}

	for _, offset := range lines {
		l, err := c.chip.RequestLine(offset, opts...)
		if err != nil {
			c.release()
			return fmt.Errorf("request line %d: %w", offset, err)
		}
		c.lines = append(c.lines, l)

		// initial level until the first edge arrives
		if v, err := l.Value(); err == nil {
			c.levels[offset].CompareAndSwap(int32(port.Invalid), int32(toState(v)))
		}
		debug.DebugLog.Printf("watching line %d (%v)", offset, bias)
	}
	return nil
}

func (c *GpiodChip) Level(line int) port.StateType {
	if line < 0 || line >= MaxLines {
		return port.Invalid
	}
	return port.StateType(c.levels[line].Load())
}

// release closes all requested lines.
// Closing a line waits for a running event handler, so it must not be called from the handler.
func (c *GpiodChip) release() {
	for _, l := range c.lines {
		if err := l.Close(); err != nil {
			debug.ErrorLog.Printf("close line: %v", err)
		}
	}
	c.lines = nil
}

// Close releases the lines and the chip.
func (c *GpiodChip) Close() error {
	c.release()
	return c.chip.Close()
}
