// Package raspberry is the watcher for gpio ports.
//
// A Chip requests the monitored lines as inputs, configured for both edges, and calls a
// handler with the line number for every edge. The handler runs in the chip's event
// delivery goroutine and must not block.
package raspberry

import (
	"errors"
	"fmt"

	"edgewatch/pkg/port"
)

// MaxLines is the number of addressable lines, one bit each in a 64 bit pin mask.
const MaxLines = 64

var (
	ErrInvalidParam = errors.New("invalid parameters")
	ErrUnsupported  = errors.New("gpio backend not supported on this platform")
)

// Bias is the pull configuration of an input line.
type Bias int

const (
	// BiasNone leaves the line floating, it must be driven externally.
	BiasNone Bias = iota
	PullUp
	PullDown
)

// ParseBias converts the configuration names pullup, pulldown and none.
func ParseBias(s string) (Bias, error) {
	switch s {
	case "pullup":
		return PullUp, nil
	case "pulldown":
		return PullDown, nil
	case "none":
		return BiasNone, nil
	default:
		return BiasNone, fmt.Errorf("bias %q: %w", s, ErrInvalidParam)
	}
}

func (b Bias) String() string {
	switch b {
	case PullUp:
		return "pullup"
	case PullDown:
		return "pulldown"
	default:
		return "none"
	}
}

// Handler receives the edges of a Chip. It is called from the chip's event delivery goroutine.
type Handler interface {
	// Handle is called for an edge the backend has no timestamp for.
	Handle(line int) bool
	// HandleAt is called for an edge the kernel stamped at ns on CLOCK_MONOTONIC.
	HandleAt(line int, ns int64) bool
}

// LineFunc adapts a function to a Handler, kernel timestamps are ignored.
type LineFunc func(line int)

func (f LineFunc) Handle(line int) bool { f(line); return true }

func (f LineFunc) HandleAt(line int, _ int64) bool { f(line); return true }

// Chip is a set of gpio lines which can be watched for edges.
type Chip interface {
	// Watch requests lines as inputs with bias and calls handler for every edge of any of them.
	// There can only be one watch per chip.
	Watch(lines []int, bias Bias, handler Handler) error
	// Level returns the level of line after its last edge. It never blocks.
	Level(line int) port.StateType
	// Close releases all requested lines and the chip.
	Close() error
}

// Open opens the chip of the named backend.
// device is the gpio character device for the gpiod backend, e.g. gpiochip0.
func Open(backend, device string) (Chip, error) {
	switch backend {
	case "gpiod":
		c, err := openGpiod(device)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "gpiomem":
		c, err := openGpiomem()
		if err != nil {
			return nil, err
		}
		return c, nil
	case "emulator":
		return NewEmulator(), nil
	default:
		return nil, fmt.Errorf("backend %q: %w", backend, ErrInvalidParam)
	}
}

// checkLines rejects line numbers outside the pin mask and duplicates.
func checkLines(lines []int) error {
	if len(lines) == 0 {
		return fmt.Errorf("no lines: %w", ErrInvalidParam)
	}

	var mask uint64
	for _, l := range lines {
		if l < 0 || l >= MaxLines {
			return fmt.Errorf("line %d: %w", l, ErrInvalidParam)
		}
		if mask&(1<<uint(l)) != 0 {
			return fmt.Errorf("line %d used twice: %w", l, ErrInvalidParam)
		}
		mask |= 1 << uint(l)
	}
	return nil
}

func toState(v int) port.StateType {
	switch v {
	case 0:
		return port.Low
	case 1:
		return port.High
	default:
		return port.Invalid
	}
}
