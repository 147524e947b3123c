//go:build linux

package raspberry

import (
	"fmt"
	"sync/atomic"

	"edgewatch/pkg/port"

	"github.com/warthog618/gpio"
	"github.com/womat/debug"
)

// GpiomemChip watches lines through the memory mapped gpio registers of /dev/gpiomem.
// Pins are loaded atomically, Level runs on the watcher goroutines while Watch and Close
// may be releasing them.
type GpiomemChip struct {
	pins [MaxLines]atomic.Pointer[gpio.Pin]
}

// openGpiomem maps the GPIO memory range from /dev/gpiomem.
func openGpiomem() (*GpiomemChip, error) {
	if err := gpio.Open(); err != nil {
		return nil, fmt.Errorf("open gpiomem: %w", err)
	}
	return &GpiomemChip{}, nil
}

// Watch sets the lines as inputs and watches both edges.
// The pin number provided is the BCM GPIO number.
// If any line fails, all lines of this call are released and the chip can be watched again.
func (c *GpiomemChip) Watch(lines []int, bias Bias, handler Handler) error {
	if err := checkLines(lines); err != nil {
		return err
	}
	if err := c.inUse(lines); err != nil {
		return err
	}

	for _, l := range lines {
		p := gpio.NewPin(l)
		p.Input()
		switch bias {
		case PullUp:
			p.PullUp()
		case PullDown:
			p.PullDown()
		}
		c.pins[l].Store(p)

		if err := p.Watch(gpio.EdgeBoth, func(p *gpio.Pin) { handler.Handle(p.Pin()) }); err != nil {
			c.unwatch()
			c.clear()
			return fmt.Errorf("watch pin %d: %w", l, err)
		}
		debug.DebugLog.Printf("watching pin %d (%v)", l, bias)
	}
	return nil
}

// Level reads the pin register.
func (c *GpiomemChip) Level(line int) port.StateType {
	if line < 0 || line >= MaxLines {
		return port.Invalid
	}
	p := c.pins[line].Load()
	if p == nil {
		return port.Invalid
	}
	if p.Read() == gpio.High {
		return port.High
	}
	return port.Low
}

func (c *GpiomemChip) inUse(lines []int) error {
	for _, l := range lines {
		if c.pins[l].Load() != nil {
			return fmt.Errorf("pin %v already used: %w", l, ErrInvalidParam)
		}
	}
	return nil
}

// unwatch removes the handlers. The pins are kept, a handler may still be reading its level.
func (c *GpiomemChip) unwatch() {
	for i := range c.pins {
		if p := c.pins[i].Load(); p != nil {
			p.Unwatch()
		}
	}
}

// clear releases all pins, Level reports them Invalid afterwards.
func (c *GpiomemChip) clear() {
	for i := range c.pins {
		c.pins[i].Store(nil)
	}
}

// Close removes the interrupt handlers and unmaps GPIO memory.
func (c *GpiomemChip) Close() error {
	c.unwatch()
	return gpio.Close()
}
