package raspberry

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"edgewatch/pkg/port"

	"github.com/womat/debug"
)

// Emulator is a software chip. Edges are made by Set, Toggle or Run
// and the handler is called from the goroutine that made the edge, without kernel timestamp.
type Emulator struct {
	mu      sync.Mutex
	lines   []int
	handler Handler

	watched [MaxLines]atomic.Bool
	levels  [MaxLines]atomic.Int32
}

// NewEmulator creates an emulated chip with all lines low.
func NewEmulator() *Emulator {
	return &Emulator{}
}

// Watch registers the handler for lines. The idle level follows the bias.
func (e *Emulator) Watch(lines []int, bias Bias, handler Handler) error {
	if err := checkLines(lines); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.handler != nil {
		return fmt.Errorf("emulator already watched: %w", ErrInvalidParam)
	}

	idle := port.Low
	if bias == PullUp {
		idle = port.High
	}

	e.lines = append([]int(nil), lines...)
	e.handler = handler
	for _, l := range lines {
		e.levels[l].Store(int32(idle))
		e.watched[l].Store(true)
	}
	return nil
}

func (e *Emulator) Level(line int) port.StateType {
	if line < 0 || line >= MaxLines {
		return port.Invalid
	}
	return port.StateType(e.levels[line].Load())
}

// Set drives line to s. If the level changes on a watched line, the handler is called.
func (e *Emulator) Set(line int, s port.StateType) {
	if line < 0 || line >= MaxLines || (s != port.High && s != port.Low) {
		return
	}

	if port.StateType(e.levels[line].Swap(int32(s))) == s || !e.watched[line].Load() {
		return
	}

	e.mu.Lock()
	h := e.handler
	e.mu.Unlock()

	if h != nil {
		h.Handle(line)
	}
}

// Toggle inverts the level of line.
func (e *Emulator) Toggle(line int) {
	if e.Level(line) == port.High {
		e.Set(line, port.Low)
		return
	}
	e.Set(line, port.High)
}

// Run toggles all watched lines together every period until ctx is done,
// emulating a set of lines driven by a common clock.
func (e *Emulator) Run(ctx context.Context, period time.Duration) {
	e.mu.Lock()
	lines := e.lines
	e.mu.Unlock()

	debug.InfoLog.Printf("emulating edges on %v every %v", lines, period)

	t := time.NewTicker(period)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			for _, l := range lines {
				e.Toggle(l)
			}
		}
	}
}

// Close removes the watch.
func (e *Emulator) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, l := range e.lines {
		e.watched[l].Store(false)
	}
	e.handler = nil
	e.lines = nil
	return nil
}
