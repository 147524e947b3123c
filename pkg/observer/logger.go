package observer

import (
	"fmt"
	"io"

	"edgewatch/pkg/port"

	"github.com/womat/debug"
)

// Logger writes one line per event, e.g.
//
//	GPIO18 EDGE RISING  42
//	GPIO18 EDGE FALLING 97
type Logger struct {
	w io.Writer
}

// NewLogger creates a raw event logger writing to w.
func NewLogger(w io.Writer) *Logger {
	return &Logger{w: w}
}

// Consume prints the event. A failing writer is logged, the observer keeps running.
func (l *Logger) Consume(e port.Event) {
	if _, err := fmt.Fprintf(l.w, "GPIO%d EDGE %-7s %d\n", e.Line, e.Type, e.Timestamp); err != nil {
		debug.ErrorLog.Printf("write event %v: %v", e, err)
	}
}
