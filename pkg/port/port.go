// Package port holds the definition of a physical port and the edge events it produces.
package port

import "fmt"

// EventType indicates the type of change to the line level.
type EventType int

const (
	_ EventType = iota
	// RisingEdge indicates a low to high transition.
	RisingEdge
	// FallingEdge indicates a high to low transition.
	FallingEdge
)

// String returns the upper case name used in the console output.
func (t EventType) String() string {
	switch t {
	case RisingEdge:
		return "RISING"
	case FallingEdge:
		return "FALLING"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// Event is the record of one edge on a monitored line.
// It holds no pointers, so it is copied by value through the handoff queue.
type Event struct {
	// Line is the gpio number of the line that triggered the event.
	Line int
	// Type is the polarity of the transition.
	Type EventType
	// Timestamp is the time the edge was detected in µs since the clock epoch.
	Timestamp int64
}

func (e Event) String() string {
	return fmt.Sprintf("GPIO%d %v %d", e.Line, e.Type, e.Timestamp)
}

// StateType is the logic level of a line.
type StateType int

const (
	// High indicates a logical 1.
	High StateType = 1
	// Low indicates a logical 0.
	Low StateType = 0
	// Invalid indicates an unknown or invalid state.
	Invalid StateType = -1
)

// EdgeOf classifies an edge by the level read right after the transition.
// Anything but High counts as a falling edge.
func EdgeOf(s StateType) EventType {
	if s == High {
		return RisingEdge
	}
	return FallingEdge
}
