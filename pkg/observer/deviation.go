package observer

import (
	"fmt"
	"io"
	"sync"

	"edgewatch/pkg/port"

	"github.com/womat/debug"
)

// Phase is the report of a run of consecutive events with the same edge type.
// Deviation is the spread End-Start between its earliest and latest timestamp.
type Phase struct {
	Type      port.EventType `json:"-"`
	Edge      string         `json:"edge"`
	Deviation int64          `json:"deviationUs"`
	Start     int64          `json:"startUs"`
	End       int64          `json:"endUs"`
	Events    int            `json:"events"`
}

// Reporter receives finished phases.
type Reporter interface {
	Report(Phase)
}

// ReporterFunc adapts a function to a Reporter.
type ReporterFunc func(Phase)

func (f ReporterFunc) Report(p Phase) { f(p) }

// ProgressReporter is a Reporter which also follows the phase in progress.
// Progress is called after every event with the result of Flush.
type ProgressReporter interface {
	Reporter
	Progress(Phase)
}

// Deviation tracks the earliest and latest timestamp of the current phase and reports
// the phase whenever the edge type changes.
//
// The state is owned by the observer goroutine and not locked.
// The first event seeds the state, so no report is made against a zero baseline.
type Deviation struct {
	tMin, tMax int64
	last       port.EventType
	events     int
	seeded     bool

	reporters []Reporter
}

// NewDeviation creates an accumulator sending phases to all reporters.
func NewDeviation(r ...Reporter) *Deviation {
	return &Deviation{reporters: r}
}

// Add feeds e to the accumulator. If e starts a new phase, the finished phase is returned with ok true.
func (d *Deviation) Add(e port.Event) (p Phase, ok bool) {
	if !d.seeded {
		d.seed(e)
		return Phase{}, false
	}

	if e.Type != d.last {
		p = d.phase()
		d.seed(e)
		return p, true
	}

	if e.Timestamp < d.tMin {
		d.tMin = e.Timestamp
	}
	if e.Timestamp > d.tMax {
		d.tMax = e.Timestamp
	}
	d.events++
	return Phase{}, false
}

// Flush returns the phase in progress without resetting it. ok is false before the first event.
func (d *Deviation) Flush() (p Phase, ok bool) {
	if !d.seeded {
		return Phase{}, false
	}
	return d.phase(), true
}

func (d *Deviation) phase() Phase {
	return Phase{
		Type:      d.last,
		Edge:      d.last.String(),
		Deviation: d.tMax - d.tMin,
		Start:     d.tMin,
		End:       d.tMax,
		Events:    d.events,
	}
}

func (d *Deviation) seed(e port.Event) {
	d.tMin, d.tMax = e.Timestamp, e.Timestamp
	d.last = e.Type
	d.events = 1
	d.seeded = true
}

// Consume implements Consumer.
func (d *Deviation) Consume(e port.Event) {
	if p, ok := d.Add(e); ok {
		debug.DebugLog.Printf("phase %v: deviation %dµs over %d edges", p.Edge, p.Deviation, p.Events)
		for _, r := range d.reporters {
			r.Report(p)
		}
	}

	cur, _ := d.Flush()
	for _, r := range d.reporters {
		if pr, ok := r.(ProgressReporter); ok {
			pr.Progress(cur)
		}
	}
}

// TextReporter writes one line per phase, e.g.
//
//	DEVIATION RISING  5 us (2 edges)
type TextReporter struct {
	w io.Writer
}

// NewTextReporter creates a reporter writing to w.
func NewTextReporter(w io.Writer) *TextReporter {
	return &TextReporter{w: w}
}

func (r *TextReporter) Report(p Phase) {
	if _, err := fmt.Fprintf(r.w, "DEVIATION %-7s %d us (%d edges)\n", p.Edge, p.Deviation, p.Events); err != nil {
		debug.ErrorLog.Printf("write phase: %v", err)
	}
}

// Recorder keeps a summary of the reported phases for readers outside the observer goroutine.
type Recorder struct {
	sync.RWMutex
	last         Phase
	current      Phase
	phases       uint64
	maxDeviation int64
	inProgress   bool
}

// Summary is a snapshot of a Recorder.
type Summary struct {
	Phases         uint64 `json:"phases"`
	MaxDeviationUs int64  `json:"maxDeviationUs"`
	LastPhase      *Phase `json:"lastPhase,omitempty"`
	CurrentPhase   *Phase `json:"currentPhase,omitempty"`
}

func (r *Recorder) Report(p Phase) {
	r.Lock()
	defer r.Unlock()

	r.last = p
	r.phases++
	if p.Deviation > r.maxDeviation {
		r.maxDeviation = p.Deviation
	}
}

// Progress records the phase in progress.
func (r *Recorder) Progress(p Phase) {
	r.Lock()
	defer r.Unlock()

	r.current = p
	r.inProgress = true
}

// Summary returns a copy of the recorded data.
func (r *Recorder) Summary() Summary {
	r.RLock()
	defer r.RUnlock()

	s := Summary{Phases: r.phases, MaxDeviationUs: r.maxDeviation}
	if r.phases > 0 {
		last := r.last
		s.LastPhase = &last
	}
	if r.inProgress {
		cur := r.current
		s.CurrentPhase = &cur
	}
	return s
}
