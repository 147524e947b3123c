package observer

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"edgewatch/pkg/port"
	"edgewatch/pkg/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/womat/debug"
)

func TestMain(m *testing.M) {
	debug.SetDebug(os.Stderr, debug.Standard)
	os.Exit(m.Run())
}

func events(types []port.EventType, ts []int64) []port.Event {
	evts := make([]port.Event, len(types))
	for i := range types {
		evts[i] = port.Event{Line: 18, Type: types[i], Timestamp: ts[i]}
	}
	return evts
}

func TestDeviationScenario(t *testing.T) {
	var got []Phase
	d := NewDeviation(ReporterFunc(func(p Phase) { got = append(got, p) }))

	in := events(
		[]port.EventType{port.RisingEdge, port.RisingEdge, port.FallingEdge, port.FallingEdge, port.RisingEdge},
		[]int64{100, 105, 200, 210, 300},
	)
	for _, e := range in {
		d.Consume(e)
	}

	require.Len(t, got, 2)
	assert.Equal(t, Phase{Type: port.RisingEdge, Edge: "RISING", Deviation: 5, Start: 100, End: 105, Events: 2}, got[0])
	assert.Equal(t, Phase{Type: port.FallingEdge, Edge: "FALLING", Deviation: 10, Start: 200, End: 210, Events: 2}, got[1])
}

func TestDeviationFirstPhaseIsSeeded(t *testing.T) {
	d := NewDeviation()

	// a zero baseline would report 1_000_000 here
	_, ok := d.Add(port.Event{Line: 19, Type: port.FallingEdge, Timestamp: 1_000_000})
	assert.False(t, ok)

	p, ok := d.Add(port.Event{Line: 19, Type: port.RisingEdge, Timestamp: 1_000_050})
	require.True(t, ok)
	assert.Equal(t, int64(0), p.Deviation)
	assert.Equal(t, port.FallingEdge, p.Type)
	assert.Equal(t, 1, p.Events)
}

func TestDeviationFlushKeepsPhaseInProgress(t *testing.T) {
	d := NewDeviation()

	_, ok := d.Flush()
	assert.False(t, ok)

	d.Add(port.Event{Line: 18, Type: port.RisingEdge, Timestamp: 100})
	d.Add(port.Event{Line: 19, Type: port.RisingEdge, Timestamp: 107})

	cur, ok := d.Flush()
	require.True(t, ok)
	assert.Equal(t, Phase{Type: port.RisingEdge, Edge: "RISING", Deviation: 7, Start: 100, End: 107, Events: 2}, cur)

	again, ok := d.Flush()
	require.True(t, ok)
	assert.Equal(t, cur, again)

	p, ok := d.Add(port.Event{Line: 18, Type: port.FallingEdge, Timestamp: 200})
	require.True(t, ok)
	assert.Equal(t, cur, p)
}

func TestRecorderFollowsPhaseInProgress(t *testing.T) {
	r := &Recorder{}
	d := NewDeviation(r)
	assert.Nil(t, r.Summary().CurrentPhase)

	in := events(
		[]port.EventType{port.RisingEdge, port.RisingEdge, port.FallingEdge, port.FallingEdge, port.FallingEdge},
		[]int64{10, 13, 50, 51, 59},
	)
	for _, e := range in[:2] {
		d.Consume(e)
	}
	s := r.Summary()
	assert.Zero(t, s.Phases)
	require.NotNil(t, s.CurrentPhase)
	assert.Equal(t, Phase{Type: port.RisingEdge, Edge: "RISING", Deviation: 3, Start: 10, End: 13, Events: 2}, *s.CurrentPhase)

	for _, e := range in[2:] {
		d.Consume(e)
	}
	s = r.Summary()
	assert.Equal(t, uint64(1), s.Phases)
	require.NotNil(t, s.LastPhase)
	assert.Equal(t, int64(3), s.LastPhase.Deviation)
	require.NotNil(t, s.CurrentPhase)
	assert.Equal(t, Phase{Type: port.FallingEdge, Edge: "FALLING", Deviation: 9, Start: 50, End: 59, Events: 3}, *s.CurrentPhase)
}

func TestDeviationAcrossLines(t *testing.T) {
	d := NewDeviation()

	// out of order timestamps within a phase still give the full spread
	in := []port.Event{
		{Line: 18, Type: port.RisingEdge, Timestamp: 1010},
		{Line: 19, Type: port.RisingEdge, Timestamp: 1000},
		{Line: 21, Type: port.RisingEdge, Timestamp: 1025},
	}
	for _, e := range in {
		_, ok := d.Add(e)
		require.False(t, ok)
	}

	p, ok := d.Add(port.Event{Line: 18, Type: port.FallingEdge, Timestamp: 2000})
	require.True(t, ok)
	assert.Equal(t, int64(25), p.Deviation)
	assert.Equal(t, int64(1000), p.Start)
	assert.Equal(t, int64(1025), p.End)
	assert.Equal(t, 3, p.Events)
}

func TestLoggerScenario(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)

	l.Consume(port.Event{Line: 18, Type: port.RisingEdge, Timestamp: 42})

	out := buf.String()
	assert.Equal(t, "GPIO18 EDGE RISING  42\n", out)
	assert.Equal(t, 1, strings.Count(out, "\n"))
	assert.Contains(t, strings.ToLower(out), "rising")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestLoggerSurvivesWriteErrors(t *testing.T) {
	l := NewLogger(failingWriter{})
	assert.NotPanics(t, func() {
		l.Consume(port.Event{Line: 33, Type: port.FallingEdge, Timestamp: 1})
	})
}

func TestTextReporter(t *testing.T) {
	var buf bytes.Buffer
	NewTextReporter(&buf).Report(Phase{Edge: "FALLING", Deviation: 10, Events: 2})
	assert.Equal(t, "DEVIATION FALLING 10 us (2 edges)\n", buf.String())
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	assert.Nil(t, r.Summary().LastPhase)

	r.Report(Phase{Edge: "RISING", Deviation: 12})
	r.Report(Phase{Edge: "FALLING", Deviation: 4})

	s := r.Summary()
	assert.Equal(t, uint64(2), s.Phases)
	assert.Equal(t, int64(12), s.MaxDeviationUs)
	require.NotNil(t, s.LastPhase)
	assert.Equal(t, int64(4), s.LastPhase.Deviation)
}

func TestRunDeliversInOrderAndStops(t *testing.T) {
	q, err := queue.New(8)
	require.NoError(t, err)

	var buf bytes.Buffer
	o := New(q, NewLogger(&buf))

	for i, typ := range []port.EventType{port.RisingEdge, port.FallingEdge, port.RisingEdge} {
		require.True(t, q.TryEnqueue(port.Event{Line: 21, Type: typ, Timestamp: int64(i * 10)}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- o.Run(ctx) }()

	require.Eventually(t, func() bool { return o.Consumed() == 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run didn't stop on cancel")
	}

	assert.Equal(t, "GPIO21 EDGE RISING  0\nGPIO21 EDGE FALLING 10\nGPIO21 EDGE RISING  20\n", buf.String())
}

func TestRunOnEmptyQueueKeepsState(t *testing.T) {
	q, err := queue.New(4)
	require.NoError(t, err)

	d := NewDeviation()
	d.Add(port.Event{Line: 18, Type: port.RisingEdge, Timestamp: 7})
	before := *d

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err = New(q, d).Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, before, *d)

	// the producer side was never blocked
	assert.True(t, q.TryEnqueue(port.Event{Line: 18, Type: port.RisingEdge, Timestamp: 8}))
}
