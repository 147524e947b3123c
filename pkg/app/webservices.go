package app

import (
	"fmt"

	"edgewatch/pkg/app/config"
	"edgewatch/pkg/observer"

	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"
)

// Stats is the response of the stats web service.
type Stats struct {
	Backend  string            `json:"backend"`
	Mode     string            `json:"mode"`
	Lines    []int             `json:"lines"`
	LineMask string            `json:"lineMask"`
	ClockUs  int64             `json:"clockUs"`
	Edges    uint64            `json:"edges"`
	Consumed uint64            `json:"consumed"`
	Queue    QueueStats        `json:"queue"`
	Phases   *observer.Summary `json:"phases,omitempty"`
}

// QueueStats holds the state of the handoff queue.
type QueueStats struct {
	Capacity int    `json:"capacity"`
	Length   int    `json:"length"`
	Dropped  uint64 `json:"dropped"`
}

// runWebServer starts the applications web server and listens for web requests.
// It's designed to run in a separate go function to not block the main go function.
// e.g.: go runWebServer()
// See app.Run()
// Without a host in the configured url, no web server is started.
func (app *App) runWebServer() {
	if app.urlParsed.Host == "" {
		debug.InfoLog.Print("no webserver configured")
		return
	}

	if err := app.web.Listen(app.urlParsed.Host); err != nil {
		debug.ErrorLog.Print(err)
	}
}

// Stats returns a snapshot of the pipeline counters.
func (app *App) Stats() Stats {
	s := Stats{
		Backend:  app.config.Backend,
		Mode:     app.config.Mode,
		Lines:    app.config.Lines,
		LineMask: fmt.Sprintf("%#016x", app.config.LineMask()),
		ClockUs:  app.clock.NowUs(),
		Consumed: app.observer.Consumed(),
		Queue: QueueStats{
			Capacity: app.queue.Cap(),
			Length:   app.queue.Len(),
			Dropped:  app.queue.Dropped(),
		},
	}

	if app.edge != nil {
		s.Edges = app.edge.Handled()
	}

	if app.config.Mode == config.ModeDeviation {
		p := app.phases.Summary()
		s.Phases = &p
	}
	return s
}

// HandleStats is the get pipeline statistics web handler.
func (app *App) HandleStats() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Print("web request stats")

		return ctx.JSON(app.Stats())
	}
}
