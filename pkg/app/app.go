package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"edgewatch/pkg/app/config"
	"edgewatch/pkg/clock"
	"edgewatch/pkg/edge"
	"edgewatch/pkg/mqtt"
	"edgewatch/pkg/observer"
	"edgewatch/pkg/queue"
	"edgewatch/pkg/raspberry"

	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"
)

// dropCheckInterval is the period to look for events lost on a full queue.
const dropCheckInterval = 10 * time.Second

// App is the main application struct.
// App is where the application is wired up: it owns the clock, the handoff queue,
// the gpio chip and the observer, nothing of it is global.
type App struct {
	// web is the fiber web framework instance
	web *fiber.App

	// config is the application configuration
	config *config.Config

	// urlParsed contains the parsed Config.Url parameter
	urlParsed *url.URL

	// mqtt is the handler to the mqtt broker
	mqtt *mqtt.Handler

	// clock stamps the edges
	clock clock.Clock
	// queue is the handoff between the edge handler and the observer
	queue *queue.Queue
	// chip delivers the edges of the monitored lines
	chip raspberry.Chip
	// emulate is set if chip is an emulator which toggles the lines by itself
	emulate *raspberry.Emulator
	// edge is the handler called by chip for every edge
	edge *edge.Handler
	// observer drains queue into the configured consumer
	observer *observer.Observer
	// phases records the deviation reports for the web service
	phases *observer.Recorder
	// out is the line oriented sink of the observer
	out io.Writer

	started time.Time
	// done is closed when the observer has stopped
	done chan struct{}
}

// Option changes the collaborators created by New, e.g. to inject a clock in tests.
type Option func(*App)

// WithClock replaces the configured clock.
func WithClock(c clock.Clock) Option {
	return func(app *App) { app.clock = c }
}

// WithChip replaces the configured gpio backend.
func WithChip(c raspberry.Chip) Option {
	return func(app *App) { app.chip = c }
}

// WithOutput replaces the configured output file.
func WithOutput(w io.Writer) Option {
	return func(app *App) { app.out = w }
}

// New checks the configuration and initializes the main app structure.
// A clock which can't be read is fatal, monitoring must not start without it.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	u, err := url.Parse(cfg.Webserver.URL)
	if err != nil {
		debug.ErrorLog.Printf("Error parsing url %q: %s", cfg.Webserver.URL, err.Error())
		return nil, err
	}

	app := &App{
		config:    cfg,
		urlParsed: u,
		web:       fiber.New(fiber.Config{DisableStartupMessage: true}),
		mqtt:      mqtt.New(cfg.MQTT.Queue),
		phases:    &observer.Recorder{},
		out:       cfg.Output.File,
		done:      make(chan struct{}),
	}

	for _, opt := range opts {
		opt(app)
	}

	if app.out == nil {
		app.out = os.Stdout
	}

	if app.clock == nil {
		if app.clock, err = newClock(cfg.Clock); err != nil {
			return nil, err
		}
	}

	if app.queue, err = queue.ForLines(len(cfg.Lines)); err != nil {
		return nil, err
	}

	app.observer = observer.New(app.queue, app.consumer())
	return app, nil
}

func newClock(name string) (clock.Clock, error) {
	switch name {
	case "system":
		return clock.NewSystem(), nil
	case "monotonic":
		c, err := clock.NewMonotonic()
		if err != nil {
			return nil, fmt.Errorf("clock: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("clock %q: %w", name, config.ErrInvalidConfig)
	}
}

// consumer builds the one consumer selected by the configured mode.
func (app *App) consumer() observer.Consumer {
	if app.config.Mode != config.ModeDeviation {
		return observer.NewLogger(app.out)
	}

	reporters := []observer.Reporter{observer.NewTextReporter(app.out), app.phases}
	if app.config.MQTT.Connection != "" {
		reporters = append(reporters, observer.ReporterFunc(func(p observer.Phase) {
			app.mqtt.Send(app.config.MQTT.Topic, p)
		}))
	}
	return observer.NewDeviation(reporters...)
}

// Run starts the application and returns after the lines are watched.
// The observer runs until ctx is cancelled.
func (app *App) Run(ctx context.Context) error {
	if err := app.init(); err != nil {
		return err
	}

	go app.mqtt.Service(ctx)
	go app.runWebServer()
	go app.checkDrops(ctx)
	go app.observe(ctx)

	if app.emulate != nil {
		go app.emulate.Run(ctx, app.config.Emulator.Period)
	}

	return nil
}

// init opens the chip and watches the lines. The clock is reset right before, so the
// first timestamps start near zero.
func (app *App) init() (err error) {
	if app.chip == nil {
		if app.chip, err = raspberry.Open(app.config.Backend, app.config.Device); err != nil {
			debug.ErrorLog.Printf("can't open gpio: %v", err)
			return err
		}

		// an emulator opened from the configuration needs a stimulus, an injected one is driven by its owner
		app.emulate, _ = app.chip.(*raspberry.Emulator)
	}
	app.edge = edge.New(app.clock, app.chip, app.queue)

	if err = app.mqtt.Connect(app.config.MQTT.Connection, app.config.MQTT.ClientID); err != nil {
		debug.ErrorLog.Printf("can't open mqtt broker %v", err)
		return err
	}

	app.clock.Reset()
	app.started = time.Now()

	if err = app.chip.Watch(app.config.Lines, app.config.Bias, app.edge); err != nil {
		debug.ErrorLog.Printf("can't watch lines %v: %v", app.config.Lines, err)
		return err
	}

	debug.InfoLog.Printf("watching lines %v (mask %#016x, %v) with %s backend, mode %s, queue capacity %d",
		app.config.Lines, app.config.LineMask(), app.config.Bias, app.config.Backend, app.config.Mode, app.queue.Cap())

	// initDefaultRoutes should be always called last because it may access things
	// which must be initialized before
	app.initDefaultRoutes()

	return nil
}

// observe runs the observer until ctx is done.
func (app *App) observe(ctx context.Context) {
	defer close(app.done)

	if err := app.observer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		debug.ErrorLog.Printf("observer: %v", err)
	}
}

// checkDrops reports events lost because the queue was full.
// The edge handler only counts them, logging happens here.
func (app *App) checkDrops(ctx context.Context) {
	t := time.NewTicker(dropCheckInterval)
	defer t.Stop()

	var last uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if d := app.queue.Dropped(); d > last {
				debug.ErrorLog.Printf("queue full: %d events dropped (%d total, capacity %d)", d-last, d, app.queue.Cap())
				last = d
			}
		}
	}
}

// Done is closed when the observer has stopped.
func (app *App) Done() <-chan struct{} {
	return app.done
}

// Close releases the lines first, so no handler runs after it returns.
// The run context should be cancelled before.
func (app *App) Close() error {
	if app.chip != nil {
		if err := app.chip.Close(); err != nil {
			debug.ErrorLog.Printf("close gpio: %v", err)
		}
	}

	_ = app.web.Shutdown()
	_ = app.mqtt.Disconnect()
	return nil
}
