package main

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"edgewatch/pkg/app"
	"edgewatch/pkg/app/config"

	"github.com/urfave/cli/v2"
	"github.com/womat/debug"
)

const defaultConfigFile = "/opt/edgewatch/config/" + app.MODULE + ".yaml"

func main() {
	exitCode := 1
	defer func() {
		os.Exit(exitCode)
	}()

	// cfg holds the application configuration
	cfg := config.NewConfig()

	cliApp := &cli.App{
		Name:    app.MODULE,
		Usage:   "Edge timestamping of gpio input lines",
		Version: app.VERSION,
		Description: "Watch a fixed set of gpio lines for rising and falling edges and stamp each edge in µs." +
			"\n In logger mode every edge is printed, in deviation mode the spread between the earliest" +
			"\n and latest edge of each phase (run of edges with the same polarity) is reported.",
		UsageText: "edgewatch [--config <file>] [--log standard|debug|trace] [--mode logger|deviation]" +
			"\n\nEXAMPLE:" +
			"\n\tstart the edge watcher in deviation mode and use the configuration file edgewatch.yaml" +
			"\n\t\tedgewatch --config /opt/edgewatch/edgewatch.yaml --mode deviation",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Destination: &cfg.Flag.ConfigFile, Value: defaultConfigFile, Usage: "load configuration from `FILE`"},
			&cli.StringFlag{Name: "log", Aliases: []string{"l"}, Destination: &cfg.Flag.Debug, Usage: "`LEVEL` defines the log level (standard|debug|trace)"},
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Destination: &cfg.Flag.Mode, Usage: "`MODE` of the observer (logger|deviation)"},
		},
		Action: func(cliCtx *cli.Context) error {
			if err := cfg.LoadConfig(); err != nil {
				return err
			}

			debug.SetDebug(cfg.Debug.File, cfg.Debug.Flag)
			defer func() {
				debug.InfoLog.Printf("closing debug file %s", cfg.Debug.FileString)
				_ = cfg.Close()
			}()

			// capture exit signals to ensure resources are released on exit.
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(cfg)
			if err != nil {
				return err
			}
			defer func() {
				debug.InfoLog.Printf("closing app %s", app.Version())
				_ = a.Close()
			}()

			debug.InfoLog.Printf("starting app %s", app.Version())
			if err = a.Run(ctx); err != nil {
				return err
			}

			<-ctx.Done()
			debug.InfoLog.Print("got stop signal, aborting...")

			// wait until the observer has stopped
			<-a.Done()
			return nil
		},
	}

	// we expect to have more command line flags in the future - sort them
	sort.Sort(cli.FlagsByName(cliApp.Flags))
	sort.Sort(cli.CommandsByName(cliApp.Commands))

	if err := cliApp.Run(os.Args); err != nil {
		debug.FatalLog.Print(err)
		return
	}

	exitCode = 0
}
