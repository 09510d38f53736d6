package main

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/okian/affirmbot/internal/testevents"
	"github.com/okian/affirmbot/pkg/logger"
	"github.com/urfave/cli/v2"
)

// Default configuration constants.
const (
	defaultNumEvents   = 1000
	defaultActors      = 50
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultSettle      = 10 * time.Second
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	app := &cli.App{
		Name:  "test-events",
		Usage: "inject synthetic posts into a running affirmbot through POST /events",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:9080", Usage: "base URL of the service"},
			&cli.IntFlag{Name: "events", Value: defaultNumEvents, Usage: "number of posts to generate and submit"},
			&cli.IntFlag{Name: "actors", Value: defaultActors, Usage: "number of distinct author DIDs"},
			&cli.IntFlag{Name: "workers", Value: runtime.NumCPU() * defaultWorkers, Usage: "concurrent submitters"},
			&cli.DurationFlag{Name: "timeout", Value: defaultTimeout, Usage: "HTTP request timeout"},
			&cli.DurationFlag{Name: "settle", Value: defaultSettle, Usage: "wait before reading /stats"},
			&cli.StringFlag{Name: "output", Usage: "write generated posts to this JSON file"},
			&cli.BoolFlag{Name: "verbose", Usage: "log every post that was not accepted"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		os.Stderr.WriteString("test failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run(cctx *cli.Context) error {
	if err := logger.Init(); err != nil {
		return err
	}
	if cctx.Bool("verbose") {
		_ = logger.SetLevelString("debug")
	}

	ctx, cancel := context.WithTimeout(cctx.Context, defaultTestTimeout)
	defer cancel()

	_, err := testevents.Run(ctx, &testevents.Config{
		BaseURL:    cctx.String("url"),
		NumEvents:  cctx.Int("events"),
		Actors:     cctx.Int("actors"),
		Workers:    cctx.Int("workers"),
		Timeout:    cctx.Duration("timeout"),
		Settle:     cctx.Duration("settle"),
		OutputFile: cctx.String("output"),
		Verbose:    cctx.Bool("verbose"),
	})
	return err
}
