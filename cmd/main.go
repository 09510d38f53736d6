package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"github.com/joho/godotenv"
	"github.com/okian/affirmbot/internal/adapters/bsky"
	"github.com/okian/affirmbot/internal/adapters/firehose"
	"github.com/okian/affirmbot/internal/adapters/gemini"
	"github.com/okian/affirmbot/internal/adapters/http/api"
	"github.com/okian/affirmbot/internal/adapters/http/swagger"
	"github.com/okian/affirmbot/internal/adapters/notify"
	"github.com/okian/affirmbot/internal/adapters/repository"
	"github.com/okian/affirmbot/internal/adapters/subscribers"
	app "github.com/okian/affirmbot/internal/app"
	"github.com/okian/affirmbot/internal/config"
	"github.com/okian/affirmbot/internal/domain/audience"
	"github.com/okian/affirmbot/pkg/httpclient"
	"github.com/okian/affirmbot/pkg/logger"
	"github.com/okian/affirmbot/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	cliApp := &cli.App{
		Name:    "affirmbot",
		Usage:   "Bluesky bot that answers its followers' posts",
		Version: versioninfo.Short(),
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "consume the firehose and reply to followers",
				Action: runBot,
			},
			{
				Name:  "version",
				Usage: "print build information",
				Action: func(cctx *cli.Context) error {
					_, err := fmt.Fprintf(cctx.App.Writer, "affirmbot %s (%s)\n", versioninfo.Short(), versioninfo.Revision)
					return err
				},
			},
		},
		DefaultCommand: "run",
	}
	if err := cliApp.Run(os.Args); err != nil {
		os.Stderr.WriteString("affirmbot: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func runBot(cctx *cli.Context) error {
	// Disable default Go metrics collection to avoid duplicate metrics.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.InitWithWriter(os.Stdout, cfg.LogFormat); err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Named("main")
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(cctx.Context, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(cctx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpClient := httpclient.New(
		httpclient.WithMaxRetries(cfg.HTTPRetryMax),
		httpclient.WithLogger(logger.Slog()))

	store, err := repository.Open(ctx, cfg.DatabaseURL, cfg.DatabasePath,
		repository.WithMaxOpenConns(cfg.WorkerCount))
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error(context.Background(), "close store failed", logger.Error(err))
		}
	}()

	client := bsky.New(cfg.BskyHost, cfg.BskyHandle, cfg.BskyPassword,
		bsky.WithHTTPClient(httpClient),
		bsky.WithLogger(logger.Named("bsky")))
	if err := client.Login(ctx); err != nil {
		return err
	}
	botDID := client.DID
	if cfg.BotDID != "" {
		botDID = func() string { return cfg.BotDID }
	}

	generator, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, httpClient)
	if err != nil {
		return err
	}

	holder := audience.NewHolder()
	var subs audience.SubscriberSource
	if fetcher := subscribers.NewFetcher(cfg.SubscribersCSVURL, httpClient); fetcher.Enabled() {
		subs = fetcher
	}
	refresher := audience.NewRefresher(holder, client, subs, botDID)

	opts := []app.Option{
		app.WithStore(store),
		app.WithPoster(client),
		app.WithGenerator(generator),
		app.WithProfileLookups(client, client),
		app.WithActivity(client),
		app.WithAudience(holder),
		app.WithBotDID(botDID),
		app.WithLogger(logger.Named("service")),
	}
	if slack := notify.NewSlack(cfg.SlackWebhookURL, httpClient); slack.Enabled() {
		opts = append(opts, app.WithAlerter(slack))
	}
	svc := app.New(cfg, opts...)

	// Workers outlive the signal so Stop can drain the queue.
	workCtx, cancelWork := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWork()
	if err := svc.Start(workCtx); err != nil {
		return err
	}

	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc).Register(ctx, mux)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	// Without a seeded audience every early event would be dropped as not_follower.
	seedAudience(ctx, refresher, log)
	consumer := firehose.New(cfg.RelayHost, botDID, svc, firehose.WithLogger(logger.Named("firehose")))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(gctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return consumer.Run(gctx) })
	g.Go(func() error {
		return refresher.Run(gctx, time.Duration(cfg.AudienceRefreshMinutes)*time.Minute)
	})
	g.Go(func() error {
		return client.RunSessionRefresher(gctx, time.Duration(cfg.SessionRefreshMinutes)*time.Minute)
	})
	g.Go(func() error {
		startSystemMetricsUpdater(gctx)
		return nil
	})
	g.Go(func() error {
		startServiceMetricsUpdater(gctx, svc)
		return nil
	})

	runErr := g.Wait()
	log.Info(context.Background(), "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := svc.Stop(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "service shutdown failed", logger.Error(err))
	}
	log.Info(shutdownCtx, "stopped")
	return runErr
}

// seedAudience runs the first audience refresh before the firehose starts.
// A failure is logged; the periodic refresh tries again.
func seedAudience(ctx context.Context, r *audience.Refresher, log logger.Logger) {
	if err := r.Refresh(ctx); err != nil {
		log.Warn(ctx, "initial audience refresh failed; followers fill in on the next refresh", logger.Error(err))
	}
}

// startSystemMetricsUpdater updates system metrics until ctx ends.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater refreshes the service gauges until ctx ends.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			svc.GetStats(ctx)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
