// Package testevents drives a running service with synthetic posts through
// its HTTP intake and reports how they were admitted.
package testevents

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/affirmbot/internal/domain/model"
	"github.com/okian/affirmbot/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	filePermission      = 0600
)

// percentageMultiplier converts a ratio to a percentage.
const percentageMultiplier = 100

// Run executes the complete injection run.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}

	logger.Get().Info(ctx, "starting injection run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("events", cfg.NumEvents),
		logger.Int("actors", cfg.Actors),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout))

	if err := checkServiceHealth(ctx, cfg); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	rng := rand.New(rand.NewPCG(uint64(stats.StartTime.UnixNano()), 0))
	posts := generatePosts(ctx, cfg, rng, stats)

	if err := submitPosts(ctx, cfg, posts, stats); err != nil {
		return nil, fmt.Errorf("event submission failed: %w", err)
	}

	if cfg.Settle > 0 {
		logger.Get().Info(ctx, "waiting for posts to be processed", logger.Duration("settle", cfg.Settle))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(cfg.Settle):
		}
	}

	svc, err := fetchStats(ctx, cfg)
	if err != nil {
		logger.Get().Warn(ctx, "could not read service stats", logger.Error(err))
	}
	stats.ServiceProcessed = svc.Processed

	if cfg.OutputFile != "" {
		if err := savePosts(ctx, cfg.OutputFile, posts); err != nil {
			logger.Get().Warn(ctx, "failed to save posts to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats, svc)
	return stats, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, cfg *Config) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.BaseURL+"/healthz", http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := newHTTPClient(cfg).Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(ctx, "failed to close response body", logger.Error(err))
		}
	}()

	// The endpoint serves Prometheus text; any 200 is healthy.
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}
	return nil
}

// savePosts writes the generated posts as a JSON array.
func savePosts(ctx context.Context, filename string, posts []model.Event) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(posts, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal posts: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	logger.Get().Info(ctx, "posts saved to file", logger.String("filename", filename))
	return nil
}

func displayFinalStats(ctx context.Context, stats *Stats, svc serviceStats) {
	var acceptRate, eventsPerSecond float64
	if stats.EventsSubmitted > 0 {
		acceptRate = float64(stats.EventsAccepted) / float64(stats.EventsSubmitted) * percentageMultiplier
	}
	if stats.Duration > 0 {
		eventsPerSecond = float64(stats.EventsSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("eventsGenerated", stats.EventsGenerated),
		logger.Int("eventsSubmitted", stats.EventsSubmitted),
		logger.Int("eventsAccepted", stats.EventsAccepted),
		logger.Int("eventsDuplicate", stats.EventsDuplicate),
		logger.Int("eventsRejected", stats.EventsRejected),
		logger.Int("eventsThrottled", stats.EventsThrottled),
		logger.Int("eventsFailed", stats.EventsFailed),
		logger.Int64("serviceProcessed", svc.Processed),
		logger.Int("serviceQueueLength", svc.QueueLength),
		logger.Int("serviceBudgetUsed", svc.BudgetUsed),
		logger.Duration("duration", stats.Duration),
		logger.Float64("acceptRate", acceptRate),
		logger.Float64("eventsPerSecond", eventsPerSecond))
}
