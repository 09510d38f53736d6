package testevents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/okian/affirmbot/internal/domain/model"
	"github.com/okian/affirmbot/pkg/httpclient"
	"github.com/okian/affirmbot/pkg/logger"
	"golang.org/x/sync/errgroup"
)

type outcome int

const (
	outcomeAccepted outcome = iota
	outcomeDuplicate
	outcomeRejected
	outcomeThrottled
	outcomeFailed
)

// serviceStats is the subset of /stats the run reports on.
type serviceStats struct {
	Processed   int64 `json:"processed"`
	QueueLength int   `json:"queue_length"`
	BudgetUsed  int   `json:"budget_used"`
	Followers   int   `json:"followers"`
}

func newHTTPClient(cfg *Config) *http.Client {
	c := httpclient.New(httpclient.WithMaxRetries(0))
	c.Timeout = cfg.Timeout
	return c
}

// submitPosts posts every event to /events with cfg.Workers in flight.
func submitPosts(ctx context.Context, cfg *Config, posts []model.Event, stats *Stats) error {
	logger.Get().Info(ctx, "submitting posts", logger.Int("count", len(posts)), logger.Int("workers", cfg.Workers))

	client := newHTTPClient(cfg)
	url := cfg.BaseURL + "/events"

	var counts [outcomeFailed + 1]atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Workers, 1))
	for _, p := range posts {
		g.Go(func() error {
			o := submitSingle(gctx, client, url, p)
			counts[o].Add(1)
			if cfg.Verbose && o != outcomeAccepted {
				logger.Get().Debug(gctx, "post not accepted", logger.String("did", p.ActorDID), logger.Int("outcome", int(o)))
			}
			return gctx.Err()
		})
	}
	err := g.Wait()

	stats.EventsAccepted = int(counts[outcomeAccepted].Load())
	stats.EventsDuplicate = int(counts[outcomeDuplicate].Load())
	stats.EventsRejected = int(counts[outcomeRejected].Load())
	stats.EventsThrottled = int(counts[outcomeThrottled].Load())
	stats.EventsFailed = int(counts[outcomeFailed].Load())
	stats.EventsSubmitted = stats.EventsAccepted + stats.EventsDuplicate + stats.EventsRejected +
		stats.EventsThrottled + stats.EventsFailed
	if err != nil {
		return fmt.Errorf("submission interrupted: %w", err)
	}
	return nil
}

func submitSingle(ctx context.Context, client *http.Client, url string, p model.Event) outcome {
	body, err := json.Marshal(p)
	if err != nil {
		return outcomeFailed
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return outcomeFailed
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return outcomeFailed
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusAccepted:
		return outcomeAccepted
	case http.StatusOK:
		return outcomeDuplicate
	case http.StatusUnprocessableEntity, http.StatusBadRequest:
		return outcomeRejected
	case http.StatusTooManyRequests:
		return outcomeThrottled
	default:
		return outcomeFailed
	}
}

func fetchStats(ctx context.Context, cfg *Config) (serviceStats, error) {
	var out serviceStats
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.BaseURL+"/stats", http.NoBody)
	if err != nil {
		return out, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := newHTTPClient(cfg).Do(req)
	if err != nil {
		return out, fmt.Errorf("failed to fetch stats: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return out, fmt.Errorf("stats returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("failed to decode stats: %w", err)
	}
	return out, nil
}
