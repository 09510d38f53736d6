// Package httpclient builds the retrying HTTP client shared by every
// outbound adapter (XRPC, spreadsheet fetches).
package httpclient

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"github.com/hashicorp/go-retryablehttp"
)

// leveledSlog demotes retry errors to warnings; the final failure is
// reported by the caller.
type leveledSlog struct {
	inner *slog.Logger
}

func (l leveledSlog) Error(msg string, kv ...any) { l.inner.Warn(msg, kv...) }
func (l leveledSlog) Warn(msg string, kv ...any)  { l.inner.Warn(msg, kv...) }
func (l leveledSlog) Info(msg string, kv ...any)  { l.inner.Debug(msg, kv...) }
func (l leveledSlog) Debug(msg string, kv ...any) { l.inner.Debug(msg, kv...) }

// Option configures the underlying retryablehttp client.
type Option func(*retryablehttp.Client)

// WithMaxRetries sets how many times one request is retried.
func WithMaxRetries(n int) Option {
	return func(c *retryablehttp.Client) {
		if n >= 0 {
			c.RetryMax = n
		}
	}
}

// WithRetryWait bounds the wait between retries.
func WithRetryWait(minWait, maxWait time.Duration) Option {
	return func(c *retryablehttp.Client) {
		c.RetryWaitMin = minWait
		c.RetryWaitMax = maxWait
	}
}

// WithLogger routes retry logs to l.
func WithLogger(l *slog.Logger) Option {
	return func(c *retryablehttp.Client) {
		if l != nil {
			c.Logger = retryablehttp.LeveledLogger(leveledSlog{inner: l})
		}
	}
}

// New returns a stdlib *http.Client that retries connection errors and 5xx
// responses. 429 is returned to the caller untouched.
func New(opts ...Option) *http.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = time.Second
	rc.RetryWaitMax = 10 * time.Second
	rc.Logger = nil
	rc.CheckRetry = retryPolicy
	for _, opt := range opts {
		opt(rc)
	}
	c := rc.StandardClient()
	c.Timeout = 30 * time.Second
	return c
}

func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err == nil && resp.StatusCode == http.StatusTooManyRequests {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// UserAgent identifies the bot to remote services.
func UserAgent() string {
	return fmt.Sprintf("affirmbot/%s", versioninfo.Short())
}
