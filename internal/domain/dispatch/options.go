package dispatch

import (
	"time"

	"github.com/okian/affirmbot/pkg/logger"
)

// DefaultAttempts is the number of passes made over one event.
const DefaultAttempts = 3

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithAttempts overrides the attempt count.
func WithAttempts(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.attempts = n
		}
	}
}

// WithBackoff sets the base wait between attempts; attempt n waits n*base.
func WithBackoff(base time.Duration) Option {
	return func(d *Dispatcher) {
		if base >= 0 {
			d.backoff = base
		}
	}
}

// WithAlerter sets where exhausted events are reported.
func WithAlerter(a Alerter) Option {
	return func(d *Dispatcher) {
		d.alerter = a
	}
}

// WithClock replaces time.Now for the cycle timestamp.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}
