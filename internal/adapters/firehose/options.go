package firehose

import (
	"time"

	"github.com/okian/affirmbot/pkg/logger"
)

// Option configures a Consumer.
type Option func(*Consumer)

// WithReconnectDelay sets the wait between stream reconnects.
func WithReconnectDelay(d time.Duration) Option {
	return func(c *Consumer) {
		if d > 0 {
			c.reconnect = d
		}
	}
}

// WithLogger sets the component logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Consumer) { c.log = l }
}
