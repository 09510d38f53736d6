package repository

import "time"

// Option configures the SQL backends.
type Option func(*options)

type options struct {
	maxOpenConns int
	retry        retryConfig
}

func defaultOptions() options {
	return options{maxOpenConns: 4, retry: defaultRetryConfig}
}

// WithMaxOpenConns bounds the connection pool.
func WithMaxOpenConns(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxOpenConns = n
		}
	}
}

// WithContentionRetry sets how often and how fast SQLite lock errors are
// retried.
func WithContentionRetry(maxRetries int, baseDelay time.Duration) Option {
	return func(o *options) {
		if maxRetries >= 0 {
			o.retry.maxRetries = maxRetries
		}
		if baseDelay > 0 {
			o.retry.baseDelay = baseDelay
		}
	}
}
