package bsky

import (
	"net/http"

	"github.com/okian/affirmbot/pkg/logger"
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default retrying client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithLogger sets the component logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.log = l }
}
