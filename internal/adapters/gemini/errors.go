package gemini

import "errors"

// ErrMissingAPIKey is returned by New without an API key.
var ErrMissingAPIKey = errors.New("gemini: api key is required")
