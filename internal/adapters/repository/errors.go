package repository

import (
	"errors"
	"fmt"

	"github.com/okian/affirmbot/internal/domain/model"
)

// Sentinel kinds for store errors.
var (
	// ErrStore wraps driver failures; they are transient from the caller's view.
	ErrStore = fmt.Errorf("store failure: %w", model.ErrTransient)
	// ErrUnsupportedDSN is returned by Open for an unknown URL scheme.
	ErrUnsupportedDSN = errors.New("unsupported database url")
)
