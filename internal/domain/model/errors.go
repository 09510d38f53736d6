package model

import (
	"errors"
	"fmt"
)

// Error kinds shared by the pipeline. A filter rejection is not an error.
var (
	// ErrTransient marks network, API or store failures worth retrying.
	ErrTransient = errors.New("transient external error")
	// ErrGeneration marks a failed or empty text generation; the mode falls through.
	ErrGeneration = errors.New("generation failure")
	// ErrValidation marks bad arguments; it is raised immediately and never retried.
	ErrValidation = errors.New("validation error")
)

func wrapValidation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}
