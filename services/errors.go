package services

import (
	"errors"
	"fmt"
)

var (
	// ErrModelUnavailable means no local checkpoint is loaded. It is a steady
	// state, not a fault: the hybrid policy treats it as "no local signal".
	ErrModelUnavailable = errors.New("local classifier model unavailable")

	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

// EstimationError reports that the authoritative estimator could not produce
// a result. Callers surface it instead of substituting an empty result.
type EstimationError struct {
	Engine string
	Op     string
	Err    error
}

func (e *EstimationError) Error() string {
	return fmt.Sprintf("%s %s estimation failed: %v", e.Engine, e.Op, e.Err)
}

func (e *EstimationError) Unwrap() error { return e.Err }

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
