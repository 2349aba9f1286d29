package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrValidation      = errors.New("validation failed")
	ErrVersionNotFound = errors.New("version not found")
	ErrStaleVersion    = errors.New("compound was modified concurrently")
	ErrTransient       = errors.New("temporarily unavailable")
)

// transientError marks an infrastructure failure as retryable while keeping
// the underlying cause reachable through errors.Is / errors.As.
type transientError struct {
	cause error
}

func (e *transientError) Error() string {
	return fmt.Sprintf("%s: %v", ErrTransient, e.cause)
}

func (e *transientError) Unwrap() []error {
	return []error{ErrTransient, e.cause}
}

// IsRetryable lets retry.IsRetryable recognise transient errors without
// falling back to message matching.
func (e *transientError) IsRetryable() bool {
	return true
}

// Transient wraps err so that errors.Is(err, ErrTransient) holds.
// Returns nil for a nil error.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTransient) {
		return err
	}
	return &transientError{cause: err}
}

// Validationf returns an ErrValidation carrying a formatted detail message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundf returns an ErrNotFound carrying a formatted detail message.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
