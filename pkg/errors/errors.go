package errors

import "errors"

// Sentinels for domain errors. Wrap them with fmt.Errorf("...: %w", ...) and
// match with errors.Is.
var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrValidation    = errors.New("validation error")
	ErrUnavailable   = errors.New("service unavailable")
	ErrConfiguration = errors.New("configuration error")
	ErrTimeout       = errors.New("timed out")
)
