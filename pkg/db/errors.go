package db

import "errors"

var (
	// ErrNotFound is returned when a series, configuration or batch does not exist
	ErrNotFound = errors.New("not found")

	// ErrConcurrencyConflict is returned when the series marker changed since it was read.
	// The caller should reload the series and retry.
	ErrConcurrencyConflict = errors.New("concurrency conflict")

	// ErrPersistence wraps storage failures. The series state is unchanged when it is returned.
	ErrPersistence = errors.New("persistence failure")
)

// IsRetryable reports whether an operation failed only because another writer got there first
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}
