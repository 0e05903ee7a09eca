package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/jakechorley/creator-selection/pkg/db"
)

// ErrValidationFailed is returned when an operation's input is rejected before any state is touched
var ErrValidationFailed = errors.New("validation failed")

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// validateInput runs struct validation and wraps failures in ErrValidationFailed
func validateInput(input any) error {
	if err := validate.Struct(input); err != nil {
		return fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}
	return nil
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidationFailed, fmt.Sprintf(format, args...))
}

// RetryOnConflict calls fn until it succeeds, fails with a non-retryable error or attempts run out.
// Each attempt must reload the state it depends on.
func RetryOnConflict[T any](ctx context.Context, attempts int, logger *zap.Logger, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if !db.IsRetryable(err) {
			return zero, err
		}

		lastErr = err
		if attempt == attempts {
			break
		}
		logger.Warn("Concurrency conflict, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts))
	}

	return zero, fmt.Errorf("gave up after %d attempts: %w", attempts, lastErr)
}
