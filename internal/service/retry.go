package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/sayedibrahimi/wheaton-course-rating/pkg/database"
	apperrors "github.com/sayedibrahimi/wheaton-course-rating/pkg/errors"
)

// withRetry runs a store operation, retrying connection-level failures with
// bounded exponential backoff (3 attempts, 1s/2s/4s with jitter). Validation,
// conflict, and not-found outcomes are deterministic and are returned on the
// first attempt. When retries exhaust, the error surfaces as a service
// unavailable failure; callers relying on a committed-but-unreconciled write
// can repair it later through the reconcile operation.
func withRetry(ctx context.Context, logger *slog.Logger, op string, fn func() error) error {
	err := fn()
	if err == nil || !database.IsConnectionError(err) {
		return err
	}

	for attempt := 0; attempt < database.RetryAttempts-1; attempt++ {
		wait := database.RetryBackoff(attempt)
		logger.WarnContext(ctx, "store operation failed due to connection error, retrying",
			slog.String("operation", op),
			slog.Int("attempt", attempt+1),
			slog.Duration("wait", wait),
			slog.String("error", err.Error()),
		)

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}

		err = fn()
		if err == nil || !database.IsConnectionError(err) {
			return err
		}
	}

	return apperrors.Unavailable("store unavailable, please retry later", err)
}
