package usecase

import (
	"context"
	"time"

	"vedai-backend/internal/domain"

	"github.com/cenkalti/backoff/v5"
)

// retryTransient retries op with exponential backoff while it fails with a
// transient error, up to attempts tries total. Permanent failures and context
// cancellation stop the retry loop immediately.
func retryTransient[T any](ctx context.Context, attempts uint, base time.Duration, op func() (T, error)) (T, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = base

	return backoff.Retry(ctx, func() (T, error) {
		v, err := op()
		if err != nil && !domain.IsTransient(err) {
			var zero T
			return zero, backoff.Permanent(err)
		}
		return v, err
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(attempts))
}
