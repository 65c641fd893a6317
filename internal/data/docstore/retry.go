package docstore

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// retryConflicts runs attempt until it succeeds, fails permanently, or
// maxAttempts conflicting commits have been seen.
func retryConflicts(ctx context.Context, name string, maxAttempts int, hooks Hooks, attempt func() error) error {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 10 * time.Millisecond
	bo.MaxInterval = 250 * time.Millisecond
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := attempt()
		if err == nil {
			return struct{}{}, nil
		}
		if IsRetryable(err) {
			hooks.IncConflict(name)
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	},
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(maxAttempts)),
		backoff.WithNotify(func(error, time.Duration) { hooks.IncRetry(name) }),
	)
	return err
}
