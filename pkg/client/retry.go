package client

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy bounds a caller-side retry loop. The gateway itself never
// retries; callers opt in per call.
type RetryPolicy struct {
	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsed      time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		MaxElapsed:      30 * time.Second,
	}
}

// Retry runs op until it succeeds, returns an error that IsRetryable
// rejects, or the policy is exhausted.
func Retry[T any](ctx context.Context, policy RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	if policy.MaxAttempts == 0 {
		policy.MaxAttempts = 1
	}

	b := backoff.NewExponentialBackOff()
	if policy.InitialInterval > 0 {
		b.InitialInterval = policy.InitialInterval
	}
	if policy.MaxInterval > 0 {
		b.MaxInterval = policy.MaxInterval
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(policy.MaxAttempts),
	}
	if policy.MaxElapsed > 0 {
		opts = append(opts, backoff.WithMaxElapsedTime(policy.MaxElapsed))
	}

	return backoff.Retry(ctx, func() (T, error) {
		v, err := op(ctx)
		if err != nil && !IsRetryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, opts...)
}
