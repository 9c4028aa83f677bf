// Package retry runs upstream calls under a bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/kailas-cloud/policyrag/internal/domain"
)

// Defaults used when configuration leaves retry unset.
const (
	DefaultMaxTries        = 4
	DefaultInitialInterval = 200 * time.Millisecond
	DefaultMaxInterval     = 2 * time.Second
)

// Policy bounds the retries of a single operation.
type Policy struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// OnRetry is called before each retry with the failed attempt's error.
	OnRetry func(err error, wait time.Duration)
}

// DefaultPolicy returns the policy used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		MaxTries:        DefaultMaxTries,
		InitialInterval: DefaultInitialInterval,
		MaxInterval:     DefaultMaxInterval,
	}
}

// Do runs op until it succeeds, returns a non-retryable error, or the policy is exhausted.
// Only errors classified by domain.IsRetryable are retried. An expired caller
// deadline is reported as domain.ErrUpstreamTimeout; other errors are returned as is.
func Do[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}

	tries := p.MaxTries
	if tries == 0 {
		tries = 1
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(tries),
	}
	if p.OnRetry != nil {
		opts = append(opts, backoff.WithNotify(backoff.Notify(p.OnRetry)))
	}

	v, err := backoff.Retry(ctx, func() (T, error) {
		v, err := op(ctx)
		if err != nil && !domain.IsRetryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, opts...)
	return v, classifyDeadline(err)
}

// classifyDeadline restores the timeout classification that backoff drops when
// the caller's context expires between or during attempts.
func classifyDeadline(err error) error {
	if err == nil || errors.Is(err, domain.ErrUpstreamTimeout) || !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrUpstreamTimeout, err)
}
