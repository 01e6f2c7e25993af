// Package retry runs an operation again on transient failures with capped
// exponential backoff.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds how often and how long an operation is retried.
// MaxRetries counts retries after the first call.
type Policy struct {
	MaxRetries uint64
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// Notify is called before each retry with the error that triggered it.
type Notify func(err error, wait time.Duration)

// Do calls op until it succeeds, returns an error that retryable rejects, the
// retry budget is spent or ctx is done. The last error of op is returned.
func Do(ctx context.Context, p Policy, retryable func(error) bool, op func(ctx context.Context) error, notify Notify) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	if p.MaxDelay > 0 {
		b.MaxInterval = p.MaxDelay
	}
	b.MaxElapsedTime = 0

	bo := backoff.WithContext(backoff.WithMaxRetries(b, p.MaxRetries), ctx)

	wrapped := func() error {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	var n backoff.Notify
	if notify != nil {
		n = backoff.Notify(notify)
	}

	return backoff.RetryNotify(wrapped, bo, n)
}
