package httputil

import (
	"context"
	"errors"
	"time"
)

// RetryableError wraps an error to indicate it should trigger a retry.
// Wrap transient failures (network errors, 5xx responses) with this type
// so that [Retry] knows to attempt the operation again.
type RetryableError struct{ Err error }

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable wraps err as a [RetryableError]. It returns nil for nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsRetryable reports whether err is wrapped with [RetryableError].
func IsRetryable(err error) bool {
	return errors.As(err, new(*RetryableError))
}

// PermanentError marks a failure that will not go away on retry, such as
// a 4xx response. [RetryAll] gives up on it immediately.
type PermanentError struct{ Err error }

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err as a [PermanentError]. It returns nil for nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err is wrapped with [PermanentError].
func IsPermanent(err error) bool {
	return errors.As(err, new(*PermanentError))
}

// Backoff returns the delay before retry number n (1 for the first retry).
type Backoff func(n int) time.Duration

// Linear waits base, 2*base, 3*base, ...
func Linear(base time.Duration) Backoff {
	return func(n int) time.Duration { return time.Duration(n) * base }
}

// Exponential waits base, 2*base, 4*base, ...
func Exponential(base time.Duration) Backoff {
	return func(n int) time.Duration { return base << (n - 1) }
}

// Retry executes fn up to attempts times, sleeping backoff(n) before the
// n-th retry. It only retries errors wrapped with [RetryableError]; other
// errors are returned immediately. Returns the last error if all attempts
// fail, or ctx.Err() if cancelled while waiting.
func Retry(ctx context.Context, attempts int, backoff Backoff, fn func() error) error {
	attempts = max(attempts, 1)
	var lastErr error

	for i := range attempts {
		if err := fn(); err == nil {
			return nil
		} else if lastErr = err; !IsRetryable(err) {
			return err
		}

		if i < attempts-1 {
			timer := time.NewTimer(backoff(i + 1))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	return lastErr
}

// RetryAll is [Retry] for callers that own the retry policy: every error
// is retried except those wrapped with [PermanentError].
func RetryAll(ctx context.Context, attempts int, backoff Backoff, fn func() error) error {
	return Retry(ctx, attempts, backoff, func() error {
		err := fn()
		if err == nil || IsPermanent(err) || IsRetryable(err) {
			return err
		}
		return Retryable(err)
	})
}
