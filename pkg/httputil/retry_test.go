package httputil

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("transient")

func TestRetryable(t *testing.T) {
	if Retryable(nil) != nil {
		t.Error("Retryable(nil) should return nil")
	}
	err := Retryable(errTransient)
	if !IsRetryable(err) {
		t.Error("IsRetryable() = false for wrapped error")
	}
	if !errors.Is(err, errTransient) {
		t.Error("Retryable() should keep the cause reachable")
	}
	if err.Error() != errTransient.Error() {
		t.Errorf("Error() = %q, want %q", err.Error(), errTransient.Error())
	}
	if IsRetryable(errTransient) {
		t.Error("IsRetryable() = true for plain error")
	}
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		name string
		b    Backoff
		want []time.Duration
	}{
		{"linear", Linear(time.Second), []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}},
		{"exponential", Exponential(time.Second), []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}},
	}
	for _, tt := range tests {
		for i, want := range tt.want {
			if got := tt.b(i + 1); got != want {
				t.Errorf("%s(%d) = %v, want %v", tt.name, i+1, got, want)
			}
		}
	}
}

func TestRetry(t *testing.T) {
	ctx := context.Background()
	fast := Linear(time.Millisecond)

	tests := []struct {
		name      string
		attempts  int
		failUntil int
		retryable bool
		wantCalls int
		wantErr   bool
	}{
		{"success first try", 3, 0, true, 1, false},
		{"success after retries", 3, 2, true, 3, false},
		{"exhausted", 3, 10, true, 3, true},
		{"not retryable", 3, 10, false, 1, true},
		{"zero attempts runs once", 0, 10, true, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Retry(ctx, tt.attempts, fast, func() error {
				calls++
				if calls <= tt.failUntil {
					if tt.retryable {
						return Retryable(errTransient)
					}
					return errTransient
				}
				return nil
			})
			if (err != nil) != tt.wantErr {
				t.Errorf("Retry() error = %v, wantErr %v", err, tt.wantErr)
			}
			if calls != tt.wantCalls {
				t.Errorf("Retry() calls = %d, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestRetryWaitsBackoff(t *testing.T) {
	var waits []int
	backoff := func(n int) time.Duration {
		waits = append(waits, n)
		return time.Millisecond
	}
	_ = Retry(context.Background(), 3, backoff, func() error { return Retryable(errTransient) })
	if len(waits) != 2 || waits[0] != 1 || waits[1] != 2 {
		t.Errorf("backoff called with %v, want [1 2]", waits)
	}
}

func TestRetryContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, 3, Linear(time.Hour), func() error {
		return Retryable(errTransient)
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Retry() error = %v, want context.Canceled", err)
	}
}

func TestRetryAll(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCalls int
	}{
		{"plain", errTransient, 3},
		{"retryable", Retryable(errTransient), 3},
		{"permanent", Permanent(errTransient), 1},
		{"none", nil, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := RetryAll(context.Background(), 3, Linear(0), func() error {
				calls++
				return tt.err
			})
			if calls != tt.wantCalls {
				t.Errorf("RetryAll() calls = %d, want %d", calls, tt.wantCalls)
			}
			if !errors.Is(err, tt.err) {
				t.Errorf("RetryAll() error = %v, want %v", err, tt.err)
			}
		})
	}
}

func TestPermanent(t *testing.T) {
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should return nil")
	}
	err := Permanent(errTransient)
	if !IsPermanent(err) || IsRetryable(err) {
		t.Errorf("Permanent() = %v, want permanent and not retryable", err)
	}
	if !errors.Is(err, errTransient) {
		t.Error("Permanent() should keep the cause reachable")
	}
}
