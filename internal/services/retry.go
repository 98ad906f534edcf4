package services

import (
	"context"
	"log/slog"
	"time"
)

const (
	// DefaultRetryAttempts bounds transient retries including the first try.
	DefaultRetryAttempts = 3
	// DefaultRetryBaseDelay is the wait before the second attempt; each
	// further wait doubles (2s, 4s, 8s).
	DefaultRetryBaseDelay = 2 * time.Second
)

// RetryPolicy bounds a retry loop around a transient-prone operation.
type RetryPolicy struct {
	Operation string
	Attempts  int
	BaseDelay time.Duration
	Logger    *slog.Logger
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.Attempts <= 0 {
		p.Attempts = DefaultRetryAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultRetryBaseDelay
	}
	if p.Operation == "" {
		p.Operation = "operation"
	}
	return p
}

// RetryTransient runs fn up to the policy's attempt budget, sleeping with
// exponential backoff between attempts. Only retryable errors (transient
// backend faults, timeouts) re-enter the loop; everything else returns
// immediately. The backoff sleep honors context cancellation.
func RetryTransient(ctx context.Context, policy RetryPolicy, fn func(context.Context) error) error {
	p := policy.normalized()

	var lastErr error
	delay := p.BaseDelay
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) || attempt == p.Attempts {
			return err
		}

		if p.Logger != nil {
			p.Logger.Warn("retrying after transient failure",
				slog.String("operation", p.Operation),
				slog.Int("attempt", attempt),
				slog.Duration("backoff", delay),
				slog.Any("error", err),
			)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
		delay *= 2
	}
	return lastErr
}
