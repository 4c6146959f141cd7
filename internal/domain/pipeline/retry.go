package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Retry defaults.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 60 * time.Second
)

// RetryPolicy decides how often and how long to wait before re-running a
// failed attempt. The zero value is usable and means the defaults.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// Backoff returns the wait after the failed attempt (0-based).
	Backoff func(base time.Duration, attempt int) time.Duration
	// Sleep waits for d or until ctx ends.
	Sleep func(ctx context.Context, d time.Duration) error
	// Retryable reports whether err may succeed on another attempt.
	Retryable func(err error) bool
}

// DefaultRetryPolicy returns three attempts with exponential backoff from a
// one minute base.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{}.withDefaults()
}

// ExponentialBackoff waits base * 2^attempt.
func ExponentialBackoff(base time.Duration, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return base << uint(attempt) //nolint:gosec // attempt is bounded by MaxAttempts
}

// IsRetryable treats everything except permanent errors as transient.
func IsRetryable(err error) bool {
	return err != nil && !errors.Is(err, ErrPermanent)
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	} else if p.BaseDelay == 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.Backoff == nil {
		p.Backoff = ExponentialBackoff
	}
	if p.Sleep == nil {
		p.Sleep = sleepContext
	}
	if p.Retryable == nil {
		p.Retryable = IsRetryable
	}
	return p
}

// Delay returns the wait after the given failed attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	p = p.withDefaults()
	return p.Backoff(p.BaseDelay, attempt)
}

// Do runs fn until it succeeds, returns a non-retryable error, or the
// attempts run out. It returns the number of attempts made. When ctx ends
// the context error is returned as is so callers can tell shutdown from
// failure.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) (int, error) {
	p = p.withDefaults()
	for attempt := 0; ; attempt++ {
		err := fn(ctx, attempt)
		if err == nil {
			return attempt + 1, nil
		}
		if ctx.Err() != nil {
			return attempt + 1, ctx.Err()
		}
		if !p.Retryable(err) {
			return attempt + 1, err
		}
		if attempt+1 >= p.MaxAttempts {
			return attempt + 1, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt+1, err)
		}
		if err := p.Sleep(ctx, p.Backoff(p.BaseDelay, attempt)); err != nil {
			return attempt + 1, err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
