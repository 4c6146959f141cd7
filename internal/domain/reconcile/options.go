package reconcile

import (
	"time"

	"github.com/okian/meetlink/pkg/logger"
)

// Option applies a configuration option to the Job.
type Option func(*Job)

// WithInterval sets the time between sweeps.
func WithInterval(d time.Duration) Option {
	return func(j *Job) {
		if d > 0 {
			j.interval = d
		}
	}
}

// WithLookback sets how far back each sweep lists meetings.
func WithLookback(d time.Duration) Option {
	return func(j *Job) {
		if d > 0 {
			j.lookback = d
		}
	}
}

// WithConcurrency bounds the meetings processed in parallel.
func WithConcurrency(n int) Option {
	return func(j *Job) {
		if n > 0 {
			j.concurrency = n
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(j *Job) {
		if now != nil {
			j.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(j *Job) {
		if l != nil {
			j.logger = l
		}
	}
}
