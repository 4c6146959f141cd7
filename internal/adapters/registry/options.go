package registry

import (
	"time"

	"github.com/okian/meetlink/pkg/logger"
)

// Option applies a configuration option to the Cached registry.
type Option func(*Cached)

// WithTTL sets how long a fetched list stays fresh.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cached) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithRetryAfter sets how long a stale list is served after a failed
// refresh before the source is tried again.
func WithRetryAfter(d time.Duration) Option {
	return func(c *Cached) {
		if d >= 0 {
			c.retryAfter = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cached) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Cached) {
		if l != nil {
			c.logger = l
		}
	}
}
