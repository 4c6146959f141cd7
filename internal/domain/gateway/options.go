package gateway

import (
	"time"

	"github.com/okian/meetlink/internal/domain/dedupe"
	"github.com/okian/meetlink/pkg/logger"
)

// Option applies a configuration option to the Gateway.
type Option func(*Gateway)

// WithEvents replaces the recognized event types.
func WithEvents(events ...string) Option {
	return func(g *Gateway) {
		if len(events) > 0 {
			g.setEvents(events)
		}
	}
}

// WithMaxBodyBytes caps the accepted payload size.
func WithMaxBodyBytes(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.maxBody = n
		}
	}
}

// WithSeenCache sets the cache of meeting ids known to have a record.
func WithSeenCache(c dedupe.SeenCache) Option {
	return func(g *Gateway) { g.seen = c }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		if now != nil {
			g.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}
