package fanout

import (
	"context"
	"time"

	"github.com/okian/meetlink/pkg/logger"
)

// Option applies a configuration option to the Executor.
type Option func(*Executor)

// WithTracker enables the ticket action.
func WithTracker(t Tracker) Option {
	return func(e *Executor) { e.tracker = t }
}

// WithTaskCreator enables the task action.
func WithTaskCreator(t TaskCreator) Option {
	return func(e *Executor) { e.tasks = t }
}

// WithNotifier enables the notification action for channel.
func WithNotifier(n Notifier, channel string) Option {
	return func(e *Executor) {
		e.notifier = n
		e.channel = channel
	}
}

// WithBatchDelay sets the pause between calls of one action. Zero disables it.
func WithBatchDelay(d time.Duration) Option {
	return func(e *Executor) {
		if d >= 0 {
			e.delay = d
		}
	}
}

// WithSleep replaces the context-aware sleep used between calls.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Executor) {
		if fn != nil {
			e.sleep = fn
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}
