package pipeline

import (
	"time"

	"github.com/okian/meetlink/pkg/logger"
)

// Option applies a configuration option to the Processor.
type Option func(*Processor)

// WithAnalyzer enables transcript analysis. Without one the pipeline works
// from the title alone.
func WithAnalyzer(a Analyzer) Option {
	return func(p *Processor) { p.analyzer = a }
}

// WithFanout enables downstream actions.
func WithFanout(f Fanout) Option {
	return func(p *Processor) { p.fanout = f }
}

// WithAlerter sets who hears about meetings that exhausted their retries.
func WithAlerter(a Alerter) Option {
	return func(p *Processor) { p.alerter = a }
}

// WithRetryPolicy sets the retry policy.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(p *Processor) { p.policy = policy.withDefaults() }
}

// WithStepTimeout bounds each collaborator call.
func WithStepTimeout(d time.Duration) Option {
	return func(p *Processor) {
		if d > 0 {
			p.stepTimeout = d
		}
	}
}

// WithMinTranscriptLength sets the length below which meetings are skipped.
func WithMinTranscriptLength(n int) Option {
	return func(p *Processor) {
		if n >= 0 {
			p.minTranscript = n
		}
	}
}

// WithStaleAfter sets how long a pending record may sit untouched before
// another worker may reclaim it. Zero disables reclaiming.
func WithStaleAfter(d time.Duration) Option {
	return func(p *Processor) {
		if d >= 0 {
			p.staleAfter = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}
