// Package reconcile periodically sweeps the meeting source for completed
// meetings the webhook never delivered and processes them.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/meetlink/internal/domain/model"
	"github.com/okian/meetlink/pkg/logger"
	"github.com/okian/meetlink/pkg/metrics"
)

// Defaults for the sweep.
const (
	DefaultInterval    = 15 * time.Minute
	DefaultLookback    = 24 * time.Hour
	DefaultConcurrency = 4
)

// Lister lists meetings completed since a point in time.
type Lister interface {
	Completed(ctx context.Context, since time.Time) ([]model.MeetingEvent, error)
}

// Records looks up processing records.
type Records interface {
	Get(ctx context.Context, meetingID string) (model.ProcessingRecord, error)
}

// Processor runs the pipeline for one meeting.
type Processor interface {
	Process(ctx context.Context, meetingID string, source model.Source) (model.Outcome, error)
}

// Report counts what one sweep did with the meetings it listed.
type Report struct {
	Listed       int `json:"listed"`
	AlreadyKnown int `json:"alreadyKnown"`
	Processed    int `json:"processed"`
	Failed       int `json:"failed"`
}

// Job is the reconciliation sweep.
type Job struct {
	lister    Lister
	records   Records
	processor Processor

	interval    time.Duration
	lookback    time.Duration
	concurrency int
	now         func() time.Time
	logger      logger.Logger
}

// New creates a Job.
func New(lister Lister, records Records, processor Processor, opts ...Option) *Job {
	j := &Job{
		lister:      lister,
		records:     records,
		processor:   processor,
		interval:    DefaultInterval,
		lookback:    DefaultLookback,
		concurrency: DefaultConcurrency,
		now:         time.Now,
		logger:      logger.Get().Named("reconcile"),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Interval returns the time between sweeps.
func (j *Job) Interval() time.Duration { return j.interval }

// RunOnce performs a single sweep. Meetings that already have a record are
// counted and skipped; the claim inside Process still guards races with the
// webhook path.
func (j *Job) RunOnce(ctx context.Context) (Report, error) {
	metrics.RecordReconcileRun()
	since := j.now().Add(-j.lookback)
	meetings, err := j.lister.Completed(ctx, since)
	if err != nil {
		metrics.RecordErrorByComponent("reconcile", "list_error")
		return Report{}, fmt.Errorf("list completed meetings: %w", err)
	}

	var known, processed, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.concurrency)
	for _, m := range meetings {
		id := m.ExternalID
		if id == "" {
			continue
		}
		g.Go(func() error {
			return j.reconcile(gctx, id, &known, &processed, &failed)
		})
	}
	err = g.Wait()

	report := Report{
		Listed:       len(meetings),
		AlreadyKnown: int(known.Load()),
		Processed:    int(processed.Load()),
		Failed:       int(failed.Load()),
	}
	j.logger.Info(ctx, "reconciliation sweep finished",
		logger.Int("listed", report.Listed),
		logger.Int("alreadyKnown", report.AlreadyKnown),
		logger.Int("processed", report.Processed),
		logger.Int("failed", report.Failed),
	)
	return report, err
}

// reconcile handles one meeting. Only context cancellation is returned as an
// error so that a single bad meeting does not abort the sweep.
func (j *Job) reconcile(ctx context.Context, id string, known, processed, failed *atomic.Int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := j.records.Get(ctx, id)
	switch {
	case err == nil:
		known.Add(1)
		metrics.RecordReconcileMeeting("already_known")
		return nil
	case !errors.Is(err, model.ErrRecordNotFound):
		failed.Add(1)
		metrics.RecordReconcileMeeting("lookup_error")
		j.logger.Warn(ctx, "record lookup failed", logger.String("meetingId", id), logger.Error(err))
		return nil
	}

	outcome, err := j.processor.Process(ctx, id, model.SourceReconcile)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		failed.Add(1)
		metrics.RecordReconcileMeeting("error")
		j.logger.Warn(ctx, "reconcile processing failed", logger.String("meetingId", id), logger.Error(err))
		return nil
	}
	switch outcome {
	case model.OutcomeAlreadyProcessed:
		known.Add(1)
		metrics.RecordReconcileMeeting("already_known")
	case model.OutcomeFailed:
		failed.Add(1)
		metrics.RecordReconcileMeeting("failed")
	default:
		processed.Add(1)
		metrics.RecordReconcileMeeting("processed")
	}
	return nil
}

// Run sweeps immediately and then every interval until ctx ends.
func (j *Job) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		if _, err := j.RunOnce(ctx); err != nil && ctx.Err() == nil {
			j.logger.Error(ctx, "reconciliation sweep failed", logger.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
