// Package pipeline processes one meeting end to end: claim the idempotency
// record, fetch and analyze the transcript, resolve projects, persist the
// attributions and fan out actions.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/meetlink/internal/domain/model"
	"github.com/okian/meetlink/internal/domain/resolver"
	"github.com/okian/meetlink/pkg/logger"
	"github.com/okian/meetlink/pkg/metrics"
)

// Processing defaults.
const (
	DefaultStepTimeout         = 30 * time.Second
	DefaultMinTranscriptLength = 100
	DefaultStaleAfter          = 30 * time.Minute
)

// Records is the idempotency store as seen by the pipeline.
type Records interface {
	Claim(ctx context.Context, meetingID string, source model.Source, now time.Time, staleAfter time.Duration) (model.ProcessingRecord, error)
	Update(ctx context.Context, rec model.ProcessingRecord) error
}

// Attributions persists the attribution set of a meeting.
type Attributions interface {
	Replace(ctx context.Context, meeting model.MeetingEvent, scored []model.ScoredCandidate, now time.Time) ([]model.Attribution, error)
}

// MeetingSource provides meeting metadata and transcripts.
type MeetingSource interface {
	Meeting(ctx context.Context, meetingID string) (model.MeetingEvent, error)
	// Transcript returns ErrNoTranscript when the meeting has none.
	Transcript(ctx context.Context, meetingID string) (string, error)
}

// Analyzer extracts a summary and action items from a transcript.
type Analyzer interface {
	Analyze(ctx context.Context, meeting model.MeetingEvent, transcript string) (model.FullAnalysis, error)
}

// Registry lists the projects meetings can be attributed to.
type Registry interface {
	Projects(ctx context.Context) ([]model.ProjectCandidate, error)
}

// Resolver picks the projects a meeting title belongs to.
type Resolver interface {
	Resolve(title string, candidates []model.ProjectCandidate) resolver.Resolution
}

// Fanout runs downstream actions for a resolved meeting.
type Fanout interface {
	Execute(ctx context.Context, meeting model.MeetingEvent, attributions []model.Attribution, analysis model.Analysis) model.FanoutReport
}

// Alerter notifies an operator about a meeting that failed for good.
type Alerter interface {
	Alert(ctx context.Context, rec model.ProcessingRecord) error
}

// Processor runs the pipeline for one meeting at a time; it is safe for
// concurrent use on distinct meeting ids.
type Processor struct {
	records      Records
	attributions Attributions
	source       MeetingSource
	registry     Registry
	resolver     Resolver

	analyzer Analyzer
	fanout   Fanout
	alerter  Alerter

	policy        RetryPolicy
	stepTimeout   time.Duration
	minTranscript int
	staleAfter    time.Duration
	now           func() time.Time
	logger        logger.Logger
}

// New creates a Processor. The analyzer, fanout and alerter are optional.
func New(records Records, attributions Attributions, source MeetingSource, registry Registry, res Resolver, opts ...Option) *Processor {
	p := &Processor{
		records:       records,
		attributions:  attributions,
		source:        source,
		registry:      registry,
		resolver:      res,
		policy:        DefaultRetryPolicy(),
		stepTimeout:   DefaultStepTimeout,
		minTranscript: DefaultMinTranscriptLength,
		staleAfter:    DefaultStaleAfter,
		now:           time.Now,
		logger:        logger.Get().Named("pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// result is what one successful attempt produced.
type result struct {
	skipReason   string
	meeting      model.MeetingEvent
	analysis     model.Analysis
	attributions []model.Attribution
	mode         resolver.Mode
}

// Process handles meetingID discovered by source. The returned outcome is
// the terminal status reached, or already_processed when another worker
// owns the meeting. An error is returned only when the outcome could not be
// recorded, including when ctx ended mid-flight; the record then stays
// pending until it is reclaimed.
func (p *Processor) Process(ctx context.Context, meetingID string, source model.Source) (model.Outcome, error) {
	log := p.logger.With(logger.String("meetingId", meetingID), logger.String("source", string(source)))

	rec, err := p.records.Claim(ctx, meetingID, source, p.now(), p.staleAfter)
	if errors.Is(err, model.ErrAlreadyClaimed) {
		log.Debug(ctx, "meeting already claimed", logger.String("status", string(rec.Status)))
		metrics.RecordProcessingOutcome(string(model.OutcomeAlreadyProcessed), string(source))
		return model.OutcomeAlreadyProcessed, nil
	}
	if err != nil {
		metrics.RecordErrorByComponent("pipeline", "claim_error")
		return "", fmt.Errorf("claim %s: %w", meetingID, err)
	}
	if rec.Reclaims > 0 {
		metrics.RecordProcessingReclaim()
		log.Warn(ctx, "reclaimed stale pending record", logger.Int("reclaims", rec.Reclaims))
	}

	var res result
	attempts, err := p.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		metrics.RecordProcessingAttempt()
		if attempt > 0 {
			metrics.RecordProcessingRetry()
		}
		rec.AttemptCount++
		rec.UpdatedAt = p.now().UTC()
		if uerr := p.records.Update(ctx, rec); errors.Is(uerr, model.ErrAlreadyClaimed) {
			return Permanent(uerr)
		} else if uerr != nil {
			log.Warn(ctx, "failed to record attempt", logger.Error(uerr))
		}

		r, err := p.attempt(ctx, meetingID)
		if err != nil {
			rec.LastError = err.Error()
			log.Warn(ctx, "attempt failed", logger.Int("attempt", attempt+1), logger.Error(err))
			return err
		}
		res = r
		return nil
	})

	switch {
	case err != nil && ctx.Err() != nil:
		return "", fmt.Errorf("process %s interrupted after %d attempts: %w", meetingID, attempts, ctx.Err())
	case errors.Is(err, model.ErrAlreadyClaimed):
		return p.superseded(ctx, log, rec)
	case err != nil:
		return p.fail(ctx, log, rec, err)
	case res.skipReason != "":
		rec.Summary = res.skipReason
		return p.finish(ctx, log, rec, model.StatusSkipped)
	}

	rec.UpdatedAt = p.now().UTC()
	if err := p.records.Update(ctx, rec); errors.Is(err, model.ErrAlreadyClaimed) {
		return p.superseded(ctx, log, rec)
	} else if err != nil {
		log.Warn(ctx, "failed to record progress", logger.Error(err))
	}

	report := model.FanoutReport{Overall: model.OverallFailure}
	if p.fanout != nil {
		report = p.fanout.Execute(ctx, res.meeting, res.attributions, res.analysis)
	}
	rec.LastError = ""
	rec.Summary = fmt.Sprintf("attributions=%d fanout=%s", len(res.attributions), report.Overall)
	log.Info(ctx, "meeting processed",
		logger.Int("attempts", attempts),
		logger.String("mode", string(res.mode)),
		logger.Int("attributions", len(res.attributions)),
		logger.String("fanout", string(report.Overall)),
	)
	return p.finish(ctx, log, rec, model.StatusSucceeded)
}

// attempt runs the retryable steps: fetch, analyze, resolve and persist.
// Replace overwrites the meeting's set, so repeating an attempt is safe.
func (p *Processor) attempt(ctx context.Context, meetingID string) (result, error) {
	transcript, err := step(ctx, p, "transcript", func(ctx context.Context) (string, error) {
		return p.source.Transcript(ctx, meetingID)
	})
	if errors.Is(err, ErrNoTranscript) {
		return result{skipReason: "transcript unavailable"}, nil
	}
	if err != nil {
		return result{}, fmt.Errorf("fetch transcript: %w", err)
	}
	if n := len([]rune(strings.TrimSpace(transcript))); n < p.minTranscript {
		return result{skipReason: fmt.Sprintf("transcript too short (%d < %d)", n, p.minTranscript)}, nil
	}

	meeting, err := step(ctx, p, "meeting", func(ctx context.Context) (model.MeetingEvent, error) {
		return p.source.Meeting(ctx, meetingID)
	})
	if err != nil {
		return result{}, fmt.Errorf("fetch meeting: %w", err)
	}
	if meeting.ExternalID == "" {
		meeting.ExternalID = meetingID
	}

	var analysis model.Analysis = model.TitleOnlyAnalysis{Title: meeting.Title}
	if p.analyzer != nil {
		full, err := step(ctx, p, "analyze", func(ctx context.Context) (model.FullAnalysis, error) {
			return p.analyzer.Analyze(ctx, meeting, transcript)
		})
		if err != nil {
			return result{}, fmt.Errorf("analyze: %w", err)
		}
		analysis = full
	}

	candidates, err := step(ctx, p, "registry", p.registry.Projects)
	if err != nil {
		return result{}, fmt.Errorf("list projects: %w", err)
	}
	resolution := p.resolver.Resolve(meeting.Title, candidates)
	metrics.RecordResolverMode(string(resolution.Mode))

	attrs, err := step(ctx, p, "persist", func(ctx context.Context) ([]model.Attribution, error) {
		return p.attributions.Replace(ctx, meeting, resolution.Eligible, p.now())
	})
	if err != nil {
		return result{}, fmt.Errorf("replace attributions: %w", err)
	}
	for _, a := range attrs {
		metrics.RecordAttributionWritten(a.ProjectKey)
	}

	return result{meeting: meeting, analysis: analysis, attributions: attrs, mode: resolution.Mode}, nil
}

// step runs fn under the per-call timeout and records its latency.
func step[T any](ctx context.Context, p *Processor, name string, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, p.stepTimeout)
	defer cancel()
	v, err := fn(ctx)
	metrics.RecordStepLatency(name, float64(time.Since(start).Milliseconds()))
	return v, err
}

func (p *Processor) fail(ctx context.Context, log logger.Logger, rec model.ProcessingRecord, cause error) (model.Outcome, error) {
	rec.LastError = cause.Error()
	log.Error(ctx, "meeting processing failed", logger.Int("attempts", rec.AttemptCount), logger.Error(cause))
	outcome, err := p.finish(ctx, log, rec, model.StatusFailed)
	if err != nil || outcome != model.OutcomeFailed {
		return outcome, err
	}
	if p.alerter != nil {
		rec.Status = model.StatusFailed
		if aerr := p.alerter.Alert(ctx, rec); aerr != nil {
			metrics.RecordOperatorAlert("error")
			log.Error(ctx, "operator alert failed", logger.Error(aerr))
		} else {
			metrics.RecordOperatorAlert("sent")
		}
	}
	return outcome, nil
}

func (p *Processor) finish(ctx context.Context, log logger.Logger, rec model.ProcessingRecord, status model.Status) (model.Outcome, error) {
	now := p.now().UTC()
	rec.Status = status
	rec.UpdatedAt = now
	rec.CompletedAt = &now
	err := p.records.Update(ctx, rec)
	if errors.Is(err, model.ErrAlreadyClaimed) {
		return p.superseded(ctx, log, rec)
	}
	if err != nil {
		metrics.RecordErrorByComponent("pipeline", "update_error")
		log.Error(ctx, "failed to record outcome", logger.String("status", string(status)), logger.Error(err))
		return "", fmt.Errorf("record %s as %s: %w", rec.MeetingID, status, err)
	}
	metrics.RecordProcessingOutcome(string(status), string(rec.Source))
	return model.OutcomeFor(status), nil
}

// superseded reports that a reclaim took the record over while this holder
// was still running; the reclaiming holder owns the outcome.
func (p *Processor) superseded(ctx context.Context, log logger.Logger, rec model.ProcessingRecord) (model.Outcome, error) {
	log.Warn(ctx, "record reclaimed by another worker, dropping result", logger.Int("reclaims", rec.Reclaims))
	metrics.RecordProcessingOutcome(string(model.OutcomeAlreadyProcessed), string(rec.Source))
	return model.OutcomeAlreadyProcessed, nil
}
