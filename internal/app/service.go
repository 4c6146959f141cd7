// Package service wires the gateway, queue, worker pool, processing
// pipeline, stores and reconciliation job into the service the HTTP API
// depends on.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"sync"
	"time"

	eventqueue "github.com/okian/meetlink/internal/adapters/mq/queue"
	workerpool "github.com/okian/meetlink/internal/adapters/mq/worker"
	"github.com/okian/meetlink/internal/adapters/repository"
	"github.com/okian/meetlink/internal/domain/dedupe"
	"github.com/okian/meetlink/internal/domain/gateway"
	"github.com/okian/meetlink/internal/domain/model"
	"github.com/okian/meetlink/internal/domain/pipeline"
	"github.com/okian/meetlink/internal/domain/reconcile"
	"github.com/okian/meetlink/internal/domain/resolver"
	"github.com/okian/meetlink/pkg/logger"
	"github.com/okian/meetlink/pkg/metrics"
)

// MeetingSource is the meeting provider: single meetings and transcripts for
// the pipeline, completed-meeting listings for reconciliation and backfill.
type MeetingSource interface {
	pipeline.MeetingSource
	reconcile.Lister
}

// Stats is a point-in-time view of the service.
type Stats struct {
	Started       bool                 `json:"started"`
	Workers       int                  `json:"workers"`
	QueueLength   int                  `json:"queueLength"`
	QueueCapacity int                  `json:"queueCapacity"`
	SeenCacheSize int64                `json:"seenCacheSize"`
	Records       map[model.Status]int `json:"records"`
}

// Service implements the API dependencies for meeting attribution.
type Service struct {
	mu sync.RWMutex

	// Collaborators
	store    repository.Store
	source   MeetingSource
	registry pipeline.Registry
	resolver *resolver.Resolver
	analyzer pipeline.Analyzer
	fanout   pipeline.Fanout
	alerter  pipeline.Alerter

	// Configuration
	workerCount       int
	queueSize         int
	seenCacheSize     int
	webhookSecret     string
	webhookEvents     []string
	maxBodyBytes      int
	pipelineOpts      []pipeline.Option
	reconcileInterval time.Duration
	reconcileOpts     []reconcile.Option
	now               func() time.Time

	// Runtime components
	queue      *eventqueue.InMemoryQueue
	seen       dedupe.SeenCache
	gateway    *gateway.Gateway
	processor  *pipeline.Processor
	pool       *workerpool.Pool
	reconciler *reconcile.Job

	// State
	started bool
	cancel  context.CancelFunc
	bg      sync.WaitGroup

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the task queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithSeenCacheSize sets the size of the gateway's seen-id cache.
func WithSeenCacheSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.seenCacheSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithWebhookSecret sets the HMAC secret webhook deliveries are signed with.
func WithWebhookSecret(secret string) Option {
	return func(s *Service) {
		s.webhookSecret = secret
	}
}

// WithWebhookEvents sets the event types that trigger processing.
func WithWebhookEvents(events ...string) Option {
	return func(s *Service) {
		if len(events) > 0 {
			s.webhookEvents = append([]string(nil), events...)
		}
	}
}

// WithMaxBodyBytes caps webhook bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxBodyBytes = int(n)
		}
	}
}

// WithResolver replaces the default resolver.
func WithResolver(r *resolver.Resolver) Option {
	return func(s *Service) {
		if r != nil {
			s.resolver = r
		}
	}
}

// WithAnalyzer enables transcript analysis.
func WithAnalyzer(a pipeline.Analyzer) Option {
	return func(s *Service) {
		s.analyzer = a
	}
}

// WithFanout enables downstream actions.
func WithFanout(f pipeline.Fanout) Option {
	return func(s *Service) {
		s.fanout = f
	}
}

// WithAlerter enables operator alerts for failed meetings.
func WithAlerter(a pipeline.Alerter) Option {
	return func(s *Service) {
		s.alerter = a
	}
}

// WithPipelineOptions passes extra options to the processing pipeline.
func WithPipelineOptions(opts ...pipeline.Option) Option {
	return func(s *Service) {
		s.pipelineOpts = append(s.pipelineOpts, opts...)
	}
}

// WithReconcile schedules the reconciliation sweep every interval. An
// interval of zero or less disables the schedule.
func WithReconcile(interval time.Duration, opts ...reconcile.Option) Option {
	return func(s *Service) {
		s.reconcileInterval = interval
		s.reconcileOpts = append(s.reconcileOpts, opts...)
	}
}

// WithClock replaces time.Now for backfill and task timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Service over store, the meeting source and the project
// registry. Components are created by Start.
func New(store repository.Store, source MeetingSource, registry pipeline.Registry, opts ...Option) *Service {
	s := &Service{
		store:         store,
		source:        source,
		registry:      registry,
		resolver:      resolver.New(),
		workerCount:   runtime.NumCPU() * 2,
		queueSize:     eventqueue.DefaultCapacity,
		seenCacheSize: dedupe.DefaultMaxSize,
		webhookEvents: append([]string(nil), gateway.DefaultEvents...),
		maxBodyBytes:  gateway.DefaultMaxBodyBytes,
		now:           time.Now,
		logger:        logger.Get().Named("service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start creates the runtime components and starts the workers and, when
// scheduled, the reconciliation sweep.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.store == nil || s.source == nil || s.registry == nil {
		return ErrMissingDependency
	}

	s.logger.Info(ctx, "starting meetlink service...")

	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.seen = dedupe.NewInMemoryCache(dedupe.WithMaxSize(s.seenCacheSize))
	s.gateway = gateway.New(s.webhookSecret, s.store, s,
		gateway.WithEvents(s.webhookEvents...),
		gateway.WithMaxBodyBytes(s.maxBodyBytes),
		gateway.WithSeenCache(s.seen),
		gateway.WithClock(s.now),
	)

	popts := make([]pipeline.Option, 0, len(s.pipelineOpts)+3)
	if s.analyzer != nil {
		popts = append(popts, pipeline.WithAnalyzer(s.analyzer))
	}
	if s.fanout != nil {
		popts = append(popts, pipeline.WithFanout(s.fanout))
	}
	if s.alerter != nil {
		popts = append(popts, pipeline.WithAlerter(s.alerter))
	}
	popts = append(popts, s.pipelineOpts...)
	s.processor = pipeline.New(s.store, s.store, s.source, s.registry, s.resolver, popts...)
	s.reconciler = reconcile.New(s.source, s.store, s.processor,
		append([]reconcile.Option{reconcile.WithInterval(s.reconcileInterval)}, s.reconcileOpts...)...)

	// Background work outlives the start context; Stop cancels it.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	s.pool = workerpool.NewPool(s.workerCount, s.queue, &forgetOnError{next: s.processor, seen: s.seen})
	s.pool.Start(runCtx)

	if s.reconcileInterval > 0 {
		s.bg.Add(1)
		go func() {
			defer s.bg.Done()
			s.reconciler.Run(runCtx)
		}()
	}

	s.started = true
	s.logger.Info(ctx, "meetlink service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("seenCacheSize", s.seenCacheSize),
		logger.Duration("reconcileInterval", s.reconcileInterval),
	)
	return nil
}

// Stop drains the queue, stops the workers and the sweep, and closes the
// store. Meetings still in flight when ctx expires stay pending.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping meetlink service...")

	var errs []error
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	s.cancel()
	s.bg.Wait()
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}

	s.started = false
	s.logger.Info(ctx, "meetlink service stopped")
	return errors.Join(errs...)
}

// forgetOnError drops a meeting from the seen cache when its processing
// errors, so redeliveries go back to the store lookup instead of being
// answered already_processed for a meeting that may have no record.
type forgetOnError struct {
	next workerpool.Processor
	seen dedupe.SeenCache
}

func (f *forgetOnError) Process(ctx context.Context, meetingID string, source model.Source) (model.Outcome, error) {
	outcome, err := f.next.Process(ctx, meetingID, source)
	if err != nil {
		f.seen.Invalidate(context.WithoutCancel(ctx), meetingID)
	}
	return outcome, err
}

// Enqueue implements gateway.Enqueuer on top of the task queue.
func (s *Service) Enqueue(ctx context.Context, task model.Task) error {
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = s.now().UTC()
	}
	return s.queue.Enqueue(ctx, task)
}

// Accept handles one webhook delivery.
func (s *Service) Accept(ctx context.Context, rawBody []byte, signature string) gateway.Result {
	s.mu.RLock()
	gw := s.gateway
	started := s.started
	s.mu.RUnlock()
	if !started {
		return gateway.Result{Outcome: model.OutcomeRejected, HTTPCode: http.StatusServiceUnavailable, Reason: "service not started"}
	}
	return gw.Accept(ctx, rawBody, signature)
}

// Process runs the pipeline for meetingID synchronously.
func (s *Service) Process(ctx context.Context, meetingID string, source model.Source) (model.Outcome, error) {
	s.mu.RLock()
	p := s.processor
	s.mu.RUnlock()
	if p == nil {
		return "", ErrNotStarted
	}
	return p.Process(ctx, meetingID, source)
}

// Reconcile runs one reconciliation sweep now.
func (s *Service) Reconcile(ctx context.Context) (reconcile.Report, error) {
	s.mu.RLock()
	job := s.reconciler
	s.mu.RUnlock()
	if job == nil {
		return reconcile.Report{}, ErrNotStarted
	}
	return job.RunOnce(ctx)
}

// Record returns the processing record of meetingID.
func (s *Service) Record(ctx context.Context, meetingID string) (model.ProcessingRecord, error) {
	id := strings.TrimSpace(meetingID)
	if id == "" {
		return model.ProcessingRecord{}, ErrInvalidMeetingID
	}
	return s.store.Get(ctx, id)
}

// Attributions returns persisted attributions of projectKeys (all projects
// when empty) for meetings since the given time. With backfill, completed
// meetings the service has never seen are resolved and persisted first.
func (s *Service) Attributions(ctx context.Context, projectKeys []string, since time.Time, backfill bool) ([]model.Attribution, error) {
	rows, err := s.store.Read(ctx, projectKeys, since)
	if err != nil {
		return nil, fmt.Errorf("read attributions: %w", err)
	}
	if !backfill {
		return rows, nil
	}

	added, err := s.backfill(ctx, since)
	if err != nil {
		return nil, err
	}
	keys := make(map[string]struct{}, len(projectKeys))
	for _, k := range projectKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys[k] = struct{}{}
		}
	}
	for _, a := range added {
		if _, ok := keys[a.ProjectKey]; len(keys) > 0 && !ok {
			continue
		}
		rows = append(rows, a)
	}
	repository.SortAttributions(rows)
	return rows, nil
}

// backfill resolves completed meetings since the given time that have
// neither a processing record nor attributions.
func (s *Service) backfill(ctx context.Context, since time.Time) ([]model.Attribution, error) {
	meetings, err := s.source.Completed(ctx, since)
	if err != nil {
		metrics.RecordErrorByComponent("service", "backfill_list_error")
		return nil, fmt.Errorf("list completed meetings: %w", err)
	}
	if len(meetings) == 0 {
		return nil, nil
	}
	projects, err := s.registry.Projects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}

	var added []model.Attribution
	for _, m := range meetings {
		if m.ExternalID == "" {
			continue
		}
		if _, err := s.store.Get(ctx, m.ExternalID); err == nil {
			continue
		} else if !errors.Is(err, model.ErrRecordNotFound) {
			return nil, fmt.Errorf("lookup %s: %w", m.ExternalID, err)
		}
		existing, err := s.store.ForMeeting(ctx, m.ExternalID)
		if err != nil {
			return nil, fmt.Errorf("attributions of %s: %w", m.ExternalID, err)
		}
		if len(existing) > 0 {
			continue
		}

		resolution := s.resolver.Resolve(m.Title, projects)
		metrics.RecordResolverMode(string(resolution.Mode))
		attrs, err := s.store.Replace(ctx, m, resolution.Eligible, s.now())
		if err != nil {
			return nil, fmt.Errorf("persist backfill of %s: %w", m.ExternalID, err)
		}
		for _, a := range attrs {
			metrics.RecordAttributionWritten(a.ProjectKey)
		}
		added = append(added, attrs...)
	}
	if len(added) > 0 {
		s.logger.Info(ctx, "backfilled attributions", logger.Int("meetings", len(meetings)), logger.Int("attributions", len(added)))
	}
	return added, nil
}

// Stats returns service statistics for monitoring and refreshes the queue
// and worker gauges.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{Started: s.started, Workers: s.workerCount, QueueCapacity: s.queueSize}
	if s.started {
		stats.Workers = s.pool.Size()
		stats.QueueLength = s.queue.Len(ctx)
		stats.QueueCapacity = s.queue.Cap()
		stats.SeenCacheSize = s.seen.Size()

		metrics.UpdateQueueSize(stats.QueueLength)
		metrics.UpdateWorkerCount(stats.Workers)
	}

	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		return stats, fmt.Errorf("count records: %w", err)
	}
	stats.Records = counts
	return stats, nil
}
