package main

import (
	"fmt"
	"time"

	"github.com/okian/meetlink/internal/adapters/collab"
	"github.com/okian/meetlink/internal/adapters/registry"
	"github.com/okian/meetlink/internal/adapters/repository"
	app "github.com/okian/meetlink/internal/app"
	"github.com/okian/meetlink/internal/config"
	"github.com/okian/meetlink/internal/domain/fanout"
	"github.com/okian/meetlink/internal/domain/model"
	"github.com/okian/meetlink/internal/domain/pipeline"
	"github.com/okian/meetlink/internal/domain/reconcile"
	"github.com/okian/meetlink/internal/domain/resolver"
)

// newService opens the store and builds the collaborator clients and
// service described by cfg. Optional collaborators are left out when their
// URL is empty.
func newService(cfg *config.Config) (*app.Service, error) {
	store, err := repository.Open(cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	collabOpts := []collab.Option{collab.WithToken(cfg.CollabToken)}
	meetings := collab.NewMeetingClient(cfg.MeetingsURL, collabOpts...)

	var projects registry.Source = registry.NewStatic(projectCandidates(cfg.Projects))
	if cfg.RegistryURL != "" {
		projects = registry.NewCached(collab.NewProjectsClient(cfg.RegistryURL, collabOpts...),
			registry.WithTTL(time.Duration(cfg.RegistryTTLSeconds)*time.Second))
	}

	opts := []app.Option{
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.EventQueueSize),
		app.WithSeenCacheSize(cfg.SeenCacheSize),
		app.WithWebhookSecret(cfg.WebhookSecret),
		app.WithWebhookEvents(cfg.WebhookEvents...),
		app.WithMaxBodyBytes(cfg.MaxBodyBytes),
		app.WithResolver(resolver.New(resolver.WithEcosystemName(cfg.EcosystemName))),
		app.WithFanout(newFanout(cfg, collabOpts)),
		app.WithPipelineOptions(
			pipeline.WithRetryPolicy(pipeline.RetryPolicy{
				MaxAttempts: cfg.RetryMaxAttempts,
				BaseDelay:   time.Duration(cfg.RetryBaseDelayMS) * time.Millisecond,
			}),
			pipeline.WithStepTimeout(time.Duration(cfg.StepTimeoutMS)*time.Millisecond),
			pipeline.WithMinTranscriptLength(cfg.MinTranscriptLength),
			pipeline.WithStaleAfter(time.Duration(cfg.StalePendingMinutes)*time.Minute),
		),
		app.WithReconcile(time.Duration(cfg.ReconcileIntervalMinutes)*time.Minute,
			reconcile.WithLookback(time.Duration(cfg.ReconcileLookbackHours)*time.Hour),
			reconcile.WithConcurrency(cfg.ReconcileConcurrency),
		),
	}
	if cfg.AnalyzerURL != "" {
		opts = append(opts, app.WithAnalyzer(collab.NewAnalyzerClient(cfg.AnalyzerURL, collabOpts...)))
	}
	if cfg.ChatURL != "" && cfg.OperatorChannel != "" {
		chat := collab.NewChatClient(cfg.ChatURL, collabOpts...)
		opts = append(opts, app.WithAlerter(collab.NewOperatorAlerter(chat, cfg.OperatorChannel)))
	}

	return app.New(store, meetings, projects, opts...), nil
}

func newFanout(cfg *config.Config, collabOpts []collab.Option) *fanout.Executor {
	opts := []fanout.Option{fanout.WithBatchDelay(time.Duration(cfg.FanoutDelayMS) * time.Millisecond)}
	if cfg.TrackerURL != "" {
		opts = append(opts, fanout.WithTracker(collab.NewTrackerClient(cfg.TrackerURL, collabOpts...)))
	}
	if cfg.TasksURL != "" {
		opts = append(opts, fanout.WithTaskCreator(collab.NewTaskClient(cfg.TasksURL, collabOpts...)))
	}
	if cfg.ChatURL != "" && cfg.NotificationChannel != "" {
		opts = append(opts, fanout.WithNotifier(collab.NewChatClient(cfg.ChatURL, collabOpts...), cfg.NotificationChannel))
	}
	return fanout.New(opts...)
}

func projectCandidates(in []config.Project) []model.ProjectCandidate {
	out := make([]model.ProjectCandidate, 0, len(in))
	for _, p := range in {
		out = append(out, model.ProjectCandidate{Key: p.Key, Name: p.Name, Keywords: p.Keywords})
	}
	return out
}
