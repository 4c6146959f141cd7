// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers defaults, an optional YAML file and MEETLINK_* env vars.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
	"strings"
)

// Project is a statically configured attribution candidate.
type Project struct {
	Key      string   `koanf:"key"`
	Name     string   `koanf:"name"`
	Keywords []string `koanf:"keywords"`
}

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// WebhookSecret is the shared HMAC secret for POST /webhook.
	WebhookSecret string `koanf:"webhook_secret"`

	// WebhookEvents lists the event types that trigger processing.
	WebhookEvents []string `koanf:"webhook_events"`

	// MaxBodyBytes caps webhook request bodies.
	MaxBodyBytes int64 `koanf:"max_body_bytes"`

	// SeenCacheSize bounds the gateway's cache of known meeting ids.
	SeenCacheSize int `koanf:"seen_cache_size"`

	// EventQueueSize bounds the in-memory task queue.
	EventQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of pipeline workers.
	WorkerCount int `koanf:"worker_count"`

	// DatabaseDSN selects the store backend: memory://, sqlite://path, postgres://...
	DatabaseDSN string `koanf:"database_dsn"`

	// RetryMaxAttempts and RetryBaseDelayMS drive exponential backoff.
	// RetryBaseDelayMS must be positive.
	RetryMaxAttempts int `koanf:"retry_max_attempts"`
	RetryBaseDelayMS int `koanf:"retry_base_delay_ms"`

	// StepTimeoutMS bounds each remote pipeline call.
	StepTimeoutMS int `koanf:"step_timeout_ms"`

	// MinTranscriptLength is the shortest transcript worth processing.
	MinTranscriptLength int `koanf:"min_transcript_length"`

	// StalePendingMinutes marks pending records as abandoned; 0 disables reclaim.
	StalePendingMinutes int `koanf:"stale_pending_minutes"`

	// EcosystemName is added to the resolver's generic word list.
	EcosystemName string `koanf:"ecosystem_name"`

	// FanoutDelayMS separates batched remote calls in fanout actions.
	FanoutDelayMS int `koanf:"fanout_delay_ms"`

	// NotificationChannel receives meeting notifications; empty disables them.
	NotificationChannel string `koanf:"notification_channel"`

	// OperatorChannel receives retry-exhaustion alerts.
	OperatorChannel string `koanf:"operator_channel"`

	// ReconcileIntervalMinutes schedules the sweep; 0 disables it.
	ReconcileIntervalMinutes int `koanf:"reconcile_interval_minutes"`
	ReconcileLookbackHours   int `koanf:"reconcile_lookback_hours"`
	ReconcileConcurrency     int `koanf:"reconcile_concurrency"`

	// RegistryTTLSeconds controls how long the project list is cached.
	RegistryTTLSeconds int `koanf:"registry_ttl_seconds"`

	// Collaborator base URLs. An empty RegistryURL uses Projects instead.
	MeetingsURL string `koanf:"meetings_url"`
	AnalyzerURL string `koanf:"analyzer_url"`
	RegistryURL string `koanf:"registry_url"`
	TrackerURL  string `koanf:"tracker_url"`
	TasksURL    string `koanf:"tasks_url"`
	ChatURL     string `koanf:"chat_url"`
	// CollabToken is sent as a bearer token to every collaborator.
	CollabToken string `koanf:"collab_token"`

	// Projects is the static project registry.
	Projects []Project `koanf:"projects"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:                 "info",
		LogFormat:                "text",
		Addr:                     ":9080",
		WebhookEvents:            []string{"transcript.completed", "meeting.completed"},
		MaxBodyBytes:             1 << 20,
		SeenCacheSize:            50_000,
		EventQueueSize:           10_000,
		WorkerCount:              runtime.NumCPU() * 2,
		DatabaseDSN:              "memory://",
		RetryMaxAttempts:         3,
		RetryBaseDelayMS:         60_000,
		StepTimeoutMS:            30_000,
		MinTranscriptLength:      100,
		StalePendingMinutes:      30,
		FanoutDelayMS:            250,
		ReconcileIntervalMinutes: 15,
		ReconcileLookbackHours:   24,
		ReconcileConcurrency:     4,
		RegistryTTLSeconds:       300,
	}
}

// Validate checks the invariants the service relies on.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.RetryMaxAttempts < 1:
		return fmt.Errorf("%w: retry_max_attempts must be at least 1", ErrInvalidConfig)
	case c.RetryBaseDelayMS < 1:
		return fmt.Errorf("%w: retry_base_delay_ms must be at least 1", ErrInvalidConfig)
	case strings.TrimSpace(c.DatabaseDSN) == "":
		return fmt.Errorf("%w: database_dsn must not be empty", ErrInvalidConfig)
	}
	seen := make(map[string]struct{}, len(c.Projects))
	for i, p := range c.Projects {
		key := strings.ToUpper(strings.TrimSpace(p.Key))
		if key == "" {
			return fmt.Errorf("%w: projects[%d] has no key", ErrInvalidConfig, i)
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: duplicate project key %q", ErrInvalidConfig, p.Key)
		}
		seen[key] = struct{}{}
	}
	return nil
}
