package sendwebhook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/okian/meetlink/pkg/logger"
)

// Run executes a complete load run and returns its statistics.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	if err := validate(config); err != nil {
		return nil, err
	}
	stats := &Stats{StartTime: time.Now()}

	logger.Get().Info(ctx, "starting webhook load run",
		logger.String("baseURL", config.BaseURL),
		logger.Int("meetings", config.Meetings),
		logger.Int("repeat", config.Repeat),
		logger.Int("workers", config.Workers),
		logger.String("event", config.Event),
		logger.Duration("timeout", config.Timeout),
		logger.Bool("verify", config.Verify))

	if err := checkServiceHealth(ctx, config); err != nil {
		return nil, err
	}

	deliveries, err := generateDeliveries(ctx, config, stats)
	if err != nil {
		return nil, fmt.Errorf("delivery generation failed: %w", err)
	}

	submitDeliveries(ctx, config, deliveries, stats)

	if config.Verify {
		logger.Get().Info(ctx, "waiting for meetings to be processed", logger.Duration("wait", config.VerifyWait))
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case <-time.After(config.VerifyWait):
		}
		if err := verifyRecords(ctx, config, uniqueMeetings(deliveries), stats); err != nil {
			return stats, fmt.Errorf("record verification failed: %w", err)
		}
	}

	if config.OutputFile != "" {
		if err := saveDeliveries(ctx, config.OutputFile, deliveries); err != nil {
			logger.Get().Warn(ctx, "failed to save deliveries to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)
	return stats, nil
}

func validate(config *Config) error {
	switch {
	case config == nil:
		return fmt.Errorf("%w: nil config", ErrInvalidConfig)
	case strings.TrimSpace(config.BaseURL) == "":
		return fmt.Errorf("%w: base url is required", ErrInvalidConfig)
	case config.Secret == "":
		return fmt.Errorf("%w: secret is required", ErrInvalidConfig)
	case config.Workers < 1:
		return fmt.Errorf("%w: workers must be at least 1", ErrInvalidConfig)
	case config.IgnoredRate < 0 || config.IgnoredRate > 1:
		return fmt.Errorf("%w: ignored rate must be within [0,1]", ErrInvalidConfig)
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Event == "" {
		config.Event = DefaultEvent
	}
	return nil
}

// checkServiceHealth verifies the service answers on /healthz.
func checkServiceHealth(ctx context.Context, config *Config) error {
	resp, err := newHTTPClient(config).Get(ctx, "/healthz")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode)
	}
	return nil
}

// saveDeliveries writes the generated deliveries to filename as JSON.
func saveDeliveries(ctx context.Context, filename string, deliveries []Delivery) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(deliveries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal deliveries: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	logger.Get().Info(ctx, "deliveries saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var acceptRate, perSecond float64
	if stats.Deliveries > 0 {
		answered := stats.Enqueued + stats.AlreadyProcessed + stats.Ignored
		acceptRate = float64(answered) / float64(stats.Deliveries) * percentageMultiplier
	}
	if stats.Duration > 0 {
		perSecond = float64(stats.Deliveries) / stats.Duration.Seconds()
	}

	fields := []logger.Field{
		logger.Int("meetings", stats.Meetings),
		logger.Int("deliveries", stats.Deliveries),
		logger.Int("enqueued", stats.Enqueued),
		logger.Int("alreadyProcessed", stats.AlreadyProcessed),
		logger.Int("ignored", stats.Ignored),
		logger.Int("rejected", stats.Rejected),
		logger.Int("failed", stats.Failed),
		logger.Duration("duration", stats.Duration),
		logger.Float64("acceptRate", acceptRate),
		logger.Float64("deliveriesPerSecond", perSecond),
	}
	if stats.Records != nil {
		fields = append(fields, logger.Any("records", stats.Records))
	}
	logger.Get().Info(ctx, "final statistics", fields...)
}
