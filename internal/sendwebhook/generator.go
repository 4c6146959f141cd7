package sendwebhook

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"

	"github.com/okian/meetlink/pkg/logger"
)

// randomFloat returns a value in [0, 1) using crypto/rand.
func randomFloat() float64 {
	n, err := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	if err != nil {
		return 0
	}
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// generateDeliveries creates Repeat deliveries for each of Meetings fresh
// meeting ids. Copies of one meeting are adjacent, so concurrent senders
// race on them.
func generateDeliveries(ctx context.Context, config *Config, stats *Stats) ([]Delivery, error) {
	if config.Meetings < 1 {
		return nil, fmt.Errorf("%w: meetings must be at least 1", ErrInvalidConfig)
	}
	repeat := max(config.Repeat, 1)

	meetings := make([]Delivery, config.Meetings)
	for i := range meetings {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during generation: %w", err)
		}
		event := config.Event
		if config.IgnoredRate > 0 && randomFloat() < config.IgnoredRate {
			event = IgnoredEvent
		}
		meetings[i] = Delivery{MeetingID: "mtg-" + uuid.NewString(), Event: event}
	}

	deliveries := make([]Delivery, 0, len(meetings)*repeat)
	for _, m := range meetings {
		for r := 0; r < repeat; r++ {
			deliveries = append(deliveries, m)
		}
	}

	stats.Meetings = len(meetings)
	logger.Get().Info(ctx, "generated deliveries",
		logger.Int("meetings", len(meetings)),
		logger.Int("deliveries", len(deliveries)))
	return deliveries, nil
}

// uniqueMeetings returns the distinct meeting ids in order of first use.
func uniqueMeetings(deliveries []Delivery) []string {
	seen := make(map[string]struct{}, len(deliveries))
	out := make([]string, 0, len(deliveries))
	for _, d := range deliveries {
		if _, ok := seen[d.MeetingID]; ok {
			continue
		}
		seen[d.MeetingID] = struct{}{}
		out = append(out, d.MeetingID)
	}
	return out
}
