package sendwebhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/okian/meetlink/pkg/logger"
)

const recordMissing = "missing"

// verifyRecords fetches the processing record of every meeting and tallies
// their statuses. Meetings without a record count as missing, which is
// expected for ignored deliveries.
func verifyRecords(ctx context.Context, config *Config, meetingIDs []string, stats *Stats) error {
	log := logger.Get().Named("sendwebhook")
	log.Info(ctx, "verifying processing records", logger.Int("meetings", len(meetingIDs)))

	client := newHTTPClient(config)
	var mu sync.Mutex
	counts := make(map[string]int)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(config.Workers)
	for _, id := range meetingIDs {
		g.Go(func() error {
			status, err := fetchStatus(gctx, client, id)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				status = answerFailed
				if config.Verbose {
					log.Warn(gctx, "record lookup failed", logger.String("meetingId", id), logger.Error(err))
				}
			}
			mu.Lock()
			counts[status]++
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()
	stats.Records = counts
	return err
}

func fetchStatus(ctx context.Context, client *HTTPClient, meetingID string) (string, error) {
	resp, err := client.Get(ctx, "/records/"+url.PathEscape(meetingID))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return recordMissing, nil
	default:
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var rec struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return "", err
	}
	return rec.Status, nil
}
