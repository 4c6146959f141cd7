package sendwebhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/okian/meetlink/internal/domain/gateway"
	"github.com/okian/meetlink/pkg/logger"
)

// signatureHeader must match the header the service reads.
const signatureHeader = "X-Signature"

// HTTPClient signs and sends deliveries.
type HTTPClient struct {
	client  *http.Client
	baseURL string
	secret  []byte
}

// newHTTPClient creates a new HTTP client for config.
func newHTTPClient(config *Config) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: config.Timeout},
		baseURL: config.BaseURL,
		secret:  []byte(config.Secret),
	}
}

// Get performs a GET request against the service.
func (c *HTTPClient) Get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Send posts one signed delivery and classifies the answer.
func (c *HTTPClient) Send(ctx context.Context, d Delivery) (string, error) {
	body, err := json.Marshal(d)
	if err != nil {
		return answerFailed, fmt.Errorf("failed to marshal delivery: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/webhook", bytes.NewReader(body))
	if err != nil {
		return answerFailed, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(signatureHeader, gateway.SignatureHeader(c.secret, body))

	resp, err := c.client.Do(req)
	if err != nil {
		return answerFailed, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return answerFailed, err
	}
	if resp.StatusCode != http.StatusOK {
		return answerRejected, fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}

	var ack struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &ack); err != nil {
		return answerFailed, fmt.Errorf("decode answer: %w", err)
	}
	switch ack.Status {
	case answerEnqueued, answerAlreadyProcessed, answerIgnored:
		return ack.Status, nil
	default:
		return answerFailed, fmt.Errorf("unexpected status %q", ack.Status)
	}
}

// submitDeliveries sends deliveries concurrently using a worker pool.
func submitDeliveries(ctx context.Context, config *Config, deliveries []Delivery, stats *Stats) {
	log := logger.Get().Named("sendwebhook")
	log.Info(ctx, "submitting deliveries", logger.Int("deliveries", len(deliveries)), logger.Int("workers", config.Workers))

	client := newHTTPClient(config)

	var enqueued, already, ignored, rejected, failed, submitted atomic.Int64

	deliveryChan := make(chan Delivery, config.Workers*workerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for d := range deliveryChan {
				answer, err := client.Send(ctx, d)
				submitted.Add(1)
				switch answer {
				case answerEnqueued:
					enqueued.Add(1)
				case answerAlreadyProcessed:
					already.Add(1)
				case answerIgnored:
					ignored.Add(1)
				case answerRejected:
					rejected.Add(1)
				default:
					failed.Add(1)
				}
				if err != nil && config.Verbose {
					log.Warn(ctx, "delivery not accepted", logger.String("meetingId", d.MeetingID), logger.String("answer", answer), logger.Error(err))
				}
			}
		}()
	}

	go func() {
		defer close(deliveryChan)
		for _, d := range deliveries {
			select {
			case <-ctx.Done():
				return
			case deliveryChan <- d:
			}
		}
	}()

	wg.Wait()

	stats.Deliveries = int(submitted.Load())
	stats.Enqueued = int(enqueued.Load())
	stats.AlreadyProcessed = int(already.Load())
	stats.Ignored = int(ignored.Load())
	stats.Rejected = int(rejected.Load())
	stats.Failed = int(failed.Load())

	log.Info(ctx, "submission completed",
		logger.Int("enqueued", stats.Enqueued),
		logger.Int("alreadyProcessed", stats.AlreadyProcessed),
		logger.Int("ignored", stats.Ignored),
		logger.Int("rejected", stats.Rejected),
		logger.Int("failed", stats.Failed))
}
