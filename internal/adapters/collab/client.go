// Package collab holds the JSON-over-HTTP clients for the external
// collaborators: meeting source, analyzer, project registry, tracker, task
// system and chat.
//
// Clients do not retry. They classify failures instead: transport errors,
// timeouts, 429 and 5xx are transient; other 4xx responses are wrapped as
// permanent so the processing pipeline stops retrying them.
package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/okian/meetlink/internal/domain/pipeline"
)

const (
	defaultHTTPTimeout = 20 * time.Second
	maxErrorBodyBytes  = 4 << 10
)

// client is the shared transport of every collaborator client.
type client struct {
	baseURL    string
	token      string
	userAgent  string
	httpClient *http.Client
}

func newClient(baseURL string, opts ...Option) client {
	c := client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		userAgent:  "meetlink",
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// do sends in as JSON (when non-nil) and decodes the response into out
// (when non-nil).
func (c client) do(ctx context.Context, method, path string, in, out any) error {
	if c.baseURL == "" {
		return pipeline.Permanent(ErrNotConfigured)
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return pipeline.Permanent(fmt.Errorf("encode %s %s: %w", method, path, err))
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return pipeline.Permanent(fmt.Errorf("build %s %s: %w", method, path, err))
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(method, path, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pipeline.Permanent(fmt.Errorf("%w: %s %s: %w", ErrInvalidResponse, method, path, err))
	}
	return nil
}

// StatusError is a non-2xx response from a collaborator.
type StatusError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Message)
}

// Transient reports whether retrying the request may succeed.
func (e *StatusError) Transient() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= http.StatusInternalServerError
}

func statusError(method, path string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	msg := strings.TrimSpace(string(raw))
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &parsed) == nil {
		switch {
		case parsed.Message != "":
			msg = parsed.Message
		case parsed.Error != "":
			msg = parsed.Error
		}
	}
	serr := &StatusError{Method: method, Path: path, Status: resp.StatusCode, Message: msg}
	if serr.Transient() {
		return serr
	}
	return pipeline.Permanent(serr)
}

// createdResponse is the reply of every create endpoint.
type createdResponse struct {
	ID string `json:"id"`
}

func (c client) create(ctx context.Context, path string, in any) (string, error) {
	var out createdResponse
	if err := c.do(ctx, http.MethodPost, path, in, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", pipeline.Permanent(fmt.Errorf("%w: POST %s: missing id", ErrInvalidResponse, path))
	}
	return out.ID, nil
}
