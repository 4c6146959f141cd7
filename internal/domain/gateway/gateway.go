// Package gateway authenticates and filters inbound meeting webhooks and
// hands new meetings to the worker queue. It never does processing work
// itself and answers within one store lookup and one enqueue.
package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/okian/meetlink/internal/domain/dedupe"
	"github.com/okian/meetlink/internal/domain/model"
	"github.com/okian/meetlink/pkg/logger"
	"github.com/okian/meetlink/pkg/metrics"
)

// Gateway defaults.
const (
	DefaultMaxBodyBytes = 1 << 20
	SignaturePrefix     = "sha256="
)

// DefaultEvents are the event types that trigger processing.
var DefaultEvents = []string{"transcript.completed", "meeting.completed"} //nolint:gochecknoglobals // default list, copied on use

// Lookup is the read-only view of the idempotency store.
type Lookup interface {
	Get(ctx context.Context, meetingID string) (model.ProcessingRecord, error)
}

// Enqueuer accepts tasks for the worker pool without blocking.
type Enqueuer interface {
	Enqueue(ctx context.Context, task model.Task) error
}

// Result is the gateway's answer to one delivery.
type Result struct {
	Outcome   model.Outcome
	HTTPCode  int
	MeetingID string
	Reason    string
}

type payload struct {
	MeetingID string `json:"meetingId"`
	Event     string `json:"event"`
}

// Gateway validates deliveries and enqueues new meetings.
type Gateway struct {
	secret  []byte
	events  map[string]struct{}
	maxBody int
	lookup  Lookup
	queue   Enqueuer
	seen    dedupe.SeenCache
	now     func() time.Time
	logger  logger.Logger
}

// New creates a Gateway verifying deliveries with secret.
func New(secret string, lookup Lookup, queue Enqueuer, opts ...Option) *Gateway {
	g := &Gateway{
		secret:  []byte(secret),
		maxBody: DefaultMaxBodyBytes,
		lookup:  lookup,
		queue:   queue,
		now:     time.Now,
		logger:  logger.Get().Named("gateway"),
	}
	g.setEvents(DefaultEvents)
	for _, opt := range opts {
		opt(g)
	}
	if g.seen == nil {
		g.seen = dedupe.NewInMemoryCache()
	}
	return g
}

// Accept handles one webhook delivery: rawBody exactly as received and the
// value of the signature header.
func (g *Gateway) Accept(ctx context.Context, rawBody []byte, signature string) Result {
	res := g.accept(ctx, rawBody, signature)
	metrics.RecordWebhookOutcome(string(res.Outcome))
	return res
}

func (g *Gateway) accept(ctx context.Context, rawBody []byte, signature string) Result {
	if len(g.secret) == 0 {
		g.logger.Error(ctx, "webhook secret is not configured")
		return rejected(http.StatusInternalServerError, "", "webhook secret not configured")
	}
	if len(rawBody) > g.maxBody {
		return rejected(http.StatusBadRequest, "", "payload too large")
	}
	if !g.verify(rawBody, signature) {
		return rejected(http.StatusUnauthorized, "", "invalid signature")
	}

	var p payload
	if err := json.Unmarshal(rawBody, &p); err != nil {
		return rejected(http.StatusBadRequest, "", "invalid JSON payload")
	}
	id := strings.TrimSpace(p.MeetingID)
	if id == "" {
		return rejected(http.StatusBadRequest, "", "missing meetingId")
	}
	event := strings.TrimSpace(p.Event)
	if event == "" {
		return rejected(http.StatusBadRequest, id, "missing event")
	}
	if _, ok := g.events[event]; !ok {
		return Result{Outcome: model.OutcomeIgnored, HTTPCode: http.StatusOK, MeetingID: id, Reason: "event " + event + " ignored"}
	}

	if g.seen.SeenAndRecord(ctx, id) {
		metrics.RecordWebhookCacheHit()
		return alreadyProcessed(id)
	}

	rec, err := g.lookup.Get(ctx, id)
	switch {
	case err == nil:
		g.logger.Debug(ctx, "meeting already has a record", logger.String("meetingId", id), logger.String("status", string(rec.Status)))
		return alreadyProcessed(id)
	case errors.Is(err, model.ErrRecordNotFound):
	default:
		// The worker's claim is authoritative; a failed lookup only costs a
		// redundant enqueue.
		metrics.RecordWebhookLookupError()
		g.logger.Warn(ctx, "idempotency lookup failed, enqueueing anyway", logger.String("meetingId", id), logger.Error(err))
	}

	task := model.Task{MeetingID: id, Source: model.SourceWebhook, EnqueuedAt: g.now().UTC()}
	if err := g.queue.Enqueue(ctx, task); err != nil {
		g.seen.Invalidate(ctx, id)
		g.logger.Warn(ctx, "enqueue rejected", logger.String("meetingId", id), logger.Error(err))
		return rejected(http.StatusTooManyRequests, id, "queue unavailable")
	}
	return Result{Outcome: model.OutcomeEnqueued, HTTPCode: http.StatusOK, MeetingID: id}
}

// Invalidate forgets that meetingID was seen, so the next delivery goes
// back to the store.
func (g *Gateway) Invalidate(ctx context.Context, meetingID string) {
	g.seen.Invalidate(ctx, meetingID)
}

// verify checks "sha256=<hex>" against HMAC-SHA256 of body in constant time.
func (g *Gateway) verify(body []byte, header string) bool {
	header = strings.TrimSpace(header)
	if !strings.HasPrefix(header, SignaturePrefix) {
		return false
	}
	got, err := hex.DecodeString(strings.TrimPrefix(header, SignaturePrefix))
	if err != nil {
		return false
	}
	return hmac.Equal(got, Sign(g.secret, body))
}

// Sign returns the raw HMAC-SHA256 of body under secret.
func Sign(secret, body []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write(body)
	return mac.Sum(nil)
}

// SignatureHeader renders the header value a sender must attach to body.
func SignatureHeader(secret, body []byte) string {
	return SignaturePrefix + hex.EncodeToString(Sign(secret, body))
}

func (g *Gateway) setEvents(events []string) {
	g.events = make(map[string]struct{}, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			g.events[e] = struct{}{}
		}
	}
}

func rejected(code int, id, reason string) Result {
	return Result{Outcome: model.OutcomeRejected, HTTPCode: code, MeetingID: id, Reason: reason}
}

func alreadyProcessed(id string) Result {
	return Result{Outcome: model.OutcomeAlreadyProcessed, HTTPCode: http.StatusOK, MeetingID: id}
}
