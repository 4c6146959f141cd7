// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	service "github.com/okian/meetlink/internal/app"
	"github.com/okian/meetlink/internal/domain/gateway"
	"github.com/okian/meetlink/internal/domain/model"
	"github.com/okian/meetlink/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Accept validates and enqueues one webhook delivery.
	Accept(ctx context.Context, rawBody []byte, signature string) gateway.Result

	// Read operations expose attributions and processing records.
	Attributions(ctx context.Context, projectKeys []string, since time.Time, backfill bool) ([]model.Attribution, error)
	Record(ctx context.Context, meetingID string) (model.ProcessingRecord, error)
}

// StatsProvider defines the interface for getting service statistics.
type StatsProvider interface {
	Stats(ctx context.Context) (service.Stats, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler       *HealthHandler
	statsHandler        *StatsHandler
	webhookHandler      *WebhookHandler
	attributionsHandler *AttributionsHandler
	recordsHandler      *RecordsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	cfg := serverConfig{maxBodyBytes: gateway.DefaultMaxBodyBytes}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		healthHandler:       NewHealthHandler(),
		statsHandler:        NewStatsHandler(statsProvider),
		webhookHandler:      NewWebhookHandler(deps, cfg.maxBodyBytes),
		attributionsHandler: NewAttributionsHandler(deps),
		recordsHandler:      NewRecordsHandler(deps),
	}
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.Post("/webhook", MetricsMiddleware(s.webhookHandler.HandleWebhook, "webhook"))
	r.Get("/attributions", MetricsMiddleware(s.attributionsHandler.HandleList, "attributions"))
	r.Get("/records/{meetingId}", MetricsMiddleware(s.recordsHandler.HandleGet, "records"))
	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
}

// Router returns a chi router with the API registered behind the standard
// request-id and panic-recovery middleware.
func (s *Server) Router(ctx context.Context) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
	})
	s.Register(ctx, r)
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a {code,message} body. Server errors never echo err.
func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil && status < http.StatusInternalServerError {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func logServerError(ctx context.Context, op string, err error) {
	logger.Get().Named("api").Error(ctx, "request failed", logger.String("op", op), logger.Error(err))
}
