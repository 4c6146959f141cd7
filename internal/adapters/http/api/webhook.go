package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/okian/meetlink/internal/domain/model"
)

// SignatureHeader carries the delivery's HMAC signature.
const SignatureHeader = "X-Signature"

// WebhookHandler handles POST /webhook.
type WebhookHandler struct {
	deps    Dependencies
	maxBody int64
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(deps Dependencies, maxBody int64) *WebhookHandler {
	return &WebhookHandler{deps: deps, maxBody: maxBody}
}

type webhookResponse struct {
	Status    model.Outcome `json:"status"`
	MeetingID string        `json:"meetingId,omitempty"`
}

// HandleWebhook reads the raw body and hands it to the gateway unchanged,
// since the signature covers the exact bytes.
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, "payload_too_large", ErrPayloadTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	res := h.deps.Accept(r.Context(), body, r.Header.Get(SignatureHeader))
	switch res.HTTPCode {
	case http.StatusOK:
		writeJSON(w, http.StatusOK, webhookResponse{Status: res.Outcome, MeetingID: res.MeetingID})
	case http.StatusUnauthorized:
		writeError(w, res.HTTPCode, "unauthorized", errors.New(res.Reason))
	case http.StatusTooManyRequests:
		writeError(w, res.HTTPCode, "backpressure", errors.New(res.Reason))
	case http.StatusServiceUnavailable:
		writeError(w, res.HTTPCode, "unavailable", nil)
	case http.StatusBadRequest:
		writeError(w, res.HTTPCode, "bad_request", errors.New(res.Reason))
	default:
		logServerError(r.Context(), "api.webhook", errors.New(res.Reason))
		writeError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}
