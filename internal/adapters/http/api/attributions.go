package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/okian/meetlink/internal/domain/model"
)

// AttributionsHandler handles GET /attributions.
type AttributionsHandler struct {
	deps Dependencies
}

// NewAttributionsHandler creates a new attributions handler.
func NewAttributionsHandler(deps Dependencies) *AttributionsHandler {
	return &AttributionsHandler{deps: deps}
}

// HandleList handles GET /attributions?project=KEY&since=RFC3339&backfill=true.
// project may repeat or hold a comma-separated list.
func (h *AttributionsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_attributions"
	q := r.URL.Query()

	var since time.Time
	if raw := strings.TrimSpace(q.Get("since")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", ErrInvalidSince)
			return
		}
		since = t
	}

	backfill := false
	if raw := strings.TrimSpace(q.Get("backfill")); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", ErrInvalidBackfill)
			return
		}
		backfill = b
	}

	rows, err := h.deps.Attributions(r.Context(), projectKeys(q["project"]), since, backfill)
	if err != nil {
		logServerError(r.Context(), op, err)
		writeError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	if rows == nil {
		rows = []model.Attribution{}
	}
	writeJSON(w, http.StatusOK, rows)
}
