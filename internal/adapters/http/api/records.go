package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	service "github.com/okian/meetlink/internal/app"
	"github.com/okian/meetlink/internal/domain/model"
)

// RecordsHandler handles GET /records/{meetingId}.
type RecordsHandler struct {
	deps Dependencies
}

// NewRecordsHandler creates a new records handler.
func NewRecordsHandler(deps Dependencies) *RecordsHandler {
	return &RecordsHandler{deps: deps}
}

// HandleGet returns the processing record of one meeting.
func (h *RecordsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_record"
	rec, err := h.deps.Record(r.Context(), chi.URLParam(r, "meetingId"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, rec)
	case errors.Is(err, model.ErrRecordNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, service.ErrInvalidMeetingID):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	default:
		logServerError(r.Context(), op, err)
		writeError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}
