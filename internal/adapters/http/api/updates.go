package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	service "github.com/okian/ecoinvest/internal/app"
	"github.com/okian/ecoinvest/internal/domain/types"
)

const maxUpdateBody = 1 << 20

// UpdateDependencies accepts score updates for async processing.
type UpdateDependencies interface {
	SubmitUpdate(ctx context.Context, req types.ScoreUpdateRequest) (types.AckResponse, error)
}

// UpdateHandler serves POST /api/states/updates.
type UpdateHandler struct {
	deps UpdateDependencies
}

// NewUpdateHandler creates a new update handler.
func NewUpdateHandler(deps UpdateDependencies) *UpdateHandler {
	return &UpdateHandler{deps: deps}
}

// HandlePostUpdate answers 202 for a newly queued update, 200 for a
// duplicate event_id, 409 while the same event_id is still being queued and
// 429 when the queue is full.
func (h *UpdateHandler) HandlePostUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req types.ScoreUpdateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUpdateBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}

	ack, err := h.deps.SubmitUpdate(r.Context(), req)
	switch {
	case errors.Is(err, service.ErrInvalidUpdate):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, service.ErrUpdateInFlight):
		writeError(w, http.StatusConflict, "in_flight", err)
	case errors.Is(err, service.ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", fmt.Errorf("%w: %w", ErrBackpressure, err))
	case err != nil:
		writeServiceError(w, err)
	case ack.Duplicate:
		writeJSON(w, http.StatusOK, ack)
	default:
		writeJSON(w, http.StatusAccepted, ack)
	}
}
