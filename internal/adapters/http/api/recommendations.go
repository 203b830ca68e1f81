package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	service "github.com/okian/ecoinvest/internal/app"
	"github.com/okian/ecoinvest/internal/domain/types"
	"github.com/okian/ecoinvest/pkg/logger"
)

// NoRegionsMessage is the error text returned when no state pursues a sector.
const NoRegionsMessage = "No regions found for the sector: %s"

// RecommendDependencies defines the recommendation lookup.
type RecommendDependencies interface {
	Recommend(ctx context.Context, sector string) ([]types.Recommendation, error)
}

// RecommendHandler serves POST /recommendations_by_sector.
type RecommendHandler struct {
	deps RecommendDependencies
}

// NewRecommendHandler creates a new recommendation handler.
func NewRecommendHandler(deps RecommendDependencies) *RecommendHandler {
	return &RecommendHandler{deps: deps}
}

// HandleRecommendations reads the form field "sector" and answers with the
// matching states, or 200 {"error": ...} when there are none. An empty
// sector is looked up like any other; a body without the field at all is
// rejected with 400 {"code","message"}.
func (h *RecommendHandler) HandleRecommendations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	if _, ok := r.PostForm["sector"]; !ok {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: missing form field sector", ErrBadRequest))
		return
	}
	sector := r.PostForm.Get("sector")

	recs, err := h.deps.Recommend(r.Context(), sector)
	switch {
	case errors.Is(err, service.ErrNoRegions):
		writeJSON(w, http.StatusOK, ErrorBody{Error: fmt.Sprintf(NoRegionsMessage, sector)})
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", ErrUnavailable)
	case err != nil:
		logger.Get().Error(r.Context(), "recommend failed", logger.String("sector", sector), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	default:
		writeJSON(w, http.StatusOK, recs)
	}
}
