package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	service "github.com/okian/ecoinvest/internal/app"
	"github.com/okian/ecoinvest/internal/domain/types"
)

// RegionDependencies defines the read side of the state rankings.
type RegionDependencies interface {
	States(ctx context.Context) ([]types.Region, error)
	TopRegions(ctx context.Context, n int) ([]types.Region, error)
	Sectors(ctx context.Context) ([]string, error)
}

// RegionHandler serves the ranking endpoints.
type RegionHandler struct {
	deps RegionDependencies
}

// NewRegionHandler creates a new region handler.
func NewRegionHandler(deps RegionDependencies) *RegionHandler {
	return &RegionHandler{deps: deps}
}

// HandleStates handles GET /api/states.
func (h *RegionHandler) HandleStates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	states, err := h.deps.States(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, states)
}

// HandleTopRegions handles GET /api/top_regions?limit=N. Without limit the
// server default applies.
func (h *RegionHandler) HandleTopRegions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	var n int
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: limit must be a positive integer", ErrBadRequest))
			return
		}
		n = v
	}
	top, err := h.deps.TopRegions(r.Context(), n)
	if errors.Is(err, service.ErrInvalidLimit) {
		writeError(w, http.StatusBadRequest, "limit_exceeded", err)
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, top)
}

// HandleSectors handles GET /api/sectors.
func (h *RegionHandler) HandleSectors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	sectors, err := h.deps.Sectors(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if sectors == nil {
		sectors = []string{}
	}
	writeJSON(w, http.StatusOK, sectors)
}

func writeServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, service.ErrNotStarted) {
		writeError(w, http.StatusServiceUnavailable, "unavailable", ErrUnavailable)
		return
	}
	writeError(w, http.StatusInternalServerError, "internal_error", err)
}
