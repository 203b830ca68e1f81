// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/ecoinvest/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	RecommendDependencies
	RegionDependencies
	UpdateDependencies
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	recommendHandler *RecommendHandler
	regionHandler    *RegionHandler
	updateHandler    *UpdateHandler
	dashboardHandler *DashboardHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(deps),
		recommendHandler: NewRecommendHandler(deps),
		regionHandler:    NewRegionHandler(deps),
		updateHandler:    NewUpdateHandler(deps),
		dashboardHandler: NewDashboardHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/recommendations_by_sector",
		MetricsMiddleware(s.recommendHandler.HandleRecommendations, "recommendations_by_sector"))
	mux.HandleFunc("/api/states", MetricsMiddleware(s.regionHandler.HandleStates, "states"))
	mux.HandleFunc("/api/top_regions", MetricsMiddleware(s.regionHandler.HandleTopRegions, "top_regions"))
	mux.HandleFunc("/api/sectors", MetricsMiddleware(s.regionHandler.HandleSectors, "sectors"))
	mux.HandleFunc("/api/states/updates", MetricsMiddleware(s.updateHandler.HandlePostUpdate, "state_updates"))
	mux.Handle("/static/", s.dashboardHandler.StaticHandler())
	mux.HandleFunc("/", s.dashboardHandler.HandleDashboard)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorBody is the recommendation endpoint's error shape.
type ErrorBody = types.ErrorBody

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
