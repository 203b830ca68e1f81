package api

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/okian/ecoinvest/internal/domain/types"
	"github.com/okian/ecoinvest/pkg/logger"
)

//go:embed templates/index.html
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templatesFS, "templates/index.html"))

// DashboardDependencies is what the page renders server-side.
type DashboardDependencies interface {
	States(ctx context.Context) ([]types.Region, error)
	TopRegions(ctx context.Context, n int) ([]types.Region, error)
	Sectors(ctx context.Context) ([]string, error)
}

// DashboardHandler serves the recommendations page and its assets.
type DashboardHandler struct {
	deps   DashboardDependencies
	static http.Handler
}

type dashboardData struct {
	Sectors    []string
	TopRegions []types.Region
	States     []types.Region
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(deps DashboardDependencies) *DashboardHandler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err) // embedded path is fixed at compile time
	}
	return &DashboardHandler{
		deps:   deps,
		static: http.StripPrefix("/static/", http.FileServerFS(sub)),
	}
}

// StaticHandler serves /static/ assets.
func (h *DashboardHandler) StaticHandler() http.Handler {
	return h.static
}

// HandleDashboard handles GET / with the sector form, the list area, the
// chart canvas, the top regions table and the table of every state.
func (h *DashboardHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" || r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	ctx := r.Context()

	sectors, err := h.deps.Sectors(ctx)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	top, err := h.deps.TopRegions(ctx, 0)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	states, err := h.deps.States(ctx)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, dashboardData{Sectors: sectors, TopRegions: top, States: states}); err != nil {
		logger.Get().Error(ctx, "render dashboard", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", fmt.Errorf("%w: %w", ErrTemplate, err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
