package handler

import (
	"net/http"

	"github.com/rs/zerolog"
)

// DashboardHandler serves the admin dashboard snapshot and subscription report.
type DashboardHandler struct {
	sessions Sessions
	logger   zerolog.Logger
}

func NewDashboardHandler(sessions Sessions, logger zerolog.Logger) *DashboardHandler {
	return &DashboardHandler{sessions: sessions, logger: logger}
}

// RegisterRoutes registers the dashboard endpoints.
func (h *DashboardHandler) RegisterRoutes(mux *http.ServeMux, adminMw func(http.Handler) http.Handler) {
	mux.Handle("GET /admin/dashboard", adminMw(http.HandlerFunc(h.Snapshot)))
	mux.Handle("POST /admin/dashboard/refresh", adminMw(http.HandlerFunc(h.Refresh)))
	mux.Handle("GET /admin/stripe-stats", adminMw(http.HandlerFunc(h.StripeStats)))
}

// Snapshot godoc
// @Summary Admin dashboard snapshot
// @Description Returns every dashboard section. A failed section carries its error
// @Description without failing the response.
// @Tags admin
// @Produce json
// @Success 200 {object} dashboard.Snapshot
// @Failure 401 {string} string "unauthorized"
// @Router /admin/dashboard [get]
func (h *DashboardHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	d, ok := acquire(w, r, h.sessions, h.logger)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, d.Snapshot(r.Context()), h.logger)
}

// Refresh godoc
// @Summary Refresh every dashboard section
// @Tags admin
// @Produce json
// @Success 200 {object} dashboard.Snapshot
// @Router /admin/dashboard/refresh [post]
func (h *DashboardHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	d, ok := acquire(w, r, h.sessions, h.logger)
	if !ok {
		return
	}
	// Failed sections are reported inside the snapshot. Reading through the cache
	// again would wait on the failed sections a second time.
	if err := d.RefreshAll(r.Context()); err != nil {
		h.logger.Warn().Err(err).Msg("dashboard refresh incomplete")
		writeJSON(w, http.StatusOK, d.View(), h.logger)
		return
	}
	writeJSON(w, http.StatusOK, d.Snapshot(r.Context()), h.logger)
}

// StripeStats godoc
// @Summary Stripe subscription report
// @Tags admin
// @Produce json
// @Success 200 {object} model.StripeStats
// @Failure 401 {string} string "unauthorized"
// @Router /admin/stripe-stats [get]
func (h *DashboardHandler) StripeStats(w http.ResponseWriter, r *http.Request) {
	d, ok := acquire(w, r, h.sessions, h.logger)
	if !ok {
		return
	}
	stats, err := d.StripeStats(r.Context())
	if err != nil {
		writeError(w, err, h.logger, "failed to load subscription stats")
		return
	}
	writeJSON(w, http.StatusOK, stats, h.logger)
}
