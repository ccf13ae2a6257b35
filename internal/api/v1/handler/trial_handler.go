package handler

import (
	"encoding/json"
	"net/http"

	"admindash/internal/api/v1/dto"
	"admindash/internal/service"
	"admindash/internal/trial"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TrialHandler serves the trial pipeline and reminder emails.
type TrialHandler struct {
	sessions Sessions
	validate *validator.Validate
	logger   zerolog.Logger
}

func NewTrialHandler(sessions Sessions, validate *validator.Validate, logger zerolog.Logger) *TrialHandler {
	return &TrialHandler{sessions: sessions, validate: validate, logger: logger}
}

// RegisterRoutes registers the trial endpoints.
func (h *TrialHandler) RegisterRoutes(mux *http.ServeMux, adminMw func(http.Handler) http.Handler) {
	mux.Handle("GET /admin/trials", adminMw(http.HandlerFunc(h.List)))
	mux.Handle("GET /admin/trials/{id}/activity", adminMw(http.HandlerFunc(h.Activity)))
	mux.Handle("POST /admin/trials/{id}/reminder", adminMw(http.HandlerFunc(h.Remind)))
	mux.Handle("POST /admin/trials/reminders", adminMw(http.HandlerFunc(h.RemindMany)))
}

// List godoc
// @Summary Trial pipeline
// @Tags admin
// @Produce json
// @Param status query string false "all, active, ending_today, ending_tomorrow, expired or subscribed"
// @Param role query string false "Profile role"
// @Param engagement query string false "all, hot, warm or cold"
// @Param search query string false "Name or username"
// @Success 200 {object} dashboard.TrialsView
// @Router /admin/trials [get]
func (h *TrialHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := dto.TrialFilterQuery{
		Status:     q.Get("status"),
		Role:       q.Get("role"),
		Engagement: q.Get("engagement"),
		Search:     q.Get("search"),
	}
	if err := h.validate.Struct(&query); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	d, ok := acquire(w, r, h.sessions, h.logger)
	if !ok {
		return
	}
	view, err := d.Trials(r.Context(), trial.Filter(query))
	if err != nil {
		writeError(w, err, h.logger, "failed to load trial users")
		return
	}
	writeJSON(w, http.StatusOK, view, h.logger)
}

// Activity godoc
// @Summary One trial user's activity timeline and score breakdown
// @Tags admin
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} model.UserActivity
// @Failure 404 {string} string "trial user not found"
// @Router /admin/trials/{id}/activity [get]
func (h *TrialHandler) Activity(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}
	d, ok := acquire(w, r, h.sessions, h.logger)
	if !ok {
		return
	}
	act, err := d.UserActivity(r.Context(), userID.String())
	if err != nil {
		writeError(w, err, h.logger, "failed to load user activity")
		return
	}
	writeJSON(w, http.StatusOK, act, h.logger)
}

// Remind godoc
// @Summary Send one trial reminder or offer email
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param reminder body dto.ReminderRequest true "Reminder type"
// @Success 202 {object} dto.ReminderResponse
// @Router /admin/trials/{id}/reminder [post]
func (h *TrialHandler) Remind(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}
	var req dto.ReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	h.send(w, r, service.ReminderKind(req.Type), userID.String())
}

// RemindMany godoc
// @Summary Send trial reminder or offer emails in bulk
// @Tags admin
// @Accept json
// @Produce json
// @Param reminders body dto.BulkReminderRequest true "Reminder type and users"
// @Success 202 {object} dto.ReminderResponse
// @Router /admin/trials/reminders [post]
func (h *TrialHandler) RemindMany(w http.ResponseWriter, r *http.Request) {
	var req dto.BulkReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	h.send(w, r, service.ReminderKind(req.Type), req.UserIDs...)
}

func (h *TrialHandler) send(w http.ResponseWriter, r *http.Request, kind service.ReminderKind, userIDs ...string) {
	d, ok := acquire(w, r, h.sessions, h.logger)
	if !ok {
		return
	}
	jobIDs, err := d.SendReminders(r.Context(), kind, userIDs...)
	if err != nil {
		writeError(w, err, h.logger, "failed to queue reminder emails")
		return
	}
	writeJSON(w, http.StatusAccepted, dto.ReminderResponse{JobIDs: jobIDs}, h.logger)
}
