package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"admindash/internal/api/v1/dto"
	"admindash/internal/middleware"
	"admindash/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// PresenceHandler records heartbeats from signed-in users.
type PresenceHandler struct {
	presence service.PresenceService
	validate *validator.Validate
	logger   zerolog.Logger
}

func NewPresenceHandler(presence service.PresenceService, validate *validator.Validate, logger zerolog.Logger) *PresenceHandler {
	return &PresenceHandler{presence: presence, validate: validate, logger: logger}
}

// RegisterRoutes registers the heartbeat endpoint.
func (h *PresenceHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("POST /presence/heartbeat", authMw(http.HandlerFunc(h.Heartbeat)))
}

// Heartbeat godoc
// @Summary Record that the caller is online
// @Tags presence
// @Accept json
// @Param heartbeat body dto.HeartbeatRequest false "Status and page"
// @Success 204
// @Router /presence/heartbeat [post]
func (h *PresenceHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok || sess.UserID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req dto.HeartbeatRequest
	// An empty body is a plain "online" beat.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.presence.Heartbeat(r.Context(), sess.UserID, req.Status, req.CurrentPage, r.UserAgent()); err != nil {
		h.logger.Error().Err(err).Str("user_id", sess.UserID).Msg("failed to record heartbeat")
		http.Error(w, "failed to record heartbeat", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
