package handler

import (
	"encoding/json"
	"net/http"

	"admindash/internal/api/v1/dto"
	"admindash/internal/middleware"
	"admindash/internal/service"

	"github.com/rs/zerolog"
)

// DLQHandler receives reminder jobs Pub/Sub dead-lettered.
type DLQHandler struct {
	service service.DLQService
	logger  zerolog.Logger
}

func NewDLQHandler(s service.DLQService, l zerolog.Logger) *DLQHandler {
	return &DLQHandler{service: s, logger: l}
}

// RegisterRoutes registers the push endpoint.
func (h *DLQHandler) RegisterRoutes(mux *http.ServeMux, pubsubMw func(http.Handler) http.Handler) {
	mux.Handle("POST /dlq/reminders", pubsubMw(http.HandlerFunc(h.RecordDLQ)))
}

// RecordDLQ godoc
// @Summary Store a dead-lettered reminder job
// @Tags dlq
// @Accept json
// @Param message body dto.DeadLetterPush true "Pub/Sub dead-letter push"
// @Success 204
// @Failure 400 {string} string "invalid Pub/Sub message"
// @Router /dlq/reminders [post]
func (h *DLQHandler) RecordDLQ(w http.ResponseWriter, r *http.Request) {
	var req dto.DeadLetterPush
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Message.MessageID == "" {
		http.Error(w, "Invalid Pub/Sub message format: missing message ID", http.StatusBadRequest)
		return
	}

	h.logger.Info().
		Str("messageId", req.Message.MessageID).
		Str("subscription", req.Subscription).
		Str("push_sender", middleware.PushSenderFromContext(r.Context())).
		Msg("Processing dead-letter queue message")

	if err := h.service.ProcessAndSave(r.Context(), &req); err != nil {
		// Acknowledge anyway; a retry would only dead-letter it again.
		h.logger.Error().Err(err).Msg("Failed to save DLQ message to database")
	}
	w.WriteHeader(http.StatusNoContent)
}
