package handler

import (
	"encoding/json"
	"net/http"

	"admindash/internal/api/v1/dto"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// MessageHandler serves the support inbox.
type MessageHandler struct {
	sessions Sessions
	validate *validator.Validate
	logger   zerolog.Logger
}

func NewMessageHandler(sessions Sessions, validate *validator.Validate, logger zerolog.Logger) *MessageHandler {
	return &MessageHandler{sessions: sessions, validate: validate, logger: logger}
}

// RegisterRoutes registers the support inbox endpoints.
func (h *MessageHandler) RegisterRoutes(mux *http.ServeMux, adminMw func(http.Handler) http.Handler) {
	mux.Handle("GET /admin/messages", adminMw(http.HandlerFunc(h.List)))
	mux.Handle("POST /admin/messages/{id}/read", adminMw(http.HandlerFunc(h.MarkRead)))
	mux.Handle("POST /admin/messages/{id}/open", adminMw(http.HandlerFunc(h.Open)))
	mux.Handle("POST /admin/messages/{id}/reply", adminMw(http.HandlerFunc(h.Reply)))
}

// List godoc
// @Summary Support inbox
// @Tags admin
// @Produce json
// @Success 200 {array} model.SupportMessage
// @Router /admin/messages [get]
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	d, ok := acquire(w, r, h.sessions, h.logger)
	if !ok {
		return
	}
	msgs, err := d.Inbox(r.Context())
	if err != nil {
		writeError(w, err, h.logger, "failed to load support messages")
		return
	}
	writeJSON(w, http.StatusOK, msgs, h.logger)
}

// MarkRead godoc
// @Summary Mark a support message read
// @Tags admin
// @Param id path string true "Message ID"
// @Success 204
// @Failure 400 {string} string "invalid message id"
// @Failure 404 {string} string "message not found"
// @Router /admin/messages/{id}/read [post]
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := messageID(r)
	if err != nil {
		writeError(w, err, h.logger, "")
		return
	}
	d, ok := acquire(w, r, h.sessions, h.logger)
	if !ok {
		return
	}
	if err := d.MarkRead(r.Context(), id); err != nil {
		writeError(w, err, h.logger, "failed to mark message read")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Open godoc
// @Summary Open a support message for reply
// @Description Marks the message read. The message is returned even if that fails.
// @Tags admin
// @Param id path string true "Message ID"
// @Produce json
// @Success 200 {object} dto.OpenMessageResponse
// @Router /admin/messages/{id}/open [post]
func (h *MessageHandler) Open(w http.ResponseWriter, r *http.Request) {
	id, err := messageID(r)
	if err != nil {
		writeError(w, err, h.logger, "")
		return
	}
	d, ok := acquire(w, r, h.sessions, h.logger)
	if !ok {
		return
	}
	res, err := d.Open(r.Context(), id)
	if err != nil {
		writeError(w, err, h.logger, "failed to open message")
		return
	}
	resp := dto.OpenMessageResponse{Message: res.Message, MarkedRead: res.MarkReadErr == nil}
	if res.MarkReadErr != nil {
		resp.Warning = "message could not be marked as read"
	}
	writeJSON(w, http.StatusOK, resp, h.logger)
}

// Reply godoc
// @Summary Reply to a support message
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Message ID"
// @Param reply body dto.ReplyRequest true "Reply"
// @Success 201 {object} model.SupportMessage
// @Router /admin/messages/{id}/reply [post]
func (h *MessageHandler) Reply(w http.ResponseWriter, r *http.Request) {
	id, err := messageID(r)
	if err != nil {
		writeError(w, err, h.logger, "")
		return
	}
	var req dto.ReplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	d, ok := acquire(w, r, h.sessions, h.logger)
	if !ok {
		return
	}
	reply, err := d.Reply(r.Context(), id, req.Message)
	if err != nil {
		writeError(w, err, h.logger, "failed to send reply")
		return
	}
	writeJSON(w, http.StatusCreated, reply, h.logger)
}
