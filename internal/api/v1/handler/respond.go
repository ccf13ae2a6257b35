package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"admindash/internal/dashboard"
	"admindash/internal/middleware"
	"admindash/internal/model"
	"admindash/internal/repository"
	"admindash/internal/service"
	"admindash/internal/trial"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var ErrInvalidMessageID = errors.New("invalid message id")

// AdminDashboard is the per-admin view the admin endpoints read and act through.
type AdminDashboard interface {
	Snapshot(ctx context.Context) *dashboard.Snapshot
	View() *dashboard.Snapshot
	RefreshAll(ctx context.Context) error
	Inbox(ctx context.Context) ([]model.SupportMessage, error)
	MarkRead(ctx context.Context, id string) error
	Open(ctx context.Context, id string) (*dashboard.OpenResult, error)
	Reply(ctx context.Context, id, body string) (*model.SupportMessage, error)
	StripeStats(ctx context.Context) (*model.StripeStats, error)
	Trials(ctx context.Context, f trial.Filter) (*dashboard.TrialsView, error)
	UserActivity(ctx context.Context, userID string) (*model.UserActivity, error)
	SendReminders(ctx context.Context, kind service.ReminderKind, userIDs ...string) ([]string, error)
}

// Sessions hands out the caller's dashboard.
type Sessions interface {
	Acquire(adminID, token string) (AdminDashboard, error)
}

type managerSessions struct {
	m *dashboard.Manager
}

// ManagerSessions serves dashboards from a dashboard.Manager.
func ManagerSessions(m *dashboard.Manager) Sessions {
	return managerSessions{m: m}
}

func (s managerSessions) Acquire(adminID, token string) (AdminDashboard, error) {
	d, err := s.m.Acquire(adminID, token)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// acquire resolves the caller's dashboard and writes the failure response itself.
func acquire(w http.ResponseWriter, r *http.Request, sessions Sessions, logger zerolog.Logger) (AdminDashboard, bool) {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok || sess.UserID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return nil, false
	}
	d, err := sessions.Acquire(sess.UserID, sess.Token)
	if err != nil {
		if errors.Is(err, dashboard.ErrManagerClosed) {
			http.Error(w, "shutting down", http.StatusServiceUnavailable)
			return nil, false
		}
		logger.Error().Err(err).Str("admin_id", sess.UserID).Msg("failed to acquire dashboard")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return nil, false
	}
	return d, true
}

func messageID(r *http.Request) (string, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return "", ErrInvalidMessageID
	}
	return id.String(), nil
}

func writeJSON(w http.ResponseWriter, status int, v any, logger zerolog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error().Err(err).Msg("failed to encode response")
	}
}

// writeError maps known errors to a status and logs the rest.
func writeError(w http.ResponseWriter, err error, logger zerolog.Logger, msg string) {
	switch {
	case errors.Is(err, ErrInvalidMessageID):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, repository.ErrMessageNotFound):
		http.Error(w, "message not found", http.StatusNotFound)
	case errors.Is(err, dashboard.ErrTrialUserNotFound):
		http.Error(w, "trial user not found", http.StatusNotFound)
	case errors.Is(err, dashboard.ErrEmptyReply), errors.Is(err, service.ErrInvalidReminder):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, service.ErrUnauthenticated):
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn().Err(err).Msg(msg)
		http.Error(w, "upstream timeout", http.StatusGatewayTimeout)
	default:
		logger.Error().Err(err).Msg(msg)
		http.Error(w, msg, http.StatusInternalServerError)
	}
}
