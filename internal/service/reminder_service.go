package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"admindash/internal/pubsub"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type ReminderKind string

const (
	ReminderTrialEnding ReminderKind = "reminder"
	ReminderOffer       ReminderKind = "offer"
)

var ErrInvalidReminder = errors.New("invalid reminder")

// ReminderJob is the message the email worker consumes.
type ReminderJob struct {
	JobID       string       `json:"job_id"`
	UserID      string       `json:"user_id"`
	Kind        ReminderKind `json:"type"`
	RequestedBy string       `json:"requested_by"`
	RequestedAt time.Time    `json:"requested_at"`
}

type ReminderService interface {
	// Send queues one email per user and returns the job IDs in input order.
	Send(ctx context.Context, requestedBy string, kind ReminderKind, userIDs ...string) ([]string, error)
}

type reminderService struct {
	publisher pubsub.Publisher
	topic     string
	now       func() time.Time
	logger    zerolog.Logger
}

func NewReminderService(publisher pubsub.Publisher, topic string, logger zerolog.Logger) ReminderService {
	return &reminderService{
		publisher: publisher,
		topic:     topic,
		now:       time.Now,
		logger:    logger.With().Str("service", "ReminderService").Logger(),
	}
}

func (s *reminderService) Send(ctx context.Context, requestedBy string, kind ReminderKind, userIDs ...string) ([]string, error) {
	if kind != ReminderTrialEnding && kind != ReminderOffer {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidReminder, kind)
	}
	if len(userIDs) == 0 {
		return nil, fmt.Errorf("%w: no users", ErrInvalidReminder)
	}

	jobIDs := make([]string, 0, len(userIDs))
	for _, userID := range userIDs {
		job := ReminderJob{
			JobID:       uuid.NewString(),
			UserID:      userID,
			Kind:        kind,
			RequestedBy: requestedBy,
			RequestedAt: s.now(),
		}
		payload, err := json.Marshal(job)
		if err != nil {
			return jobIDs, fmt.Errorf("marshal reminder job: %w", err)
		}
		msgID, err := s.publisher.Publish(ctx, s.topic, payload)
		if err != nil {
			s.logger.Error().Err(err).Str("user_id", userID).Str("type", string(kind)).Msg("Failed to publish reminder job")
			return jobIDs, fmt.Errorf("publish reminder for %s: %w", userID, err)
		}
		s.logger.Info().Str("user_id", userID).Str("job_id", job.JobID).Str("message_id", msgID).Msg("Queued reminder email")
		jobIDs = append(jobIDs, job.JobID)
	}
	return jobIDs, nil
}
