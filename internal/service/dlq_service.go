package service

import (
	"context"
	"encoding/json"

	"admindash/internal/api/v1/dto"
	"admindash/internal/model"
	"admindash/internal/repository"

	"github.com/rs/zerolog"
)

type DLQService interface {
	ProcessAndSave(ctx context.Context, req *dto.DeadLetterPush) error
}

type dlqService struct {
	repo   repository.DLQRepository
	logger zerolog.Logger
}

func NewDLQService(repo repository.DLQRepository, logger zerolog.Logger) DLQService {
	return &dlqService{repo: repo, logger: logger.With().Str("service", "DLQService").Logger()}
}

func (s *dlqService) ProcessAndSave(ctx context.Context, req *dto.DeadLetterPush) error {
	payload := req.Message.Payload()

	var attributesJSON *string
	if len(req.Message.Attributes) > 0 {
		if attrBytes, err := json.Marshal(req.Message.Attributes); err == nil {
			attrStr := string(attrBytes)
			attributesJSON = &attrStr
		}
	}

	// Reminder jobs carry the target user; anything else is stored without one.
	var userID *string
	job, isReminder := req.Message.Reminder()
	if isReminder {
		userID = &job.UserID
	}

	dbMessage := &model.DeadLetterMessage{
		SubscriptionName: req.Subscription,
		MessageID:        req.Message.MessageID,
		UserID:           userID,
		Payload:          string(payload),
		Attributes:       attributesJSON,
		Status:           "unprocessed",
	}
	if err := s.repo.Create(ctx, dbMessage); err != nil {
		s.logger.Error().Err(err).Str("message_id", req.Message.MessageID).Msg("Failed to store dead letter")
		return err
	}
	s.logger.Warn().
		Str("message_id", req.Message.MessageID).
		Str("subscription", req.Subscription).
		Str("job_id", job.JobID).
		Str("type", job.Type).
		Int("delivery_attempt", req.DeliveryAttempt).
		Msg("Stored dead-lettered reminder")
	return nil
}
