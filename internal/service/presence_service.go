package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"admindash/internal/model"
	"admindash/internal/repository"

	"github.com/mssola/useragent"
	"github.com/rs/zerolog"
)

const defaultPresenceStatus = "online"

type PresenceService interface {
	Heartbeat(ctx context.Context, userID, status, currentPage, userAgent string) error
}

type presenceService struct {
	repo   repository.PresenceRepository
	now    func() time.Time
	logger zerolog.Logger
}

func NewPresenceService(repo repository.PresenceRepository, logger zerolog.Logger) PresenceService {
	return &presenceService{
		repo:   repo,
		now:    time.Now,
		logger: logger.With().Str("service", "PresenceService").Logger(),
	}
}

func (s *presenceService) Heartbeat(ctx context.Context, userID, status, currentPage, userAgent string) error {
	if status == "" {
		status = defaultPresenceStatus
	}
	hb := model.Heartbeat{
		UserID:      userID,
		Status:      status,
		CurrentPage: currentPage,
		DeviceInfo:  DescribeDevice(userAgent),
		SeenAt:      s.now().UTC(),
	}
	if err := s.repo.Upsert(ctx, hb); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to record heartbeat")
		return err
	}
	return nil
}

// DescribeDevice summarises a user agent as "Browser Version on OS".
func DescribeDevice(ua string) string {
	if strings.TrimSpace(ua) == "" {
		return ""
	}
	parsed := useragent.New(ua)
	name, version := parsed.Browser()
	if major, _, ok := strings.Cut(version, "."); ok {
		version = major
	}

	desc := strings.TrimSpace(name + " " + version)
	if osName := parsed.OSInfo().Name; osName != "" {
		desc = fmt.Sprintf("%s on %s", desc, osName)
	}
	if parsed.Mobile() {
		desc += " (mobile)"
	}
	return desc
}
