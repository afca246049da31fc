package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-activity-log/internal/models"
	"github.com/noah-isme/gema-activity-log/internal/observability"
	"github.com/noah-isme/gema-activity-log/internal/repository"
)

const retentionBatchSize = 5000

// RetentionPolicy sets how long records are kept per actor type. A
// non-positive window keeps records forever.
type RetentionPolicy struct {
	UserDays  int
	GuestDays int
}

// RetentionResult reports how many records a purge removed.
type RetentionResult struct {
	UserDeleted  int64
	GuestDeleted int64
}

// RetentionService deletes activity records that fell out of their window.
type RetentionService struct {
	repo   repository.ActivityLogRepository
	policy RetentionPolicy
	logger zerolog.Logger
	now    func() time.Time
}

// NewRetentionService constructs the retention service.
func NewRetentionService(repo repository.ActivityLogRepository, policy RetentionPolicy, logger zerolog.Logger) *RetentionService {
	return &RetentionService{
		repo:   repo,
		policy: policy,
		logger: logger.With().Str("component", "retention_service").Logger(),
		now:    time.Now,
	}
}

// PurgeOnce applies the policy a single time.
func (s *RetentionService) PurgeOnce(ctx context.Context) (RetentionResult, error) {
	var result RetentionResult

	userDeleted, err := s.purge(ctx, models.ActorTypeUser, s.policy.UserDays)
	if err != nil {
		return result, err
	}
	result.UserDeleted = userDeleted

	guestDeleted, err := s.purge(ctx, models.ActorTypeGuest, s.policy.GuestDays)
	if err != nil {
		return result, err
	}
	result.GuestDeleted = guestDeleted

	s.logger.Info().
		Int64("user_deleted", result.UserDeleted).
		Int64("guest_deleted", result.GuestDeleted).
		Msg("activity retention applied")
	return result, nil
}

// Run applies the policy every interval until ctx is cancelled.
func (s *RetentionService) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.PurgeOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error().Err(err).Msg("activity retention failed")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *RetentionService) purge(ctx context.Context, actorType models.ActorType, days int) (int64, error) {
	if days <= 0 {
		return 0, nil
	}

	cutoff := s.now().UTC().AddDate(0, 0, -days)
	deleted, err := s.repo.PurgeBefore(ctx, actorType, cutoff, retentionBatchSize)
	if deleted > 0 {
		observability.ActivityRetentionDeleted().WithLabelValues(string(actorType)).Add(float64(deleted))
	}
	return deleted, err
}
