package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/gema-activity-log/internal/dto"
	"github.com/noah-isme/gema-activity-log/internal/repository"
)

const (
	defaultSummaryDays = 56
	maxSummaryDays     = 366
	summaryTopEntities = 10
)

// ActivitySummaryService aggregates the activity trail for the admin dashboard.
type ActivitySummaryService interface {
	Summary(ctx context.Context, days int) (dto.ActivitySummaryResponse, error)
}

type activitySummaryService struct {
	repo     repository.ActivityStatsRepository
	cache    *redis.Client
	cacheTTL time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

// NewActivitySummaryService constructs the summary service. cache may be nil.
func NewActivitySummaryService(repo repository.ActivityStatsRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) ActivitySummaryService {
	return &activitySummaryService{
		repo:     repo,
		cache:    cache,
		cacheTTL: ttl,
		logger:   logger.With().Str("component", "activity_summary_service").Logger(),
		now:      time.Now,
	}
}

func (s *activitySummaryService) Summary(ctx context.Context, days int) (dto.ActivitySummaryResponse, error) {
	days = clampPageSize(days, defaultSummaryDays, maxSummaryDays)
	cacheKey := "activities:summary:v1:" + strconv.Itoa(days)

	tracer := otel.Tracer("github.com/noah-isme/gema-activity-log/internal/service/activity_summary")
	ctx, span := tracer.Start(ctx, "activity.summary")
	span.SetAttributes(attribute.Int("activity.summary_days", days))
	defer span.End()

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, cacheKey).Result()
		if err == nil {
			var response dto.ActivitySummaryResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				response.CacheHit = true
				span.SetAttributes(attribute.Bool("activity.cache_hit", true))
				return response, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read activity summary cache")
			span.RecordError(err)
		}
	}

	now := s.now().UTC()
	since := now.AddDate(0, 0, -days)

	summary, err := s.build(ctx, days, since, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "summary_failed")
		return dto.ActivitySummaryResponse{}, err
	}
	span.SetAttributes(attribute.Int64("activity.summary_total", summary.Total))

	if s.cache != nil {
		if payload, err := json.Marshal(summary); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store activity summary cache")
				span.RecordError(err)
			}
		}
	}

	return summary, nil
}

func (s *activitySummaryService) build(ctx context.Context, days int, since, now time.Time) (dto.ActivitySummaryResponse, error) {
	total, err := s.repo.CountSince(ctx, since)
	if err != nil {
		return dto.ActivitySummaryResponse{}, err
	}
	byAction, err := s.repo.CountByColumnSince(ctx, "action", since, 0)
	if err != nil {
		return dto.ActivitySummaryResponse{}, err
	}
	byActor, err := s.repo.CountByColumnSince(ctx, "actor_type", since, 0)
	if err != nil {
		return dto.ActivitySummaryResponse{}, err
	}
	byEntity, err := s.repo.CountByColumnSince(ctx, "entity_kind", since, summaryTopEntities)
	if err != nil {
		return dto.ActivitySummaryResponse{}, err
	}
	stamps, err := s.repo.CreatedSince(ctx, since)
	if err != nil {
		return dto.ActivitySummaryResponse{}, err
	}

	return dto.ActivitySummaryResponse{
		WindowDays:   days,
		Total:        total,
		ByAction:     toCountResponses(byAction),
		ByActorType:  toCountResponses(byActor),
		TopEntities:  toCountResponses(byEntity),
		WeeklyVolume: weeklyVolume(stamps),
		GeneratedAt:  now,
	}, nil
}

func toCountResponses(rows []repository.ActivityCount) []dto.ActivityCountResponse {
	out := make([]dto.ActivityCountResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, dto.ActivityCountResponse{Key: row.Bucket, Total: row.Total})
	}
	return out
}

func weeklyVolume(stamps []time.Time) []dto.ActivityVolumePoint {
	weekly := map[time.Time]int64{}
	for _, stamp := range stamps {
		weekly[startOfWeek(stamp)]++
	}

	weeks := make([]time.Time, 0, len(weekly))
	for week := range weekly {
		weeks = append(weeks, week)
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i].Before(weeks[j]) })

	points := make([]dto.ActivityVolumePoint, 0, len(weeks))
	for _, week := range weeks {
		points = append(points, dto.ActivityVolumePoint{WeekStart: week, Total: weekly[week]})
	}
	return points
}

// startOfWeek returns the Monday 00:00 UTC of t's week.
func startOfWeek(t time.Time) time.Time {
	utc := t.UTC()
	weekday := int(utc.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	start := utc.AddDate(0, 0, -(weekday - 1))
	return time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
}
