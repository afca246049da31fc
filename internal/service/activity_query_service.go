package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-activity-log/internal/dto"
	"github.com/noah-isme/gema-activity-log/internal/models"
	"github.com/noah-isme/gema-activity-log/internal/observability"
	"github.com/noah-isme/gema-activity-log/internal/repository"
)

const (
	defaultActivityPageSize = 25
	maxActivityPageSize     = 200
	defaultEntityHistory    = 50
)

// ActivityQueryService is the read side of the activity log.
type ActivityQueryService interface {
	List(ctx context.Context, req dto.ActivityListRequest) (dto.ActivityListResponse, error)
	Get(ctx context.Context, id uint) (dto.ActivityResponse, error)
	ForEntity(ctx context.Context, entityPath string, entityID uint, limit int) ([]dto.ActivityResponse, error)
}

type activityQueryService struct {
	repo      repository.ActivityLogRepository
	validator *validator.Validate
	cache     *redis.Client
	ttl       time.Duration
	tracer    trace.Tracer
	logger    zerolog.Logger
}

// NewActivityQueryService builds the query service. cache may be nil.
func NewActivityQueryService(repo repository.ActivityLogRepository, validator *validator.Validate, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) ActivityQueryService {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &activityQueryService{
		repo:      repo,
		validator: validator,
		cache:     cache,
		ttl:       ttl,
		tracer:    otel.Tracer("github.com/noah-isme/gema-activity-log/internal/service/activity_query"),
		logger:    logger.With().Str("component", "activity_query_service").Logger(),
	}
}

func (s *activityQueryService) List(ctx context.Context, req dto.ActivityListRequest) (dto.ActivityListResponse, error) {
	start := time.Now()
	defer func() {
		observability.ActivityQueryLatency().Observe(time.Since(start).Seconds())
	}()

	if err := s.validator.Struct(req); err != nil {
		return dto.ActivityListResponse{}, err
	}

	filter, err := buildActivityFilter(req)
	if err != nil {
		return dto.ActivityListResponse{}, err
	}

	useCursor := req.UseCursor || strings.TrimSpace(req.Cursor) != ""
	spanCtx, span := s.tracer.Start(ctx, "activity.query", trace.WithAttributes(
		attribute.Bool("activity.cursor", useCursor),
		attribute.String("activity.entity_path", filter.EntityPath),
	))
	defer span.End()

	if useCursor {
		return s.listByCursor(spanCtx, filter, req.Cursor)
	}

	cacheKey := s.cacheKey(spanCtx, filter)
	if cacheKey != "" {
		if cached, err := s.cache.Get(spanCtx, cacheKey).Result(); err == nil && cached != "" {
			var response dto.ActivityListResponse
			if err := json.Unmarshal([]byte(cached), &response); err == nil {
				response.CacheHit = true
				observability.ActivityQueryCache().WithLabelValues("hit").Inc()
				return response, nil
			}
		} else if err != nil && !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read activity list cache")
		}
	}

	entries, total, err := s.repo.List(spanCtx, filter)
	if err != nil {
		span.RecordError(err)
		return dto.ActivityListResponse{}, err
	}

	pagination := dto.NewPaginationMeta(filter.Page, filter.PageSize, total)
	response := dto.ActivityListResponse{
		Items:      dto.NewActivityResponseSlice(entries),
		Pagination: &pagination,
	}

	if cacheKey != "" {
		if payload, err := json.Marshal(response); err == nil {
			if err := s.cache.Set(spanCtx, cacheKey, payload, s.ttl).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to write activity list cache")
			}
		}
		observability.ActivityQueryCache().WithLabelValues("miss").Inc()
	}

	return response, nil
}

func (s *activityQueryService) listByCursor(ctx context.Context, filter repository.ActivityLogFilter, token string) (dto.ActivityListResponse, error) {
	var cursor *repository.ActivityCursor
	if strings.TrimSpace(token) != "" {
		decoded, err := DecodeActivityCursor(token)
		if err != nil {
			return dto.ActivityListResponse{}, err
		}
		cursor = &decoded
	}

	entries, err := s.repo.ListAfter(ctx, filter, cursor, filter.PageSize+1)
	if err != nil {
		return dto.ActivityListResponse{}, err
	}

	response := dto.ActivityListResponse{}
	if len(entries) > filter.PageSize {
		entries = entries[:filter.PageSize]
		last := entries[len(entries)-1]
		response.NextCursor = EncodeActivityCursor(repository.ActivityCursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	response.Items = dto.NewActivityResponseSlice(entries)
	return response, nil
}

func (s *activityQueryService) Get(ctx context.Context, id uint) (dto.ActivityResponse, error) {
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrActivityNotFound) {
			return dto.ActivityResponse{}, ErrRecordNotFound
		}
		return dto.ActivityResponse{}, err
	}
	return dto.NewActivityResponse(entry), nil
}

// ForEntity returns the most recent records that reference one entity.
func (s *activityQueryService) ForEntity(ctx context.Context, entityPath string, entityID uint, limit int) ([]dto.ActivityResponse, error) {
	if limit <= 0 {
		limit = defaultEntityHistory
	}
	if limit > maxActivityPageSize {
		limit = maxActivityPageSize
	}

	filter := repository.ActivityLogFilter{
		Page:       1,
		PageSize:   limit,
		EntityPath: strings.TrimSpace(entityPath),
		EntityID:   &entityID,
	}
	entries, _, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return dto.NewActivityResponseSlice(entries), nil
}

func (s *activityQueryService) cacheKey(ctx context.Context, filter repository.ActivityLogFilter) string {
	if s.cache == nil {
		return ""
	}
	generation, err := activityListGeneration(ctx, s.cache)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to read activity list cache generation")
		return ""
	}
	raw, err := json.Marshal(filter)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return "activities:list:v2:" + generation + ":" + hex.EncodeToString(sum[:12])
}

func buildActivityFilter(req dto.ActivityListRequest) (repository.ActivityLogFilter, error) {
	filter := repository.ActivityLogFilter{
		Page:            maxInt(req.Page, 1),
		PageSize:        clampPageSize(req.PageSize, defaultActivityPageSize, maxActivityPageSize),
		ActorType:       models.ActorType(strings.ToLower(strings.TrimSpace(req.ActorType))),
		UserID:          req.UserID,
		ActorIdentifier: strings.TrimSpace(req.ActorIdentifier),
		EntityKind:      strings.ToLower(strings.TrimSpace(req.EntityKind)),
		EntityPath:      strings.TrimSpace(req.EntityPath),
		EntityID:        req.EntityID,
		Since:           req.Since,
		Until:           req.Until,
	}

	if trimmed := strings.TrimSpace(req.Action); trimmed != "" {
		action, ok := models.ParseAction(trimmed)
		if !ok {
			return repository.ActivityLogFilter{}, fmt.Errorf("%w: %q", ErrInvalidAction, trimmed)
		}
		filter.Action = action
	}

	return filter, nil
}

// EncodeActivityCursor produces an opaque token for the row a page ended on.
func EncodeActivityCursor(cursor repository.ActivityCursor) string {
	raw := strconv.FormatInt(cursor.CreatedAt.UnixNano(), 10) + ":" + strconv.FormatUint(uint64(cursor.ID), 10)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeActivityCursor parses a token produced by EncodeActivityCursor.
func DecodeActivityCursor(token string) (repository.ActivityCursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil {
		return repository.ActivityCursor{}, ErrInvalidCursor
	}

	parts := strings.SplitN(string(raw), ":", 2)
	if len(parts) != 2 {
		return repository.ActivityCursor{}, ErrInvalidCursor
	}
	nanos, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return repository.ActivityCursor{}, ErrInvalidCursor
	}
	id, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return repository.ActivityCursor{}, ErrInvalidCursor
	}

	return repository.ActivityCursor{CreatedAt: time.Unix(0, nanos).UTC(), ID: uint(id)}, nil
}

func clampPageSize(size, fallback, max int) int {
	if size <= 0 {
		return fallback
	}
	if size > max {
		return max
	}
	return size
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
