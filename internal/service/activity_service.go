package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/noah-isme/gema-activity-log/internal/dto"
	"github.com/noah-isme/gema-activity-log/internal/models"
	"github.com/noah-isme/gema-activity-log/internal/observability"
	"github.com/noah-isme/gema-activity-log/internal/repository"
)

const maxIPLength = 45

// ActivityRecorder persists one activity entry.
type ActivityRecorder interface {
	Record(ctx context.Context, entry ActivityEntry) (dto.ActivityResponse, error)
}

// ActivityService exposes the synchronous write side of the activity log.
type ActivityService interface {
	ActivityRecorder
	LogEntityChange(ctx context.Context, req RequestContext, action models.ActionType, entity models.Entity, opts EntityChangeOptions) (dto.ActivityResponse, error)
	LogGuestActivity(ctx context.Context, req RequestContext, activity GuestActivity) (dto.ActivityResponse, error)
	LogBulkOperation(ctx context.Context, req RequestContext, op BulkOperation) (dto.ActivityResponse, error)
	Create(ctx context.Context, req RequestContext, payload dto.ActivityCreateRequest) (dto.ActivityResponse, error)
	AmendMetadata(ctx context.Context, id uint, payload dto.ActivityMetadataPatchRequest) (dto.ActivityResponse, error)
}

type activityService struct {
	repo      repository.ActivityLogRepository
	validator *validator.Validate
	schemas   *MetadataSchemas
	events    ActivityEventBus
	cache     *redis.Client
	sanitizer *bluemonday.Policy
	tracer    trace.Tracer
	logger    zerolog.Logger
}

// NewActivityService constructs the activity log service. schemas, events and cache may be
// nil. When cache is set, every write and amendment invalidates cached list pages.
func NewActivityService(repo repository.ActivityLogRepository, validator *validator.Validate, schemas *MetadataSchemas, events ActivityEventBus, cache *redis.Client, logger zerolog.Logger) ActivityService {
	if schemas == nil {
		schemas = NewMetadataSchemas()
	}
	return &activityService{
		repo:      repo,
		validator: validator,
		schemas:   schemas,
		events:    events,
		cache:     cache,
		sanitizer: bluemonday.StrictPolicy(),
		tracer:    otel.Tracer("github.com/noah-isme/gema-activity-log/internal/service/activity"),
		logger:    logger.With().Str("component", "activity_service").Logger(),
	}
}

func (s *activityService) Record(ctx context.Context, entry ActivityEntry) (dto.ActivityResponse, error) {
	if !entry.Action.Valid() {
		return dto.ActivityResponse{}, fmt.Errorf("%w: %q", ErrInvalidAction, entry.Action)
	}

	spanCtx, span := s.tracer.Start(ctx, "activity.record", trace.WithAttributes(
		attribute.String("activity.action", string(entry.Action)),
		attribute.String("activity.entity_path", entry.EntityPath),
	))
	defer span.End()

	actor := ResolveActor(entry.Request, entry.Guest)
	model := models.ActivityLog{
		ActorType:         actor.Type,
		UserID:            actor.UserID,
		ActorIdentifier:   actor.Identifier,
		ActorName:         s.clean(actor.Name),
		ActorMetadata:     jsonMap(actor.Metadata),
		Action:            entry.Action,
		EntityKind:        entityTag(strings.ToLower(entry.EntityKind)),
		EntityPath:        entityTag(entry.EntityPath),
		EntityID:          entry.EntityID,
		EntityDisplayName: s.clean(entry.EntityName),
		Description:       s.clean(entry.Description),
		IPAddress:         truncate(strings.TrimSpace(entry.Request.IPAddress), maxIPLength),
		UserAgent:         strings.TrimSpace(entry.Request.UserAgent),
		ExtraMetadata:     s.extraMetadata(entry),
		CreatedAt:         time.Now().UTC(),
	}

	before, after, changed := entry.Before, entry.After, entry.ChangedFields
	if entry.Action == models.ActionUpdate && len(changed) == 0 {
		before, after, changed = DiffSnapshots(before, after)
		if len(changed) == 0 {
			// An update without an observable difference is kept as a view.
			model.Action = models.ActionView
			if model.Description == "" {
				model.Description = fmt.Sprintf("No changes detected for %s: %s", model.EntityKind, model.EntityDisplayName)
			}
			before, after = nil, nil
		}
	}
	model.BeforeSnapshot = jsonMap(before)
	model.AfterSnapshot = jsonMap(after)
	if len(changed) > 0 {
		model.ChangedFields = datatypes.JSONSlice[string](changed)
	}

	if err := s.repo.Create(spanCtx, &model); err != nil {
		span.RecordError(err)
		observability.ActivityWriteFailures().WithLabelValues("persist").Inc()
		s.logger.Error().Err(err).
			Str("action", string(model.Action)).
			Str("entity_path", model.EntityPath).
			Msg("failed to persist activity log")
		return dto.ActivityResponse{}, err
	}

	observability.ActivityRecordsWritten().WithLabelValues(string(model.Action), string(model.ActorType)).Inc()
	s.invalidateListCache(spanCtx)

	response := dto.NewActivityResponse(model)
	if s.events != nil {
		s.events.Publish(spanCtx, response)
	}
	return response, nil
}

func (s *activityService) LogEntityChange(ctx context.Context, req RequestContext, action models.ActionType, entity models.Entity, opts EntityChangeOptions) (dto.ActivityResponse, error) {
	entry, err := NewEntityChangeEntry(req, action, entity, opts)
	if err != nil {
		return dto.ActivityResponse{}, err
	}
	return s.Record(ctx, entry)
}

func (s *activityService) LogGuestActivity(ctx context.Context, req RequestContext, activity GuestActivity) (dto.ActivityResponse, error) {
	entry, err := NewGuestActivityEntry(req, activity)
	if err != nil {
		return dto.ActivityResponse{}, err
	}
	return s.Record(ctx, entry)
}

func (s *activityService) LogBulkOperation(ctx context.Context, req RequestContext, op BulkOperation) (dto.ActivityResponse, error) {
	entry, err := NewBulkOperationEntry(req, op)
	if err != nil {
		return dto.ActivityResponse{}, err
	}
	return s.Record(ctx, entry)
}

func (s *activityService) Create(ctx context.Context, req RequestContext, payload dto.ActivityCreateRequest) (dto.ActivityResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ActivityResponse{}, err
	}

	action, ok := models.ParseAction(payload.Action)
	if !ok {
		return dto.ActivityResponse{}, fmt.Errorf("%w: %q", ErrInvalidAction, payload.Action)
	}

	entry := ActivityEntry{
		Request:     req,
		Action:      action,
		EntityKind:  payload.EntityKind,
		EntityPath:  payload.EntityPath,
		EntityID:    payload.EntityID,
		EntityName:  payload.EntityName,
		Before:      payload.Before,
		After:       payload.After,
		Description: payload.Description,
		Extra:       cloneMap(payload.Metadata),
	}
	entry.Extra["source"] = "manual"

	return s.Record(ctx, entry)
}

// AmendMetadata merges keys into the extra metadata of an existing record, the
// only mutation a record accepts after insertion.
func (s *activityService) AmendMetadata(ctx context.Context, id uint, payload dto.ActivityMetadataPatchRequest) (dto.ActivityResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ActivityResponse{}, err
	}

	entry, err := s.repo.MergeMetadata(ctx, id, payload.Metadata)
	if err != nil {
		if errors.Is(err, repository.ErrActivityNotFound) {
			return dto.ActivityResponse{}, ErrRecordNotFound
		}
		s.logger.Error().Err(err).Uint("activity_id", id).Msg("failed to amend activity metadata")
		return dto.ActivityResponse{}, err
	}
	s.invalidateListCache(ctx)

	return dto.NewActivityResponse(entry), nil
}

func (s *activityService) invalidateListCache(ctx context.Context) {
	if err := bumpActivityListGeneration(ctx, s.cache); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate activity list cache")
	}
}

func (s *activityService) extraMetadata(entry ActivityEntry) datatypes.JSONMap {
	extra := datatypes.JSONMap{}
	for key, value := range entry.Extra {
		extra[key] = value
	}
	if correlation := strings.TrimSpace(entry.Request.CorrelationID); correlation != "" {
		if _, exists := extra["correlation_id"]; !exists {
			extra["correlation_id"] = correlation
		}
	}

	if entry.MetadataSchema != "" {
		extra[MetadataSchemaKey] = entry.MetadataSchema
		if s.schemas == nil {
			return extra
		}
		if err := s.schemas.Validate(entry.MetadataSchema, extra); err != nil {
			observability.ActivityMetadataInvalid().WithLabelValues(entry.MetadataSchema).Inc()
			s.logger.Warn().Err(err).Str("schema", entry.MetadataSchema).Msg("activity metadata does not match its schema")
		}
	}
	return extra
}

func (s *activityService) clean(value string) string {
	return plainText(s.sanitizer, value)
}

// plainText strips markup with policy and restores the entities bluemonday escapes.
func plainText(policy *bluemonday.Policy, value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(policy.Sanitize(trimmed)))
}

func jsonMap(values map[string]interface{}) datatypes.JSONMap {
	if len(values) == 0 {
		return nil
	}
	return datatypes.JSONMap(cloneMap(values))
}

func entityTag(value string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return models.NoEntity
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit]
}
