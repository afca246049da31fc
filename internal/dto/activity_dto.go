package dto

import (
	"math"
	"time"

	"github.com/noah-isme/gema-activity-log/internal/models"
)

// PaginationMeta captures pagination metadata for offset-paginated responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// NewPaginationMeta derives the page count from the total.
func NewPaginationMeta(page, pageSize int, total int64) PaginationMeta {
	meta := PaginationMeta{Page: page, PageSize: pageSize, TotalItems: total}
	if pageSize > 0 {
		meta.TotalPages = int(math.Ceil(float64(total) / float64(pageSize)))
	}
	return meta
}

// ActivityActorResponse is the tagged actor union of an activity record.
type ActivityActorResponse struct {
	Type       models.ActorType       `json:"type"`
	UserID     *uint                  `json:"user_id,omitempty"`
	Identifier string                 `json:"identifier"`
	Name       string                 `json:"name"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// ActivityEntityResponse is the weak reference carried by an activity record.
type ActivityEntityResponse struct {
	Kind        string `json:"kind"`
	Path        string `json:"path"`
	ID          *uint  `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
}

// ActivityResponse serializes one activity record.
type ActivityResponse struct {
	ID             uint                   `json:"id"`
	Actor          ActivityActorResponse  `json:"actor"`
	Action         models.ActionType      `json:"action"`
	Entity         ActivityEntityResponse `json:"entity"`
	BeforeSnapshot map[string]interface{} `json:"before_snapshot,omitempty"`
	AfterSnapshot  map[string]interface{} `json:"after_snapshot,omitempty"`
	ChangedFields  []string               `json:"changed_fields,omitempty"`
	Description    string                 `json:"description,omitempty"`
	IPAddress      string                 `json:"ip_address,omitempty"`
	UserAgent      string                 `json:"user_agent,omitempty"`
	ExtraMetadata  map[string]interface{} `json:"extra_metadata"`
	CreatedAt      time.Time              `json:"created_at"`
}

// NewActivityResponse converts a model into an activity DTO.
func NewActivityResponse(entry models.ActivityLog) ActivityResponse {
	extra := map[string]interface{}(entry.ExtraMetadata)
	if extra == nil {
		extra = map[string]interface{}{}
	}

	return ActivityResponse{
		ID: entry.ID,
		Actor: ActivityActorResponse{
			Type:       entry.ActorType,
			UserID:     entry.UserID,
			Identifier: entry.ActorIdentifier,
			Name:       entry.ActorName,
			Metadata:   map[string]interface{}(entry.ActorMetadata),
		},
		Action: entry.Action,
		Entity: ActivityEntityResponse{
			Kind:        entry.EntityKind,
			Path:        entry.EntityPath,
			ID:          entry.EntityID,
			DisplayName: entry.EntityDisplayName,
		},
		BeforeSnapshot: map[string]interface{}(entry.BeforeSnapshot),
		AfterSnapshot:  map[string]interface{}(entry.AfterSnapshot),
		ChangedFields:  []string(entry.ChangedFields),
		Description:    entry.Description,
		IPAddress:      entry.IPAddress,
		UserAgent:      entry.UserAgent,
		ExtraMetadata:  extra,
		CreatedAt:      entry.CreatedAt,
	}
}

// NewActivityResponseSlice converts a list of models.
func NewActivityResponseSlice(entries []models.ActivityLog) []ActivityResponse {
	items := make([]ActivityResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, NewActivityResponse(entry))
	}
	return items
}

// ActivityListRequest defines filters for retrieving activity records. When
// Cursor is set, or UseCursor is true, keyset pagination is used instead of pages.
type ActivityListRequest struct {
	Page            int        `json:"page" validate:"omitempty,gte=1"`
	PageSize        int        `json:"page_size" validate:"omitempty,gte=1,lte=200"`
	Cursor          string     `json:"cursor"`
	UseCursor       bool       `json:"use_cursor"`
	ActorType       string     `json:"actor_type" validate:"omitempty,oneof=user guest"`
	UserID          *uint      `json:"user_id"`
	ActorIdentifier string     `json:"actor_identifier" validate:"omitempty,max=255"`
	EntityKind      string     `json:"entity_kind" validate:"omitempty,max=64"`
	EntityPath      string     `json:"entity_path" validate:"omitempty,max=128"`
	EntityID        *uint      `json:"entity_id"`
	Action          string     `json:"action" validate:"omitempty,max=32"`
	Since           *time.Time `json:"since"`
	Until           *time.Time `json:"until"`
}

// ActivityListResponse wraps a page of activity records.
type ActivityListResponse struct {
	Items      []ActivityResponse `json:"items"`
	Pagination *PaginationMeta    `json:"pagination,omitempty"`
	NextCursor string             `json:"next_cursor,omitempty"`
	CacheHit   bool               `json:"cache_hit"`
}

// ActivityCreateRequest captures manual activity creation payloads.
type ActivityCreateRequest struct {
	Action      string                 `json:"action" validate:"required,min=3,max=32"`
	EntityKind  string                 `json:"entity_kind" validate:"omitempty,max=64"`
	EntityPath  string                 `json:"entity_path" validate:"omitempty,max=128"`
	EntityID    *uint                  `json:"entity_id"`
	EntityName  string                 `json:"entity_name" validate:"omitempty,max=255"`
	Before      map[string]interface{} `json:"before"`
	After       map[string]interface{} `json:"after"`
	Description string                 `json:"description" validate:"omitempty,max=2000"`
	Metadata    map[string]interface{} `json:"metadata"`
}

// ActivityMetadataPatchRequest amends extra_metadata of an existing record.
type ActivityMetadataPatchRequest struct {
	Metadata map[string]interface{} `json:"metadata" validate:"required,min=1"`
}

// EntityResolveResponse carries a resolved weak reference.
type EntityResolveResponse struct {
	EntityPath string      `json:"entity_path"`
	EntityID   uint        `json:"entity_id"`
	Entity     interface{} `json:"entity"`
}

// ActivityCountResponse is one bucket of a grouped activity count.
type ActivityCountResponse struct {
	Key   string `json:"key"`
	Total int64  `json:"total"`
}

// ActivityVolumePoint captures how many records were written in one week.
type ActivityVolumePoint struct {
	WeekStart time.Time `json:"week_start"`
	Total     int64     `json:"total"`
}

// ActivitySummaryResponse aggregates the activity trail over a trailing window.
type ActivitySummaryResponse struct {
	WindowDays   int                     `json:"window_days"`
	Total        int64                   `json:"total"`
	ByAction     []ActivityCountResponse `json:"by_action"`
	ByActorType  []ActivityCountResponse `json:"by_actor_type"`
	TopEntities  []ActivityCountResponse `json:"top_entities"`
	WeeklyVolume []ActivityVolumePoint   `json:"weekly_volume"`
	GeneratedAt  time.Time               `json:"generated_at"`
	CacheHit     bool                    `json:"cache_hit"`
}
