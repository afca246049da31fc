package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-activity-log/internal/models"
)

// ErrActivityNotFound is returned when an activity record does not exist.
var ErrActivityNotFound = errors.New("activity record not found")

// ActivityLogFilter narrows activity log queries. Zero values are ignored.
type ActivityLogFilter struct {
	Page            int
	PageSize        int
	ActorType       models.ActorType
	UserID          *uint
	ActorIdentifier string
	EntityKind      string
	EntityPath      string
	EntityID        *uint
	Action          models.ActionType
	Since           *time.Time
	Until           *time.Time
}

// ActivityCursor marks the last row of a previously returned page.
type ActivityCursor struct {
	CreatedAt time.Time
	ID        uint
}

// ActivityLogRepository persists and queries the activity trail.
type ActivityLogRepository interface {
	Create(ctx context.Context, entry *models.ActivityLog) error
	FindByID(ctx context.Context, id uint) (models.ActivityLog, error)
	List(ctx context.Context, filter ActivityLogFilter) ([]models.ActivityLog, int64, error)
	ListAfter(ctx context.Context, filter ActivityLogFilter, cursor *ActivityCursor, limit int) ([]models.ActivityLog, error)
	MergeMetadata(ctx context.Context, id uint, patch map[string]interface{}) (models.ActivityLog, error)
	PurgeBefore(ctx context.Context, actorType models.ActorType, cutoff time.Time, batchSize int) (int64, error)
}

type activityLogRepository struct {
	db *gorm.DB
}

// NewActivityLogRepository constructs the activity log repository.
func NewActivityLogRepository(db *gorm.DB) ActivityLogRepository {
	return &activityLogRepository{db: db}
}

func (r *activityLogRepository) Create(ctx context.Context, entry *models.ActivityLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Omit("User").Create(entry).Error
}

func (r *activityLogRepository) FindByID(ctx context.Context, id uint) (models.ActivityLog, error) {
	var entry models.ActivityLog
	err := r.db.WithContext(ctx).First(&entry, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ActivityLog{}, ErrActivityNotFound
	}
	return entry, err
}

func (r *activityLogRepository) List(ctx context.Context, filter ActivityLogFilter) ([]models.ActivityLog, int64, error) {
	query := applyActivityFilter(r.db.WithContext(ctx).Model(&models.ActivityLog{}), filter)

	countQuery := query.Session(&gorm.Session{})
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		offset := (page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	var entries []models.ActivityLog
	if err := query.Order("created_at DESC").Order("id DESC").Find(&entries).Error; err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

// ListAfter returns up to limit records older than the cursor, ordered by
// created_at DESC, id DESC.
func (r *activityLogRepository) ListAfter(ctx context.Context, filter ActivityLogFilter, cursor *ActivityCursor, limit int) ([]models.ActivityLog, error) {
	query := applyActivityFilter(r.db.WithContext(ctx).Model(&models.ActivityLog{}), filter)

	if cursor != nil && !cursor.CreatedAt.IsZero() {
		if cursor.ID == 0 {
			query = query.Where("created_at < ?", cursor.CreatedAt)
		} else {
			query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
		}
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var entries []models.ActivityLog
	if err := query.Order("created_at DESC").Order("id DESC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// MergeMetadata amends extra_metadata in place. Keys with nil values are removed.
func (r *activityLogRepository) MergeMetadata(ctx context.Context, id uint, patch map[string]interface{}) (models.ActivityLog, error) {
	var entry models.ActivityLog
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := selectActivityForUpdate(tx, id, &entry).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrActivityNotFound
			}
			return err
		}

		merged := datatypes.JSONMap{}
		for key, value := range entry.ExtraMetadata {
			merged[key] = value
		}
		for key, value := range patch {
			if value == nil {
				delete(merged, key)
				continue
			}
			merged[key] = value
		}

		if err := tx.Model(&models.ActivityLog{}).Where("id = ?", id).Update("extra_metadata", merged).Error; err != nil {
			return fmt.Errorf("update extra metadata: %w", err)
		}
		entry.ExtraMetadata = merged
		return nil
	})
	if err != nil {
		return models.ActivityLog{}, err
	}
	return entry, nil
}

// selectActivityForUpdate row-locks the record until the transaction ends so
// concurrent amendments merge instead of overwriting each other. SQLite drops the
// clause and relies on its single writer.
func selectActivityForUpdate(tx *gorm.DB, id uint, entry *models.ActivityLog) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(entry, id)
}

// PurgeBefore deletes records of one actor type created before cutoff, in
// batches, and returns the number of deleted rows.
func (r *activityLogRepository) PurgeBefore(ctx context.Context, actorType models.ActorType, cutoff time.Time, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 5000
	}

	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		ids := r.db.Model(&models.ActivityLog{}).
			Select("id").
			Where("actor_type = ? AND created_at < ?", actorType, cutoff).
			Limit(batchSize)

		result := r.db.WithContext(ctx).Where("id IN (?)", ids).Delete(&models.ActivityLog{})
		if result.Error != nil {
			return total, fmt.Errorf("purge %s activity: %w", actorType, result.Error)
		}

		total += result.RowsAffected
		if result.RowsAffected < int64(batchSize) {
			return total, nil
		}
	}
}

func applyActivityFilter(query *gorm.DB, filter ActivityLogFilter) *gorm.DB {
	if filter.ActorType != "" {
		query = query.Where("actor_type = ?", filter.ActorType)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.ActorIdentifier != "" {
		query = query.Where("actor_identifier = ?", filter.ActorIdentifier)
	}
	if filter.EntityKind != "" {
		query = query.Where("entity_kind = ?", filter.EntityKind)
	}
	if filter.EntityPath != "" {
		query = query.Where("entity_path = ?", filter.EntityPath)
	}
	if filter.EntityID != nil {
		query = query.Where("entity_id = ?", *filter.EntityID)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if filter.Since != nil {
		query = query.Where("created_at >= ?", *filter.Since)
	}
	if filter.Until != nil {
		query = query.Where("created_at <= ?", *filter.Until)
	}
	return query
}
