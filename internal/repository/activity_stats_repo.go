package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-activity-log/internal/models"
)

// ActivityCount is one bucket of a grouped count.
type ActivityCount struct {
	Bucket string
	Total  int64
}

// ActivityStatsRepository aggregates the activity trail for dashboards.
type ActivityStatsRepository interface {
	CountSince(ctx context.Context, since time.Time) (int64, error)
	CountByColumnSince(ctx context.Context, column string, since time.Time, limit int) ([]ActivityCount, error)
	CreatedSince(ctx context.Context, since time.Time) ([]time.Time, error)
}

type activityStatsRepository struct {
	db *gorm.DB
}

// NewActivityStatsRepository constructs the stats repository.
func NewActivityStatsRepository(db *gorm.DB) ActivityStatsRepository {
	return &activityStatsRepository{db: db}
}

var groupableActivityColumns = map[string]struct{}{
	"action":      {},
	"actor_type":  {},
	"entity_kind": {},
}

func (r *activityStatsRepository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ActivityLog{}).
		Where("created_at >= ?", since).
		Count(&count).Error
	return count, err
}

// CountByColumnSince groups records created after since by one of action,
// actor_type or entity_kind, largest buckets first.
func (r *activityStatsRepository) CountByColumnSince(ctx context.Context, column string, since time.Time, limit int) ([]ActivityCount, error) {
	if _, ok := groupableActivityColumns[column]; !ok {
		return nil, gorm.ErrInvalidField
	}

	var rows []ActivityCount
	query := r.db.WithContext(ctx).
		Model(&models.ActivityLog{}).
		Select(column+" AS bucket, COUNT(*) AS total").
		Where("created_at >= ?", since).
		Group(column).
		Order("total DESC").
		Order(column + " ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Scan(&rows).Error
	return rows, err
}

func (r *activityStatsRepository) CreatedSince(ctx context.Context, since time.Time) ([]time.Time, error) {
	var stamps []time.Time
	err := r.db.WithContext(ctx).
		Model(&models.ActivityLog{}).
		Where("created_at >= ?", since).
		Pluck("created_at", &stamps).Error
	return stamps, err
}
