package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-activity-log/internal/dto"
	"github.com/noah-isme/gema-activity-log/internal/models"
	"github.com/noah-isme/gema-activity-log/internal/repository"
)

func TestActivitySummaryAggregatesWindow(t *testing.T) {
	db := setupServiceDB(t)
	repo := repository.NewActivityLogRepository(db)
	now := time.Date(2024, time.June, 12, 15, 0, 0, 0, time.UTC) // Wednesday

	seed := func(actorType models.ActorType, action models.ActionType, kind string, at time.Time) {
		entry := models.ActivityLog{
			ActorType:       actorType,
			ActorIdentifier: "seed",
			Action:          action,
			EntityKind:      kind,
			EntityPath:      "core.Product",
			CreatedAt:       at,
		}
		require.NoError(t, repo.Create(context.Background(), &entry))
	}

	seed(models.ActorTypeUser, models.ActionUpdate, "product", now.Add(-time.Hour))
	seed(models.ActorTypeUser, models.ActionUpdate, "product", now.Add(-2*time.Hour))
	seed(models.ActorTypeGuest, models.ActionView, "product", now.AddDate(0, 0, -8))
	seed(models.ActorTypeGuest, models.ActionSubmit, "contactmessage", now.AddDate(0, 0, -9))
	seed(models.ActorTypeUser, models.ActionDelete, "user", now.AddDate(0, 0, -60))

	svc := NewActivitySummaryService(repository.NewActivityStatsRepository(db), nil, 0, testLogger()).(*activitySummaryService)
	svc.now = func() time.Time { return now }

	summary, err := svc.Summary(context.Background(), 14)
	require.NoError(t, err)
	require.Equal(t, 14, summary.WindowDays)
	require.Equal(t, int64(4), summary.Total)

	require.Equal(t, dto.ActivityCountResponse{Key: "update", Total: 2}, summary.ByAction[0])
	require.Len(t, summary.ByAction, 3)
	require.ElementsMatch(t, []dto.ActivityCountResponse{
		{Key: "guest", Total: 2},
		{Key: "user", Total: 2},
	}, summary.ByActorType)
	require.Equal(t, "product", summary.TopEntities[0].Key)
	require.Equal(t, int64(3), summary.TopEntities[0].Total)

	require.Len(t, summary.WeeklyVolume, 2)
	require.Equal(t, time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC), summary.WeeklyVolume[0].WeekStart)
	require.Equal(t, int64(2), summary.WeeklyVolume[0].Total)
	require.Equal(t, time.Date(2024, time.June, 10, 0, 0, 0, 0, time.UTC), summary.WeeklyVolume[1].WeekStart)
	require.Equal(t, int64(2), summary.WeeklyVolume[1].Total)
}

func TestActivitySummaryUsesCache(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	db := setupServiceDB(t)
	svc := NewActivitySummaryService(repository.NewActivityStatsRepository(db), client, time.Minute, testLogger())

	first, err := svc.Summary(context.Background(), 0)
	require.NoError(t, err)
	require.False(t, first.CacheHit)
	require.Equal(t, defaultSummaryDays, first.WindowDays)

	second, err := svc.Summary(context.Background(), 0)
	require.NoError(t, err)
	require.True(t, second.CacheHit)

	other, err := svc.Summary(context.Background(), 7)
	require.NoError(t, err)
	require.False(t, other.CacheHit)
}

func TestStartOfWeek(t *testing.T) {
	sunday := time.Date(2024, time.June, 16, 23, 30, 0, 0, time.UTC)
	require.Equal(t, time.Date(2024, time.June, 10, 0, 0, 0, 0, time.UTC), startOfWeek(sunday))

	monday := time.Date(2024, time.June, 10, 0, 0, 0, 0, time.UTC)
	require.Equal(t, monday, startOfWeek(monday))
}
