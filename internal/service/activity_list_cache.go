package service

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// activityListGenerationKey is bumped on every write or metadata amendment. Cached
// list pages embed the generation they were built under, so a bump orphans them.
const activityListGenerationKey = "activities:list:gen"

func activityListGeneration(ctx context.Context, client *redis.Client) (string, error) {
	generation, err := client.Get(ctx, activityListGenerationKey).Result()
	if errors.Is(err, redis.Nil) {
		return "0", nil
	}
	return generation, err
}

func bumpActivityListGeneration(ctx context.Context, client *redis.Client) error {
	if client == nil {
		return nil
	}
	return client.Incr(ctx, activityListGenerationKey).Err()
}
