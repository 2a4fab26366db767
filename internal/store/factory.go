package store

import (
	"context"
	"strings"
)

// NewRepository picks a postgres-backed repository when configured, then
// redis, otherwise in-memory.
func NewRepository(ctx context.Context, databaseURL, redisURL string) (Repository, error) {
	if strings.TrimSpace(databaseURL) != "" {
		return NewPostgresRepository(ctx, databaseURL)
	}
	if strings.TrimSpace(redisURL) != "" {
		return NewRedisRepository(ctx, redisURL)
	}
	return NewInMemoryRepository(), nil
}

// Mode names the backend NewRepository selects for the given settings.
func Mode(databaseURL, redisURL string) string {
	switch {
	case strings.TrimSpace(databaseURL) != "":
		return "postgres"
	case strings.TrimSpace(redisURL) != "":
		return "redis"
	default:
		return "in-memory"
	}
}
