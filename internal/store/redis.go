package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "agenthub:"

// RedisRepository stores each namespace snapshot under a plain key without TTL.
type RedisRepository struct {
	client *redis.Client
}

func NewRedisRepository(ctx context.Context, redisURL string) (*RedisRepository, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return NewRedisRepositoryFromClient(client), nil
}

func NewRedisRepositoryFromClient(client *redis.Client) *RedisRepository {
	return &RedisRepository{client: client}
}

func (r *RedisRepository) Load(ctx context.Context, namespace string) ([]byte, bool, error) {
	if namespace == "" {
		return nil, false, ErrEmptyNamespace
	}
	val, err := r.client.Get(ctx, redisKeyPrefix+namespace).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load snapshot %s: %w", namespace, err)
	}
	return val, true, nil
}

func (r *RedisRepository) Save(ctx context.Context, namespace string, snapshot []byte) error {
	if namespace == "" {
		return ErrEmptyNamespace
	}
	if err := r.client.Set(ctx, redisKeyPrefix+namespace, snapshot, 0).Err(); err != nil {
		return fmt.Errorf("save snapshot %s: %w", namespace, err)
	}
	return nil
}

func (r *RedisRepository) Close() error { return r.client.Close() }
