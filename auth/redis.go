package auth

import (
	"context"
	"fmt"

	"chatlink/tools"
	"github.com/go-redis/redis"
)

// RedisStore keeps keys in redis under a prefix so several clients on one
// machine (or a shared session host) see the same token.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(opt tools.RedisOption, prefix string) *RedisStore {
	return &RedisStore{client: tools.GetRedisInstance(opt), prefix: prefix}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.WithContext(ctx).Get(s.prefix + key).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get: %w", err)
	}
	return v, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.WithContext(ctx).Set(s.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.WithContext(ctx).Del(s.prefix + key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
