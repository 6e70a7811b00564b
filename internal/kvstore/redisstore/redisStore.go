package redisstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"bloodlink/internal/init/cache"
	"bloodlink/internal/kvstore"

	"github.com/go-redis/redis/v8"
)

// RedisStore keeps every entry as a plain string value without expiration.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	log    *slog.Logger
}

func NewRedisStore(appCache *cache.Cache, prefix string, log *slog.Logger) *RedisStore {
	return &RedisStore{
		rdb:    appCache.Client,
		prefix: prefix,
		log:    log.With(slog.String("component", "RedisStore")),
	}
}

func (s *RedisStore) key(k string) string {
	return s.prefix + k
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.rdb.Get(ctx, s.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", kvstore.ErrNotFound
		}
		s.log.Error("failed to read key", "key", key, "error", err)
		return "", fmt.Errorf("%w: get %s: %v", kvstore.ErrUnavailable, key, err)
	}
	return val, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value string) error {
	if err := s.rdb.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		s.log.Error("failed to write key", "key", key, "error", err)
		return fmt.Errorf("%w: set %s: %v", kvstore.ErrUnavailable, key, err)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.key(key)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		s.log.Error("failed to delete key", "key", key, "error", err)
		return fmt.Errorf("%w: del %s: %v", kvstore.ErrUnavailable, key, err)
	}
	return nil
}
