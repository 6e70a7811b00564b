// Package kvtest builds throwaway stores for package tests.
package kvtest

import (
	"io"
	"log/slog"
	"testing"

	"bloodlink/internal/init/cache"
	"bloodlink/internal/kvstore/redisstore"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
)

// NewStore returns a Redis-backed store running on miniredis, closed with the test.
func NewStore(t *testing.T) (*redisstore.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return redisstore.NewRedisStore(&cache.Cache{Client: client}, "test:", Logger()), mr
}

func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
