package cache

import (
	"context"
	"fmt"
	"os"

	"bloodlink/config"

	"github.com/go-redis/redis/v8"
)

type Cache struct {
	Client *redis.Client
}

func NewCache(cfg config.CacheConfig) (*Cache, error) {
	redisPassword := os.Getenv("REDIS_PASSWORD")

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		DB:       cfg.Db,
		Password: redisPassword,
	})

	if _, err := client.Ping(context.Background()).Result(); err != nil {
		errorMessage := fmt.Sprintf("failed to connect to Redis at %s", cfg.Address)
		if redisPassword != "" {
			errorMessage += " (with password)"
		}
		return nil, fmt.Errorf("%s: %w", errorMessage, err)
	}

	return &Cache{Client: client}, nil
}

func (c *Cache) Close() error {
	return c.Client.Close()
}
