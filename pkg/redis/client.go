package redis

import (
	"peopleflow/pkg/config"

	"github.com/redis/go-redis/v9"
)

// NewClient builds the Redis client used for the scan run lock.
func NewClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}
