package utils

import (
	"github.com/redis/go-redis/v9"
)

// OpenRedis returns a client for cfg, or nil when the tier is disabled.
func OpenRedis(cfg RedisConfig) *redis.Client {
	if !cfg.Enabled {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Pass, DB: cfg.DB})
}
