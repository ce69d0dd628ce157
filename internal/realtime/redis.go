package realtime

import (
	"github.com/redis/go-redis/v9"
)

// NewRedis returns nil when no address is configured; callers treat a nil
// client as "redis disabled".
func NewRedis(addr, password string) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
}
