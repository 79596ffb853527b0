package middleware

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/clinica-io/clinica-backend/platform/go/tenant"
)

const redisKeyPrefix = "clinica:route:"

// RedisRouteCache shares clinic route lookups across API instances. Failures
// degrade to a cache miss; the resolver stays the source of truth.
type RedisRouteCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisRouteCache constructs a Redis-backed route cache.
func NewRedisRouteCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisRouteCache {
	if client == nil {
		panic("redis route cache requires a client")
	}
	if logger == nil {
		panic("redis route cache requires a logger")
	}
	return &RedisRouteCache{client: client, ttl: ttl, logger: logger}
}

type redisRoute struct {
	DatabaseName string `json:"database_name"`
	Active       bool   `json:"active"`
}

func (c *RedisRouteCache) Get(ctx context.Context, clinicID int64) (tenant.Route, bool) {
	raw, err := c.client.Get(ctx, redisKeyPrefix+strconv.FormatInt(clinicID, 10)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("redis route cache read failed", zap.Error(err))
		}
		return tenant.Route{}, false
	}

	var rr redisRoute
	if err := json.Unmarshal(raw, &rr); err != nil {
		return tenant.Route{}, false
	}
	return tenant.Route{DatabaseName: rr.DatabaseName, Active: rr.Active}, true
}

func (c *RedisRouteCache) Put(ctx context.Context, clinicID int64, route tenant.Route) {
	raw, err := json.Marshal(redisRoute{DatabaseName: route.DatabaseName, Active: route.Active})
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, redisKeyPrefix+strconv.FormatInt(clinicID, 10), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("redis route cache write failed", zap.Error(err))
	}
}
