package redisstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sixgroup-security/guardian-backend/core"
	"github.com/sixgroup-security/guardian-backend/rolemap"
)

// BindingsCache is a Redis-backed read-through cache around a rolemap.Source,
// shared across replicas so the provider's bindings export is hit once per
// freshness window.
type BindingsCache struct {
	rdb *redis.Client
	src rolemap.Source
	key string
	ttl time.Duration
}

// NewBindingsCache wraps src. If keyPrefix is empty a default namespace is
// used; if ttl <= 0 it defaults to 15 minutes.
func NewBindingsCache(rdb *redis.Client, src rolemap.Source, keyPrefix string, ttl time.Duration) *BindingsCache {
	if keyPrefix == "" {
		keyPrefix = "auth:rolemap:"
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &BindingsCache{rdb: rdb, src: src, key: keyPrefix + "bindings", ttl: ttl}
}

func (c *BindingsCache) Bindings(ctx context.Context) ([]core.RoleBinding, error) {
	val, err := c.rdb.Get(ctx, c.key).Bytes()
	if err == nil {
		var cached []core.RoleBinding
		if err := json.Unmarshal(val, &cached); err == nil {
			return cached, nil
		}
		// Undecodable cache entry: fall through to refetch and overwrite.
	} else if err != redis.Nil {
		return nil, err
	}

	fresh, err := c.src.Bindings(ctx)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(fresh); err == nil {
		_ = c.rdb.Set(ctx, c.key, b, c.ttl).Err()
	}
	return fresh, nil
}

// Invalidate drops the shared cache entry.
func (c *BindingsCache) Invalidate(ctx context.Context) error {
	return c.rdb.Del(ctx, c.key).Err()
}
