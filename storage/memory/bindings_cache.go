package memorystore

import (
	"context"
	"sync"
	"time"

	"github.com/sixgroup-security/guardian-backend/core"
	"github.com/sixgroup-security/guardian-backend/rolemap"
)

// BindingsCache is an in-memory read-through cache around a rolemap.Source
// with an explicit freshness window. Single-node fallback when Redis is not
// available.
type BindingsCache struct {
	src rolemap.Source
	ttl time.Duration

	mu        sync.Mutex
	cached    []core.RoleBinding
	fetchedAt time.Time
}

// NewBindingsCache wraps src with a freshness window. If ttl <= 0, a default
// of 10 minutes is used.
func NewBindingsCache(src rolemap.Source, ttl time.Duration) *BindingsCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &BindingsCache{src: src, ttl: ttl}
}

// Bindings returns cached bindings while fresh, otherwise refetches. A failed
// refetch surfaces the error; stale bindings are never served silently, the
// audit has to see current provider state.
func (c *BindingsCache) Bindings(ctx context.Context) ([]core.RoleBinding, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cached != nil && time.Since(c.fetchedAt) <= c.ttl {
		out := make([]core.RoleBinding, len(c.cached))
		copy(out, c.cached)
		return out, nil
	}
	fresh, err := c.src.Bindings(ctx)
	if err != nil {
		return nil, err
	}
	c.cached = fresh
	c.fetchedAt = time.Now()
	out := make([]core.RoleBinding, len(fresh))
	copy(out, fresh)
	return out, nil
}

// Invalidate drops the cached bindings so the next read refetches.
func (c *BindingsCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cached = nil
}
