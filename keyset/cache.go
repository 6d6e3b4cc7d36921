// Package keyset caches the identity provider's published signing keys.
//
// The cached set is an immutable snapshot behind an atomic pointer: refreshes
// replace the whole set, concurrent readers never observe a partial update.
// Concurrent refreshes for the same URL collapse into one in-flight fetch.
package keyset

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"sync/atomic"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/sixgroup-security/guardian-backend/core"
)

const defaultCacheTTL = 15 * time.Minute

type snapshot struct {
	keys      map[string]core.SigningKey
	fetchedAt time.Time
}

// Cache fetches and caches the provider's key set, refreshing on key-id miss
// or when the cached set exceeds its max age.
type Cache struct {
	url     string
	ttl     time.Duration
	timeout time.Duration
	client  *http.Client
	clock   core.Clock
	log     logrus.FieldLogger

	group   singleflight.Group
	current atomic.Pointer[snapshot]
}

// Option configures a Cache.
type Option func(*Cache)

// WithHTTPClient overrides the HTTP client used for fetches.
func WithHTTPClient(c *http.Client) Option {
	return func(k *Cache) { k.client = c }
}

// WithTTL sets the max age of a cached set before a refresh is due.
func WithTTL(ttl time.Duration) Option {
	return func(k *Cache) {
		if ttl > 0 {
			k.ttl = ttl
		}
	}
}

// WithFetchTimeout bounds one outbound key-set fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(k *Cache) {
		if d > 0 {
			k.timeout = d
		}
	}
}

// WithClock injects the clock used for age checks.
func WithClock(c core.Clock) Option {
	return func(k *Cache) { k.clock = c }
}

// WithLogger sets the logger for refresh outcomes. Key material and tokens
// are never logged, only key ids and counts.
func WithLogger(l logrus.FieldLogger) Option {
	return func(k *Cache) { k.log = l }
}

// New creates a cache for the given JWKS URL. The cache starts empty; the
// first lookup triggers a fetch.
func New(jwksURL string, opts ...Option) *Cache {
	c := &Cache{
		url:     jwksURL,
		ttl:     defaultCacheTTL,
		timeout: core.DefaultFetchTimeout,
		client:  http.DefaultClient,
		clock:   core.SystemClock{},
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the signing key for kid.
//
// A miss triggers a single refresh shared across concurrent callers, then one
// retry of the lookup. A hit on a set older than its max age also triggers a
// refresh, but a failed refresh falls back to the cached key so provider
// outages do not fail requests that an existing key can still serve.
//
// Returns core.ErrKeyNotFound when a fresh set has no such key, and
// *core.KeySourceUnavailableError when the fetch failed and no cached key
// satisfies the request.
func (c *Cache) Get(ctx context.Context, kid string) (core.SigningKey, error) {
	snap := c.current.Load()
	if snap != nil {
		if key, ok := snap.keys[kid]; ok {
			if c.clock.Now().Sub(snap.fetchedAt) <= c.ttl {
				return key, nil
			}
			// Stale hit: refresh, but serve the cached key if the
			// provider is unreachable.
			if err := c.Refresh(ctx); err != nil {
				c.log.WithFields(logrus.Fields{"kid": kid, "jwks_url": c.url}).
					Warn("key set refresh failed, serving cached key")
				return key, nil
			}
			return c.lookup(kid)
		}
	}

	// Miss: one shared refresh, then retry the lookup once.
	if err := c.Refresh(ctx); err != nil {
		if snap != nil {
			if key, ok := snap.keys[kid]; ok {
				return key, nil
			}
		}
		return core.SigningKey{}, err
	}
	return c.lookup(kid)
}

func (c *Cache) lookup(kid string) (core.SigningKey, error) {
	if snap := c.current.Load(); snap != nil {
		if key, ok := snap.keys[kid]; ok {
			return key, nil
		}
	}
	return core.SigningKey{}, core.ErrKeyNotFound
}

// Refresh fetches the key set and swaps the snapshot. Concurrent calls share
// one outbound fetch and all wait on its result. A caller whose context ends
// first gets its context error (timeout-class, not a credential failure)
// while the shared fetch keeps running for the remaining waiters.
func (c *Cache) Refresh(ctx context.Context) error {
	ch := c.group.DoChan(c.url, func() (any, error) {
		return nil, c.fetchAndSwap(ctx)
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

// Stale reports whether the cached set is absent or older than its max age.
// The scheduler uses this to decide whether a background refresh is due.
func (c *Cache) Stale() bool {
	snap := c.current.Load()
	return snap == nil || c.clock.Now().Sub(snap.fetchedAt) > c.ttl
}

// KeyIDs returns the ids in the current snapshot, for diagnostics.
func (c *Cache) KeyIDs() []string {
	snap := c.current.Load()
	if snap == nil {
		return nil
	}
	ids := make([]string, 0, len(snap.keys))
	for kid := range snap.keys {
		ids = append(ids, kid)
	}
	return ids
}

func (c *Cache) fetchAndSwap(ctx context.Context) error {
	// Detach from the caller so one request's cancellation does not abort a
	// fetch other waiters share. The fetch timeout still bounds it.
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	keys, err := c.fetch(fetchCtx)
	if err != nil {
		return &core.KeySourceUnavailableError{URL: c.url, Err: err}
	}
	c.current.Store(&snapshot{keys: keys, fetchedAt: c.clock.Now()})
	c.log.WithFields(logrus.Fields{"jwks_url": c.url, "keys": len(keys)}).
		Debug("key set refreshed")
	return nil
}

func (c *Cache) fetch(ctx context.Context) (map[string]core.SigningKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("jwks fetch failed: %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	set, err := jwk.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("jwks parse: %w", err)
	}

	keys := make(map[string]core.SigningKey, set.Len())
	for i := 0; i < set.Len(); i++ {
		key, _ := set.Key(i)
		if key.KeyID() == "" {
			continue
		}
		if use := key.KeyUsage(); use != "" && use != string(jwk.ForSignature) {
			continue
		}
		var raw any
		if err := key.Raw(&raw); err != nil {
			c.log.WithField("kid", key.KeyID()).Warn("skipping unparsable key in key set")
			continue
		}
		sk := core.SigningKey{
			KeyID:     key.KeyID(),
			Algorithm: key.Algorithm().String(),
			Key:       raw,
		}
		if v, ok := key.Get("nbf"); ok {
			if epoch, ok := v.(float64); ok {
				sk.NotBefore = time.Unix(int64(epoch), 0)
			}
		}
		keys[sk.KeyID] = sk
	}
	return keys, nil
}
