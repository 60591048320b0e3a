package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"notify-hub.backend/pkg/logger"
)

const (
	DefaultTTL            = 5 * time.Minute
	DefaultLocalTTL       = 30 * time.Second
	DefaultComputeTimeout = 10 * time.Second
)

// Lookup outcomes reported to Config.Observe.
const (
	TierLocal  = "local"
	TierShared = "shared"

	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultError = "error"
)

// Shared is the remote tier. pkg/redis.Store satisfies it.
type Shared interface {
	GetWithTTL(ctx context.Context, key string) ([]byte, time.Duration, bool, error)
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

type Config struct {
	DefaultTTL     time.Duration
	LocalMaxTTL    time.Duration
	NamespaceTTLs  map[string]time.Duration
	// ComputeTimeout bounds a shared computation in GetCached. It is detached
	// from the callers' contexts so one caller leaving does not fail the rest.
	ComputeTimeout time.Duration
	Now            func() time.Time
	Observe        func(tier, result string)
}

// TieredCache is a read-through cache over a local tier and an optional shared tier.
type TieredCache struct {
	local  *Local
	shared Shared
	cfg    Config
	group  singleflight.Group
}

// New builds a cache. shared may be nil, in which case only the local tier is used.
func New(shared Shared, cfg Config) *TieredCache {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultTTL
	}
	if cfg.LocalMaxTTL <= 0 {
		cfg.LocalMaxTTL = DefaultLocalTTL
	}
	if cfg.ComputeTimeout <= 0 {
		cfg.ComputeTimeout = DefaultComputeTimeout
	}
	if cfg.Observe == nil {
		cfg.Observe = func(string, string) {}
	}
	return &TieredCache{
		local:  NewLocal(cfg.Now),
		shared: shared,
		cfg:    cfg,
	}
}

// RunJanitor purges expired local entries every interval until ctx is done.
// Reads drop expired keys lazily; this reclaims keys that are never read again.
func (c *TieredCache) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = c.cfg.LocalMaxTTL
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.local.Purge(); n > 0 {
				logger.Debug(ctx, "Purged expired local cache entries", zap.Int("count", n))
			}
		}
	}
}

// Get returns the cached value for key, consulting the local tier then the shared tier.
func (c *TieredCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if v, ok := c.local.Get(key); ok {
		c.cfg.Observe(TierLocal, ResultHit)
		return v, true
	}
	c.cfg.Observe(TierLocal, ResultMiss)

	if c.shared == nil {
		return nil, false
	}

	v, remaining, found, err := c.shared.GetWithTTL(ctx, key)
	if err != nil {
		c.cfg.Observe(TierShared, ResultError)
		logger.Warn(ctx, "Shared cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !found {
		c.cfg.Observe(TierShared, ResultMiss)
		return nil, false
	}
	c.cfg.Observe(TierShared, ResultHit)

	c.local.Set(key, v, c.localTTL(remaining))
	return v, true
}

// Set writes both tiers. A zero ttl selects the namespace TTL.
func (c *TieredCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.TTLFor(key)
	}
	c.local.Set(key, value, min(ttl, c.cfg.LocalMaxTTL))

	if c.shared == nil {
		return
	}
	if err := c.shared.Set(ctx, key, value, ttl); err != nil {
		c.cfg.Observe(TierShared, ResultError)
		logger.Warn(ctx, "Shared cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Delete removes keys from both tiers before returning.
func (c *TieredCache) Delete(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	c.local.Delete(keys...)

	if c.shared == nil {
		return
	}
	if err := c.shared.Del(ctx, keys...); err != nil {
		c.cfg.Observe(TierShared, ResultError)
		logger.Warn(ctx, "Shared cache delete failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

// TTLFor resolves the TTL configured for the namespace of key (text before the first ':').
func (c *TieredCache) TTLFor(key string) time.Duration {
	ns, _, found := strings.Cut(key, ":")
	if found {
		if ttl, ok := c.cfg.NamespaceTTLs[ns]; ok && ttl > 0 {
			return ttl
		}
	}
	return c.cfg.DefaultTTL
}

func (c *TieredCache) localTTL(remaining time.Duration) time.Duration {
	if remaining <= 0 {
		remaining = c.cfg.DefaultTTL
	}
	return min(remaining, c.cfg.LocalMaxTTL)
}

// GetCached returns the cached value for key or computes, stores and returns it.
// Concurrent cold callers for the same key share one computation, which runs
// under a context detached from the callers and bounded by ComputeTimeout.
// Entries that no longer decode into T are dropped and recomputed. Errors are not cached.
func GetCached[T any](ctx context.Context, c *TieredCache, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	var zero T

	if _, out, ok := lookup[T](ctx, c, key); ok {
		return out, nil
	}

	raw, err, _ := c.group.Do(key, func() (interface{}, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.ComputeTimeout)
		defer cancel()

		// another flight may have stored the value since the first lookup
		if raw, _, ok := lookup[T](flightCtx, c, key); ok {
			return raw, nil
		}

		value, err := compute(flightCtx)
		if err != nil {
			return nil, err
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode cache value for %s: %w", key, err)
		}
		c.Set(flightCtx, key, encoded, ttl)
		return encoded, nil
	})
	if err != nil {
		return zero, err
	}

	// each caller decodes its own copy
	var out T
	if err := json.Unmarshal(raw.([]byte), &out); err != nil {
		return zero, fmt.Errorf("failed to decode cache value for %s: %w", key, err)
	}
	return out, nil
}

// lookup reads and decodes key. An entry that does not decode into T is deleted
// from both tiers and reported as a miss.
func lookup[T any](ctx context.Context, c *TieredCache, key string) ([]byte, T, bool) {
	var out T
	raw, ok := c.Get(ctx, key)
	if !ok {
		return nil, out, false
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		logger.Warn(ctx, "Discarding undecodable cache entry", zap.String("key", key), zap.Error(err))
		c.Delete(ctx, key)
		var zero T
		return nil, zero, false
	}
	return raw, out, true
}
