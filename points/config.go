/*
config.go - PointsConfig as an injected dependency

PURPOSE:
  The points policy (allowance base, company values, reward catalog) is a
  singleton document, but engines must not fetch it as ambient global
  state on every call. ConfigProvider makes the config a constructor-time
  dependency with an explicit reload contract: Current() serves a cached
  copy, Invalidate() forces the next Current() to re-read the store.

CACHING:
  StoreConfig caches with a TTL. Allowance-base changes are rare and an
  operation observing a config at most TTL-stale is acceptable: the value
  is read once at the start of a transaction and used consistently within
  it. Admin-triggered changes call Invalidate() for an immediate cutover.
*/
package points

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// CONFIG PROVIDER
// =============================================================================

// ConfigProvider supplies the current points policy to the engines.
type ConfigProvider interface {
	Current(ctx context.Context) (PointsConfig, error)
	Invalidate()
}

// StaticConfig is a fixed in-memory config, for tests and embedded use.
type StaticConfig struct {
	Config PointsConfig
}

func (s StaticConfig) Current(context.Context) (PointsConfig, error) { return s.Config, nil }
func (s StaticConfig) Invalidate()                                   {}

// =============================================================================
// STORE-BACKED PROVIDER WITH TTL CACHE
// =============================================================================

// StoreConfig reads the config document from the store and caches it.
type StoreConfig struct {
	Store Store
	TTL   time.Duration

	mu        sync.Mutex
	cached    PointsConfig
	hasCached bool
	fetchedAt time.Time
}

func NewStoreConfig(store Store, ttl time.Duration) *StoreConfig {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &StoreConfig{Store: store, TTL: ttl}
}

func (c *StoreConfig) Current(ctx context.Context) (PointsConfig, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.hasCached && time.Since(c.fetchedAt) < c.TTL {
		return c.cached, nil
	}

	cfg, err := c.Store.GetConfig(ctx)
	if err != nil {
		// Serve the stale copy rather than failing the operation when a
		// refresh read hiccups and we still hold a previous config.
		if c.hasCached {
			return c.cached, nil
		}
		return PointsConfig{}, err
	}

	c.cached = cfg
	c.hasCached = true
	c.fetchedAt = time.Now()
	return cfg, nil
}

func (c *StoreConfig) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hasCached = false
}
