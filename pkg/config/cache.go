package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aretw0/switchboard/pkg/domain"
)

// Cache is a per-tenant configuration cache implementing ports.ConfigSource
// and ports.ConfigInvalidator. An entry is served until it is invalidated or
// its age exceeds the staleness window, whichever comes first, so a lost
// invalidation event cannot pin a stale version forever.
type Cache struct {
	loader Loader
	maxAge time.Duration
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	cfg      *domain.TenantConfig
	loadedAt time.Time
	stale    bool
	// minVersion is the version demanded by the latest invalidation event;
	// a reload that still sees an older version is rejected.
	minVersion string
}

// CacheOption configures the cache.
type CacheOption func(*Cache)

// WithMaxAge bounds how long an entry may be served without a reload.
func WithMaxAge(d time.Duration) CacheOption {
	return func(c *Cache) {
		c.maxAge = d
	}
}

// WithCacheClock overrides the cache clock (tests).
func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		c.now = now
	}
}

// NewCache creates a config cache over a loader.
func NewCache(loader Loader, opts ...CacheOption) *Cache {
	c := &Cache{
		loader:  loader,
		maxAge:  5 * time.Minute,
		now:     time.Now,
		entries: make(map[string]*cacheEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Tenant returns the tenant's configuration, reloading when the cached entry
// is stale or past the staleness window.
func (c *Cache) Tenant(ctx context.Context, tenantID string) (*domain.TenantConfig, error) {
	c.mu.RLock()
	entry, ok := c.entries[tenantID]
	if ok && !entry.stale && c.now().Sub(entry.loadedAt) < c.maxAge {
		cfg := entry.cfg
		c.mu.RUnlock()
		return cfg, nil
	}
	c.mu.RUnlock()

	return c.reload(ctx, tenantID)
}

func (c *Cache) reload(ctx context.Context, tenantID string) (*domain.TenantConfig, error) {
	cfg, err := c.loader.Load(ctx, tenantID)
	if err != nil {
		// Serve the cached copy on transient load failure rather than
		// failing the turn; staleness stays bounded by the source's
		// availability, not by this cache.
		c.mu.RLock()
		entry, ok := c.entries[tenantID]
		c.mu.RUnlock()
		// An invalidation for a never-cached tenant leaves a placeholder
		// entry with no config; that must not be served as a hit.
		if ok && entry.cfg != nil {
			return entry.cfg, nil
		}
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.entries[tenantID]
	if prev != nil && prev.minVersion != "" && cfg.Version < prev.minVersion {
		// The source has not caught up to the invalidation event yet.
		// Keep marking the entry stale so the next use retries.
		c.entries[tenantID] = &cacheEntry{
			cfg:        cfg,
			loadedAt:   c.now(),
			stale:      true,
			minVersion: prev.minVersion,
		}
		return cfg, nil
	}

	c.entries[tenantID] = &cacheEntry{
		cfg:      cfg,
		loadedAt: c.now(),
	}
	return cfg, nil
}

// Invalidate marks the tenant's cached entry stale. The next Tenant call
// reloads and must observe at least the given version.
func (c *Cache) Invalidate(tenantID, version string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[tenantID]
	if !ok {
		// Nothing cached; remember the floor for the first load.
		c.entries[tenantID] = &cacheEntry{stale: true, minVersion: version}
		return
	}
	entry.stale = true
	if version > entry.minVersion {
		entry.minVersion = version
	}
}

// StaticSource is a fixed in-memory ports.ConfigSource for tests and
// embedded use.
type StaticSource struct {
	mu      sync.RWMutex
	tenants map[string]*domain.TenantConfig
}

// NewStaticSource builds a source from pre-validated configs.
func NewStaticSource(cfgs ...*domain.TenantConfig) *StaticSource {
	s := &StaticSource{tenants: make(map[string]*domain.TenantConfig)}
	for _, cfg := range cfgs {
		s.tenants[cfg.TenantID] = cfg
	}
	return s
}

// Put replaces a tenant's config.
func (s *StaticSource) Put(cfg *domain.TenantConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[cfg.TenantID] = cfg
}

// Tenant implements ports.ConfigSource.
func (s *StaticSource) Tenant(ctx context.Context, tenantID string) (*domain.TenantConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.tenants[tenantID]
	if !ok {
		return nil, fmt.Errorf("tenant %s: %w", tenantID, domain.ErrTenantNotFound)
	}
	return cfg, nil
}

// Load implements Loader, so a StaticSource can back a Cache in tests.
func (s *StaticSource) Load(ctx context.Context, tenantID string) (*domain.TenantConfig, error) {
	return s.Tenant(ctx, tenantID)
}
