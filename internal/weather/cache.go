package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"clearsky/internal/types"
)

const cacheKeyPrefix = "snapshot:"

// SnapshotCache stores weather snapshots keyed by location for a short TTL,
// so a check run evaluating many alerts at the same coordinates hits the
// upstream once.
type SnapshotCache interface {
	Get(ctx context.Context, key string) (*types.WeatherSnapshot, bool, error)
	Set(ctx context.Context, key string, snap *types.WeatherSnapshot, ttl time.Duration) error
}

// MemcachedCache implements SnapshotCache using memcached.
type MemcachedCache struct {
	client *memcache.Client
}

// NewMemcachedCache creates a MemcachedCache. addrs is a comma-separated
// list (e.g. "localhost:11211" or "host1:11211,host2:11211").
func NewMemcachedCache(addrs string, timeout time.Duration) *MemcachedCache {
	var servers []string
	for _, a := range strings.Split(addrs, ",") {
		if a = strings.TrimSpace(a); a != "" {
			servers = append(servers, a)
		}
	}
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	return &MemcachedCache{client: client}
}

// Get returns the cached snapshot, or (nil, false, nil) on a miss.
func (c *MemcachedCache) Get(ctx context.Context, key string) (*types.WeatherSnapshot, bool, error) {
	if ctx.Err() != nil {
		return nil, false, ctx.Err()
	}
	item, err := c.client.Get(cacheKeyPrefix + key)
	if err != nil {
		if err == memcache.ErrCacheMiss {
			return nil, false, nil
		}
		return nil, false, err
	}
	var snap types.WeatherSnapshot
	if err := json.Unmarshal(item.Value, &snap); err != nil {
		return nil, false, err
	}
	return &snap, true, nil
}

// Set stores the snapshot with the given TTL.
func (c *MemcachedCache) Set(ctx context.Context, key string, snap *types.WeatherSnapshot, ttl time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	expSec := int32(ttl.Seconds())
	if expSec <= 0 {
		expSec = 300
	}
	return c.client.Set(&memcache.Item{
		Key:        cacheKeyPrefix + key,
		Value:      raw,
		Expiration: expSec,
	})
}

// Ping checks if memcached is reachable. Used for health checks.
func (c *MemcachedCache) Ping() error {
	return c.client.Ping()
}

// CachedProvider wraps a Provider with a SnapshotCache. Cache failures are
// logged and treated as misses; the upstream remains the source of truth.
type CachedProvider struct {
	provider Provider
	cache    SnapshotCache
	ttl      time.Duration
	logger   *slog.Logger
}

// CachedProviderConfig holds the configuration for creating a CachedProvider.
type CachedProviderConfig struct {
	Provider Provider
	Cache    SnapshotCache
	TTL      time.Duration
	Logger   *slog.Logger
}

// NewCachedProvider creates a caching provider with the given configuration.
func NewCachedProvider(cfg CachedProviderConfig) *CachedProvider {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedProvider{
		provider: cfg.Provider,
		cache:    cfg.Cache,
		ttl:      ttl,
		logger:   logger,
	}
}

// Snapshot fetches current conditions for the coordinates, consulting the
// cache first.
func (p *CachedProvider) Snapshot(ctx context.Context, lat, lon float64) (*types.WeatherSnapshot, error) {
	key := fmt.Sprintf("%.4f,%.4f", lat, lon)
	return p.cached(ctx, key, func() (*types.WeatherSnapshot, error) {
		return p.provider.Snapshot(ctx, lat, lon)
	})
}

// SnapshotByCity fetches current conditions by city name, consulting the
// cache first.
func (p *CachedProvider) SnapshotByCity(ctx context.Context, city string) (*types.WeatherSnapshot, error) {
	return p.cached(ctx, "city:"+strings.ToLower(city), func() (*types.WeatherSnapshot, error) {
		return p.provider.SnapshotByCity(ctx, city)
	})
}

func (p *CachedProvider) cached(ctx context.Context, key string, fetch func() (*types.WeatherSnapshot, error)) (*types.WeatherSnapshot, error) {
	if snap, ok, err := p.cache.Get(ctx, key); err != nil {
		p.logger.ErrorContext(ctx, "snapshot cache read failed", "key", key, "error", err)
	} else if ok {
		return snap, nil
	}

	snap, err := fetch()
	if err != nil {
		return nil, err
	}

	if err := p.cache.Set(ctx, key, snap, p.ttl); err != nil {
		p.logger.ErrorContext(ctx, "snapshot cache write failed", "key", key, "error", err)
	}
	return snap, nil
}
