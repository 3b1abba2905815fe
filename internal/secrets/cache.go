package secrets

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// Cache memoizes a Source. Entries live for the configured TTL (forever when
// zero) or until Invalidate or Flush drops them, e.g. after the Slack app's
// client secret is rotated.
type Cache struct {
	source Source
	cache  *cache.Cache
}

var _ Source = (*Cache)(nil)

// NewCache wraps source. A zero ttl keeps entries until they are invalidated.
func NewCache(source Source, ttl time.Duration) *Cache {
	expiration := cache.NoExpiration
	cleanup := time.Duration(0)
	if ttl > 0 {
		expiration = ttl
		cleanup = ttl
	}

	return &Cache{
		source: source,
		cache:  cache.New(expiration, cleanup),
	}
}

// ClientConfig returns the cached configuration or loads it from the source.
// Failed loads are not cached.
func (c *Cache) ClientConfig(ctx context.Context, name string) (*ClientConfig, error) {
	if v, ok := c.cache.Get(name); ok {
		cfg := *v.(*ClientConfig)
		return &cfg, nil
	}

	cfg, err := c.source.ClientConfig(ctx, name)
	if err != nil {
		return nil, err
	}

	stored := *cfg
	c.cache.SetDefault(name, &stored)
	return cfg, nil
}

// Invalidate drops one cached entry.
func (c *Cache) Invalidate(name string) {
	c.cache.Delete(name)
}

// Flush drops every cached entry.
func (c *Cache) Flush() {
	c.cache.Flush()
}
