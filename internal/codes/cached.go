// v0
// internal/codes/cached.go
package codes

import (
	"context"
	"time"

	"github.com/auton88n/tradeayn-sub003/internal/cache"
	"github.com/auton88n/tradeayn-sub003/internal/compliance"
)

// CachedSource memoizes another Source for a TTL. Errors are not cached.
type CachedSource struct {
	inner   Source
	codes   *cache.Cache[[]compliance.BuildingCode]
	systems *cache.Cache[[]string]
}

func NewCachedSource(inner Source, ttl time.Duration, obs cache.Observer) *CachedSource {
	return &CachedSource{
		inner:   inner,
		codes:   cache.New[[]compliance.BuildingCode](ttl, obs),
		systems: cache.New[[]string](ttl, obs),
	}
}

func (c *CachedSource) Codes(ctx context.Context, codeSystem string) ([]compliance.BuildingCode, error) {
	key := cache.CodesKey(codeSystem)
	if rows, ok := c.codes.Get(key); ok {
		return append([]compliance.BuildingCode(nil), rows...), nil
	}
	rows, err := c.inner.Codes(ctx, codeSystem)
	if err != nil {
		return nil, err
	}
	c.codes.Set(key, rows)
	return append([]compliance.BuildingCode(nil), rows...), nil
}

func (c *CachedSource) Systems(ctx context.Context) ([]string, error) {
	key := cache.SystemsKey()
	if s, ok := c.systems.Get(key); ok {
		return append([]string(nil), s...), nil
	}
	s, err := c.inner.Systems(ctx)
	if err != nil {
		return nil, err
	}
	c.systems.Set(key, s)
	return append([]string(nil), s...), nil
}

// Invalidate drops every cached entry, e.g. after a file reload or import.
func (c *CachedSource) Invalidate() {
	c.codes.Purge()
	c.systems.Purge()
}
