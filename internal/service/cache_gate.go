package service

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/campus-rideshare/internal/config"
)

// CacheGate deletes cached listing responses after a mutation.  The
// response cache records each entry it writes in a per-group index set;
// invalidating a group deletes every indexed entry and then the index.
type CacheGate struct {
	rdb *redis.Client
	cfg config.CacheConfig
}

// NewCacheGate returns a gate over the cache namespace described by cfg.
func NewCacheGate(cfg config.CacheConfig, rdb *redis.Client) *CacheGate {
	return &CacheGate{rdb: rdb, cfg: cfg}
}

// Invalidate drops every cached entry of the given groups.  Groups that
// hold no entries are no-ops.
func (g *CacheGate) Invalidate(ctx context.Context, groups ...string) error {
	for _, group := range groups {
		idx := g.cfg.IndexKey(group)
		members, err := g.rdb.SMembers(ctx, idx).Result()
		if err != nil {
			return fmt.Errorf("read cache index %s: %w", idx, err)
		}
		keys := append(members, idx)
		if err := g.rdb.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("delete cache group %s: %w", group, err)
		}
	}
	return nil
}
