package revalidate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/beyou-storefront/internal/redisx"
)

// PageCache holds rendered JSON for public read paths. Entries live for the TTL at most and are
// deleted as soon as a catalog change touches their path.
type PageCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewPageCache(rdb redis.Cmdable, ttl time.Duration) *PageCache {
	if ttl <= 0 {
		ttl = redisx.TTLPageCache
	}
	return &PageCache{rdb: rdb, ttl: ttl}
}

func key(path string) string { return fmt.Sprintf(redisx.KeyPage, path) }

func (c *PageCache) Get(ctx context.Context, path string) ([]byte, bool, error) {
	b, err := c.rdb.Get(ctx, key(path)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (c *PageCache) Set(ctx context.Context, path string, body []byte) error {
	return c.rdb.Set(ctx, key(path), body, c.ttl).Err()
}

// Invalidate deletes the entries for paths. Paths that were never cached are ignored.
func (c *PageCache) Invalidate(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	keys := make([]string, 0, len(paths))
	for _, p := range paths {
		keys = append(keys, key(p))
	}
	return c.rdb.Del(ctx, keys...).Err()
}
