package cache

import (
	"context"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/jaennil/guide_helper/backend/tileengine/internal/entity"
)

// TieredCache puts a cost-bounded in-memory tier in front of a persistent
// backend. The hot tier is best effort: ristretto may drop any admission.
type TieredCache struct {
	hot  *ristretto.Cache[string, []byte]
	cold TileCache
}

// NewTieredCache bounds the hot tier to maxBytes of tile data.
func NewTieredCache(cold TileCache, maxBytes int64) (*TieredCache, error) {
	hot, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: 100_000,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}

	return &TieredCache{
		hot:  hot,
		cold: cold,
	}, nil
}

var _ TileCache = (*TieredCache)(nil)

func (c *TieredCache) Exists(ctx context.Context, k entity.TileKey) (bool, error) {
	if _, ok := c.hot.Get(k.Filename()); ok {
		return true, nil
	}
	return c.cold.Exists(ctx, k)
}

func (c *TieredCache) Get(ctx context.Context, k entity.TileKey) (TileCacheValue, bool, error) {
	if v, ok := c.hot.Get(k.Filename()); ok {
		return v, true, nil
	}

	v, exists, err := c.cold.Get(ctx, k)
	if err != nil || !exists {
		return v, exists, err
	}

	c.hot.Set(k.Filename(), v, int64(len(v)))
	return v, true, nil
}

func (c *TieredCache) Set(ctx context.Context, k entity.TileKey, v TileCacheValue) error {
	if err := c.cold.Set(ctx, k, v); err != nil {
		return err
	}
	c.hot.Set(k.Filename(), v, int64(len(v)))
	return nil
}

// Delete flushes pending hot-tier writes first so a buffered Set cannot
// resurrect the entry.
func (c *TieredCache) Delete(ctx context.Context, k entity.TileKey) error {
	c.hot.Wait()
	c.hot.Del(k.Filename())
	return c.cold.Delete(ctx, k)
}

func (c *TieredCache) Clear(ctx context.Context) (int, error) {
	c.hot.Wait()
	c.hot.Clear()
	return c.cold.Clear(ctx)
}

func (c *TieredCache) RemoveInvalid(ctx context.Context) (int, error) {
	c.hot.Wait()
	c.hot.Clear()
	return c.cold.RemoveInvalid(ctx)
}

// Wait blocks until buffered hot-tier writes are applied.
func (c *TieredCache) Wait() {
	c.hot.Wait()
}

func (c *TieredCache) Close() {
	c.hot.Close()
}
