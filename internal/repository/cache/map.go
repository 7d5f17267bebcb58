package cache

import (
	"context"
	"sync"

	"github.com/jaennil/guide_helper/backend/tileengine/internal/entity"
)

// MapCache keeps tiles in process memory. It backs tests and the "memory"
// cache backend.
type MapCache struct {
	m *TypedSyncMap
}

type TypedSyncMap struct {
	m sync.Map
}

func (c *TypedSyncMap) Load(k entity.TileKey) (TileCacheValue, bool) {
	v, exists := c.m.Load(k)
	if !exists {
		return nil, false
	}
	return v.(TileCacheValue), exists
}

func (c *TypedSyncMap) Store(k entity.TileKey, v TileCacheValue) {
	c.m.Store(k, v)
}

func (c *TypedSyncMap) Delete(k entity.TileKey) bool {
	_, loaded := c.m.LoadAndDelete(k)
	return loaded
}

func (c *TypedSyncMap) Range(f func(entity.TileKey, TileCacheValue) bool) {
	c.m.Range(func(k, v any) bool {
		return f(k.(entity.TileKey), v.(TileCacheValue))
	})
}

func NewMapCache() *MapCache {
	return &MapCache{
		m: &TypedSyncMap{},
	}
}

var _ TileCache = (*MapCache)(nil)

func (c *MapCache) Exists(_ context.Context, k entity.TileKey) (bool, error) {
	_, exists := c.m.Load(k)
	return exists, nil
}

func (c *MapCache) Get(_ context.Context, k entity.TileKey) (TileCacheValue, bool, error) {
	v, exists := c.m.Load(k)
	return v, exists, nil
}

func (c *MapCache) Set(_ context.Context, k entity.TileKey, v TileCacheValue) error {
	c.m.Store(k, v)
	return nil
}

func (c *MapCache) Delete(_ context.Context, k entity.TileKey) error {
	c.m.Delete(k)
	return nil
}

func (c *MapCache) Clear(_ context.Context) (int, error) {
	deleted := 0
	c.m.Range(func(k entity.TileKey, _ TileCacheValue) bool {
		if c.m.Delete(k) {
			deleted++
		}
		return true
	})
	return deleted, nil
}

func (c *MapCache) RemoveInvalid(_ context.Context) (int, error) {
	removed := 0
	c.m.Range(func(k entity.TileKey, v TileCacheValue) bool {
		if Validate(v) != nil && c.m.Delete(k) {
			removed++
		}
		return true
	})
	return removed, nil
}

// Len counts stored tiles.
func (c *MapCache) Len() int {
	n := 0
	c.m.Range(func(entity.TileKey, TileCacheValue) bool {
		n++
		return true
	})
	return n
}
