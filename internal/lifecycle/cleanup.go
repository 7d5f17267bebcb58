package lifecycle

import (
	"context"
	"fmt"

	"github.com/jaennil/guide_helper/backend/tileengine/internal/repository/cache"
	"github.com/jaennil/guide_helper/backend/tileengine/pkg/logger"
	"github.com/jaennil/guide_helper/backend/tileengine/pkg/metrics"
)

// Cleanup removes undecodable tiles from the disk cache. It runs once per
// process, before the first resolve.
type Cleanup struct {
	cache  cache.TileCache
	logger logger.Logger
	done   bool
}

func NewCleanup(c cache.TileCache, l logger.Logger) *Cleanup {
	return &Cleanup{cache: c, logger: l}
}

// Run scans the cache on its first call and is a no-op afterwards.
func (c *Cleanup) Run(ctx context.Context) (int, error) {
	if c.done {
		return 0, nil
	}
	c.done = true

	removed, err := c.cache.RemoveInvalid(ctx)
	if err != nil {
		return removed, fmt.Errorf("failed to remove invalid cached tiles: %w", err)
	}

	metrics.TilesInvalidRemoved.Add(float64(removed))
	if removed > 0 {
		c.logger.Info("removed invalid cached tiles", "count", removed)
	}
	return removed, nil
}

func (c *Cleanup) Done() bool {
	return c.done
}
