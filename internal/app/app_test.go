package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jaennil/guide_helper/backend/tileengine/internal/entity"
	"github.com/jaennil/guide_helper/backend/tileengine/internal/repository/cache"
	"github.com/jaennil/guide_helper/backend/tileengine/pkg/config"
	"github.com/jaennil/guide_helper/backend/tileengine/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadConfig(t *testing.T, vars map[string]string) *config.Config {
	t.Helper()
	for k, v := range vars {
		t.Setenv(k, v)
	}
	cfg, err := config.New()
	require.NoError(t, err)
	return cfg
}

func TestEngineConfigFromEnvironment(t *testing.T) {
	cfg := loadConfig(t, map[string]string{
		"ENGINE_MAX_RESIDENT_RENDER_OBJECTS": "600",
		"ENGINE_BAND_DEPTH_3D":               "3",
		"ENGINE_TILE_SIZE":                   "512",
		"UPSTREAM_MAX_IN_FLIGHT":             "4",
		"UPSTREAM_RETRY_BASE":                "50ms",
	})

	ec := EngineConfig(cfg)
	require.NoError(t, ec.Validate())
	assert.Equal(t, 600, ec.MaxResidentRenderObjects)
	assert.Equal(t, 3, ec.BandDepth3D)
	assert.Equal(t, entity.SizeLarge, ec.TileSize)
	assert.Equal(t, 4, ec.MaxInFlight)
	assert.Equal(t, 50*time.Millisecond, ec.RetryBase)
	assert.Equal(t, 0.7, ec.UpgradeThreshold)

	cam := InitialCamera(cfg)
	assert.Equal(t, 55.7558, cam.Center.Lat())
	assert.Equal(t, 37.6173, cam.Center.Lon())
	assert.Equal(t, entity.ViewMode2D, cam.Mode)
	assert.Equal(t, 1920, cam.Viewport.Width)
}

func TestNewTileCache(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		backend string
		hot     string
		want    any
	}{
		{"memory", "0", &cache.MapCache{}},
		{"filesystem", "0", &cache.FilesystemCache{}},
		{"filesystem", "1048576", &cache.TieredCache{}},
		{"sqlite", "1048576", &cache.TieredCache{}},
	}
	for _, tt := range tests {
		t.Run(tt.backend+"/"+tt.hot, func(t *testing.T) {
			cfg := loadConfig(t, map[string]string{
				"CACHE_BACKEND":        tt.backend,
				"CACHE_DIR":            filepath.Join(dir, "tiles"),
				"CACHE_SQLITE_PATH":    filepath.Join(dir, "tiles.db"),
				"CACHE_HOT_TIER_BYTES": tt.hot,
			})

			c, closeCache, err := NewTileCache(cfg, logger.NewNop())
			require.NoError(t, err)
			defer closeCache()
			assert.IsType(t, tt.want, c)

			n, err := c.Clear(context.Background())
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestNewTileCacheUnknownBackend(t *testing.T) {
	cfg := loadConfig(t, map[string]string{"CACHE_BACKEND": "tape"})
	_, _, err := NewTileCache(cfg, logger.NewNop())
	assert.ErrorContains(t, err, "tape")
}
