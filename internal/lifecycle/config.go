package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/jaennil/guide_helper/backend/tileengine/internal/entity"
)

// Config holds every knob of the engine. The host maps its own
// configuration onto it; zero values are not meaningful, start from
// DefaultConfig.
type Config struct {
	MaxResidentRenderObjects int

	FadeSpeed2D float64
	FadeSpeed3D float64

	BandDepth2D int
	BandDepth3D int

	RefreshInterval time.Duration

	UpgradeThreshold   float64
	DowngradeThreshold float64
	MinZoom            int
	MaxZoom            int

	TileSize entity.SizeClass

	// CullMarginTiles widens the dispatched ranges for the in-view test so
	// tiles at the viewport edge do not flap.
	CullMarginTiles int
	// BandWideningTiles is added to the radius per band offset in 3D.
	BandWideningTiles int
	// BandLookAheadTiles shifts each 3D band center forward along the
	// camera yaw, per band offset.
	BandLookAheadTiles float64

	MaxInFlight  int
	FetchTimeout time.Duration
	MaxRetries   uint64
	RetryBase    time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxResidentRenderObjects: 1200,
		FadeSpeed2D:              3.0,
		FadeSpeed3D:              30.0,
		BandDepth2D:              0,
		BandDepth3D:              4,
		RefreshInterval:          300 * time.Millisecond,
		UpgradeThreshold:         0.7,
		DowngradeThreshold:       0.6,
		MinZoom:                  0,
		MaxZoom:                  19,
		TileSize:                 entity.SizeNormal,
		CullMarginTiles:          1,
		BandWideningTiles:        2,
		BandLookAheadTiles:       1,
		MaxInFlight:              8,
		FetchTimeout:             10 * time.Second,
		MaxRetries:               3,
		RetryBase:                200 * time.Millisecond,
	}
}

func (c Config) FadeSpeed(mode entity.ViewMode) float64 {
	if mode == entity.ViewMode3D {
		return c.FadeSpeed3D
	}
	return c.FadeSpeed2D
}

func (c Config) BandDepth(mode entity.ViewMode) int {
	if mode == entity.ViewMode3D {
		return c.BandDepth3D
	}
	return c.BandDepth2D
}

var ErrInvalidConfig = errors.New("invalid engine config")

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.MaxResidentRenderObjects > 0, "render object budget must be positive, got %d", c.MaxResidentRenderObjects)
	check(c.FadeSpeed2D > 0 && c.FadeSpeed3D > 0, "fade speeds must be positive")
	check(c.BandDepth2D >= 0 && c.BandDepth3D >= 0, "band depths must not be negative")
	check(c.UpgradeThreshold > 0 && c.UpgradeThreshold <= 1, "upgrade threshold must be in (0, 1], got %v", c.UpgradeThreshold)
	check(c.DowngradeThreshold >= 0 && c.DowngradeThreshold < c.UpgradeThreshold,
		"downgrade threshold must be in [0, upgrade threshold), got %v", c.DowngradeThreshold)
	check(c.MinZoom >= 0 && c.MinZoom <= c.MaxZoom && c.MaxZoom <= 31, "zoom bounds %d..%d out of range", c.MinZoom, c.MaxZoom)
	check(c.TileSize.Valid(), "unsupported tile size %d", c.TileSize)
	check(c.RefreshInterval > 0, "refresh interval must be positive")
	check(c.MaxInFlight > 0, "max in-flight fetches must be positive, got %d", c.MaxInFlight)
	check(c.FetchTimeout > 0, "fetch timeout must be positive")

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}
