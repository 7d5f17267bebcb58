package lifecycle

import (
	"time"

	"github.com/jaennil/guide_helper/backend/tileengine/internal/entity"
)

// Frame is the per-tick context handed to every component. It replaces
// ambient shared state: each component reads the band, camera and coverage
// from here and nowhere else.
type Frame struct {
	Now    time.Time
	DT     time.Duration
	Camera entity.Camera
	Mode   entity.ViewMode
	Band   entity.ZoomBand

	// LevelChanged is set when the band moved this tick (level step or
	// mode switch).
	LevelChanged bool

	// Coverage is filled by the dispatcher.
	Coverage Coverage
}

// Coverage is the set of dispatched tile ranges, one per zoom level.
type Coverage struct {
	Ranges map[uint8]entity.TileRange
	Margin int
}

// InView reports whether k lies inside the dispatched range of its level,
// widened by the cull margin.
func (c Coverage) InView(k entity.TileKey) bool {
	r, ok := c.Ranges[k.Zoom]
	if !ok {
		return false
	}
	return r.Contains(k.X, k.Y, c.Margin)
}

// Tracked reports whether the record belongs to the active band and view.
func (f *Frame) Tracked(r *entity.TileRecord) bool {
	return f.Band.Contains(r.BandOffset) && f.Coverage.InView(r.Key)
}

// Renderable reports whether the record may hold a render object: only the
// active level is ever drawn.
func (f *Frame) Renderable(r *entity.TileRecord) bool {
	return r.BandOffset == 0 && f.Coverage.InView(r.Key)
}

func (f *Frame) FadeStep(cfg Config) float64 {
	return cfg.FadeSpeed(f.Mode) * f.DT.Seconds()
}
