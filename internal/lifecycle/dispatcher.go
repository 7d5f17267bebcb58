package lifecycle

import (
	"math"
	"time"

	"github.com/jaennil/guide_helper/backend/tileengine/internal/entity"
	"github.com/jaennil/guide_helper/backend/tileengine/pkg/logger"
	"github.com/jaennil/guide_helper/backend/tileengine/pkg/metrics"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

type dispatchInputs struct {
	center   orb.Point
	metric   float64
	yaw      float64
	band     entity.ZoomBand
	mode     entity.ViewMode
	viewport entity.Viewport
}

// Dispatcher computes the target tile set for the current band and makes
// sure every target key is tracked exactly once.
type Dispatcher struct {
	cfg    Config
	index  *Index
	logger logger.Logger

	last         dispatchInputs
	dispatched   bool
	sinceRefresh time.Duration
	coverage     Coverage
}

func NewDispatcher(cfg Config, index *Index, l logger.Logger) *Dispatcher {
	return &Dispatcher{
		cfg:    cfg,
		index:  index,
		logger: l,
	}
}

// Run dispatches when the view changed or the refresh timer fired, and
// returns the keys that were newly requested. f.Coverage is always set.
func inputsOf(f *Frame) dispatchInputs {
	return dispatchInputs{
		center:   f.Camera.Center,
		metric:   ZoomMetric(f.Camera),
		yaw:      f.Camera.Yaw,
		band:     f.Band,
		mode:     f.Mode,
		viewport: f.Camera.Viewport,
	}
}

func (d *Dispatcher) Run(f *Frame) []entity.TileKey {
	in := inputsOf(f)

	trigger := !d.dispatched || f.LevelChanged || in != d.last

	d.sinceRefresh += f.DT
	if d.cfg.RefreshInterval > 0 && d.sinceRefresh >= d.cfg.RefreshInterval {
		d.sinceRefresh %= d.cfg.RefreshInterval
		trigger = true
	}

	if !trigger {
		f.Coverage = d.coverage
		return nil
	}

	d.last = in
	d.dispatched = true
	return d.dispatch(f)
}

// Dispatch forces a dispatch regardless of the trigger state. The engine
// uses it after a cache clear so forgotten tiles come back without waiting
// for the refresh timer.
func (d *Dispatcher) Dispatch(f *Frame) []entity.TileKey {
	d.last = inputsOf(f)
	d.dispatched = true
	return d.dispatch(f)
}

func (d *Dispatcher) dispatch(f *Frame) []entity.TileKey {
	targets, coverage := d.Targets(f)
	d.coverage = coverage
	f.Coverage = coverage

	var created []entity.TileKey
	for _, t := range targets {
		if r, ok := d.index.Get(t.Key); ok {
			r.LastTouched = f.Now
			r.BandOffset = t.Offset
			continue
		}

		d.index.Insert(&entity.TileRecord{
			Key:         t.Key,
			State:       entity.StateRequested,
			BandOffset:  t.Offset,
			LastTouched: f.Now,
		})
		created = append(created, t.Key)
	}

	if len(created) > 0 {
		metrics.TileRequests.Add(float64(len(created)))
		d.logger.Debug("dispatched tiles",
			"level", f.Band.Level,
			"targets", len(targets),
			"requested", len(created),
		)
	}

	return created
}

// Target is one key of the target set with its band offset.
type Target struct {
	Key    entity.TileKey
	Offset int
}

// Targets computes the target set for every level of the band, finest level
// first, without touching the index.
func (d *Dispatcher) Targets(f *Frame) ([]Target, Coverage) {
	coverage := Coverage{
		Ranges: make(map[uint8]entity.TileRange, f.Band.Depth+1),
		Margin: d.cfg.CullMarginTiles,
	}

	var targets []Target
	for o := 0; o <= f.Band.Depth; o++ {
		z := f.Band.Level - o
		if z < d.cfg.MinZoom || z < 0 {
			break
		}

		r := d.tileRange(f, uint8(z), o)
		coverage.Ranges[r.Zoom] = r

		n := uint32(1) << r.Zoom
		width := (r.MaxX - r.MinX + n) % n
		for y := r.MinY; y <= r.MaxY; y++ {
			for i := uint32(0); i <= width; i++ {
				targets = append(targets, Target{
					Key: entity.TileKey{
						Zoom: r.Zoom,
						X:    (r.MinX + i) % n,
						Y:    y,
						Size: d.cfg.TileSize,
					},
					Offset: o,
				})
			}
		}
	}

	return targets, coverage
}

func (d *Dispatcher) tileRange(f *Frame, z uint8, offset int) entity.TileRange {
	cam := f.Camera
	frac := maptile.Fraction(cam.Center, maptile.Zoom(z))
	cx, cy := frac[0], frac[1]

	scale := 1.0
	if f.Mode == entity.ViewMode2D {
		scale = math.Pow(2, ZoomMetric(cam)-float64(f.Band.Level))
	}
	tilePx := float64(d.cfg.TileSize.Pixels()) * scale

	hx := int(math.Ceil(float64(cam.Viewport.Width) / (2 * tilePx)))
	hy := int(math.Ceil(float64(cam.Viewport.Height) / (2 * tilePx)))

	if f.Mode == entity.ViewMode3D && offset > 0 {
		hx += offset * d.cfg.BandWideningTiles
		hy += offset * d.cfg.BandWideningTiles

		ahead := float64(offset) * d.cfg.BandLookAheadTiles
		yaw := cam.Yaw * math.Pi / 180
		cx += math.Sin(yaw) * ahead
		cy -= math.Cos(yaw) * ahead
	}

	n := int64(1) << z
	centerX := int64(math.Floor(cx))
	centerY := clampInt64(int64(math.Floor(cy)), 0, n-1)

	r := entity.TileRange{Zoom: z}

	if 2*int64(hx)+1 >= n {
		r.MinX, r.MaxX = 0, uint32(n-1)
	} else {
		r.MinX = uint32(((centerX-int64(hx))%n + n) % n)
		r.MaxX = uint32(((centerX+int64(hx))%n + n) % n)
	}

	r.MinY = uint32(clampInt64(centerY-int64(hy), 0, n-1))
	r.MaxY = uint32(clampInt64(centerY+int64(hy), 0, n-1))

	return r
}

// Center is the tile under the camera at zoom z.
func Center(cam entity.Camera, z uint8) maptile.Tile {
	return maptile.At(cam.Center, maptile.Zoom(z))
}

func clampInt64(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
