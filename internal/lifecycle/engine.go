// Package lifecycle is the tile lifecycle engine: it decides which tiles the
// view needs, resolves them from the disk cache or the network, fades them
// in and out and keeps the render scene within budget.
//
// The engine is single-writer. Only the goroutine calling Tick may touch it;
// background fetches talk back through channels polled by the tick.
package lifecycle

import (
	"context"
	"time"

	"github.com/jaennil/guide_helper/backend/tileengine/internal/entity"
	"github.com/jaennil/guide_helper/backend/tileengine/internal/repository/cache"
	"github.com/jaennil/guide_helper/backend/tileengine/pkg/logger"
	"github.com/jaennil/guide_helper/backend/tileengine/pkg/metrics"
)

type TickReport struct {
	Tick         uint64          `json:"tick"`
	Level        int             `json:"level"`
	LevelChanged bool            `json:"level_changed"`
	Requested    int             `json:"requested"`
	Applied      int             `json:"applied"`
	Animation    AnimationReport `json:"animation"`
	Eviction     EvictionReport  `json:"eviction"`
}

type Engine struct {
	cfg    Config
	logger logger.Logger
	cache  cache.TileCache
	sink   EventSink

	index      *Index
	queue      *MutationQueue
	hysteresis *Hysteresis
	dispatcher *Dispatcher
	resolver   *Resolver
	animator   *Animator
	evictor    *Evictor
	cleanup    *Cleanup

	scene map[entity.TileKey]struct{}

	camera      entity.Camera
	modeChanged bool
	saved2D     int
	redispatch  bool

	started  bool
	lastTick time.Time
	ticks    uint64
	last     TickReport

	cancel context.CancelFunc
}

// NewEngine wires the components. Background fetches are bound to ctx and
// to Close. sink may be nil.
func NewEngine(ctx context.Context, cfg Config, c cache.TileCache, src TileSource, sink EventSink, cam entity.Camera, l logger.Logger) *Engine {
	if sink == nil {
		sink = nopSink{}
	}
	ctx, cancel := context.WithCancel(ctx)

	index := NewIndex()
	queue := &MutationQueue{}

	e := &Engine{
		cfg:        cfg,
		logger:     l,
		cache:      c,
		sink:       sink,
		index:      index,
		queue:      queue,
		hysteresis: NewHysteresis(cfg, ZoomMetric(cam)),
		dispatcher: NewDispatcher(cfg, index, logger.ForComponent(l, "dispatcher")),
		resolver:   NewResolver(ctx, cfg, index, c, src, logger.ForComponent(l, "resolver")),
		animator:   NewAnimator(cfg, index, queue, logger.ForComponent(l, "animator")),
		evictor:    NewEvictor(cfg, index, queue, logger.ForComponent(l, "evictor")),
		cleanup:    NewCleanup(c, logger.ForComponent(l, "cleanup")),
		scene:      make(map[entity.TileKey]struct{}),
		camera:     cam,
		saved2D:    -1,
		cancel:     cancel,
	}
	if cam.Mode == entity.ViewMode2D {
		e.saved2D = e.hysteresis.Level()
	}
	return e
}

// Prepare runs the startup cache cleanup. Tick calls it on its own when the
// host did not.
func (e *Engine) Prepare(ctx context.Context) error {
	_, err := e.cleanup.Run(ctx)
	return err
}

// SetCamera replaces the camera fed to the next tick. Switching view mode
// saves the 2D level on the way into 3D and restores it on the way out.
func (e *Engine) SetCamera(cam entity.Camera, now time.Time) {
	prev := e.camera.Mode
	e.camera = cam
	if cam.Mode == prev {
		return
	}

	e.modeChanged = true
	if cam.Mode == entity.ViewMode3D {
		e.saved2D = e.hysteresis.Level()
		e.hysteresis.ResetToMetric(ZoomMetric(cam), now)
	} else if e.saved2D >= 0 {
		e.hysteresis.Reset(e.saved2D, now)
	} else {
		e.hysteresis.ResetToMetric(ZoomMetric(cam), now)
	}

	e.logger.Info("view mode changed",
		"mode", cam.Mode.String(),
		"level", e.hysteresis.Level(),
	)
}

// Camera returns the camera used by the next tick.
func (e *Engine) Camera() entity.Camera {
	return e.camera
}

// Tick advances the engine to now.
func (e *Engine) Tick(ctx context.Context, now time.Time) TickReport {
	start := time.Now()

	if !e.cleanup.Done() {
		if err := e.Prepare(ctx); err != nil {
			e.logger.Error("startup cache cleanup failed", "error", err)
		}
	}

	var dt time.Duration
	if e.started {
		dt = max(now.Sub(e.lastTick), 0)
	}
	e.started = true
	e.lastTick = now
	e.ticks++

	rep := TickReport{Tick: e.ticks}
	rep.Applied = e.applyMutations()

	prevLevel := e.hysteresis.Level()
	level, changed := e.hysteresis.Evaluate(ZoomMetric(e.camera), now)
	if changed {
		direction := "up"
		if level < prevLevel {
			direction = "down"
		}
		metrics.ZoomLevelChanges.WithLabelValues(direction).Inc()
		e.logger.Debug("zoom level changed", "from", prevLevel, "to", level)
	}

	f := &Frame{
		Now:          now,
		DT:           dt,
		Camera:       e.camera,
		Mode:         e.camera.Mode,
		Band:         entity.ZoomBand{Level: level, Depth: e.cfg.BandDepth(e.camera.Mode)},
		LevelChanged: changed || e.modeChanged,
	}
	e.modeChanged = false

	var keys []entity.TileKey
	if e.redispatch {
		keys = e.dispatcher.Dispatch(f)
		e.redispatch = false
	} else {
		keys = e.dispatcher.Run(f)
	}
	e.resolver.Submit(keys...)
	e.resolver.Run(f)
	rep.Animation = e.animator.Run(f)
	rep.Eviction = e.evictor.Run(f)

	rep.Level = level
	rep.LevelChanged = f.LevelChanged
	rep.Requested = len(keys)
	e.last = rep

	e.observe(level)
	metrics.TickDuration.Observe(time.Since(start).Seconds())
	return rep
}

// applyMutations is the sync point: queued scene changes from the previous
// tick take effect here, before any component runs.
func (e *Engine) applyMutations() int {
	muts := e.queue.Drain()
	for _, m := range muts {
		rec, tracked := e.index.Get(m.Key)

		switch m.Kind {
		case MutationAttach:
			if !tracked || !rec.HasRenderObject {
				continue
			}
			rec.Attached = true
			e.scene[m.Key] = struct{}{}
			e.emit(EventAttach, m.Key, rec.Alpha)

		case MutationDetach:
			if tracked && !rec.HasRenderObject {
				rec.Attached = false
			}
			if _, ok := e.scene[m.Key]; !ok {
				continue
			}
			delete(e.scene, m.Key)
			e.emit(EventDetach, m.Key, 0)
		}
	}
	return len(muts)
}

func (e *Engine) emit(kind RenderEventKind, k entity.TileKey, alpha float64) {
	e.sink.Publish(RenderEvent{
		Kind:  kind,
		Key:   k,
		Tile:  k.String(),
		Alpha: alpha,
		Tick:  e.ticks,
	})
}

// ClearCache empties the disk cache and forgets failed tiles so they are
// requested again on the next dispatch.
func (e *Engine) ClearCache(ctx context.Context) (int, error) {
	removed, err := e.cache.Clear(ctx)
	if err != nil {
		return removed, err
	}

	forgotten := 0
	for _, r := range e.index.Sorted() {
		if r.State == entity.StateFailed {
			e.index.Remove(r.Key)
			forgotten++
		}
	}

	e.redispatch = forgotten > 0
	e.logger.Info("tile cache cleared", "removed", removed, "failed_forgotten", forgotten)
	return removed, nil
}

// Record returns a copy of the record for k.
func (e *Engine) Record(k entity.TileKey) (entity.TileRecord, bool) {
	r, ok := e.index.Get(k)
	if !ok {
		return entity.TileRecord{}, false
	}
	return *r, true
}

// Records returns copies of every record in key order, without tile bytes.
func (e *Engine) Records() []entity.TileRecord {
	sorted := e.index.Sorted()
	out := make([]entity.TileRecord, 0, len(sorted))
	for _, r := range sorted {
		c := *r
		c.Data = nil
		out = append(out, c)
	}
	return out
}

// SceneSize is the number of render objects the renderer currently holds.
func (e *Engine) SceneSize() int {
	return len(e.scene)
}

// WaitFetches blocks until all started fetches have reported. Their results
// are picked up by the next tick.
func (e *Engine) WaitFetches() {
	e.resolver.Wait()
}

// Close cancels outstanding fetches and waits for them.
func (e *Engine) Close() {
	e.cancel()
	e.resolver.Wait()
}

func (e *Engine) observe(level int) {
	metrics.ZoomLevel.Set(float64(level))
	metrics.TilesResidentRenderObjects.Set(float64(e.index.RenderObjects()))

	counts := e.index.CountByState()
	for _, s := range entity.States() {
		metrics.TilesRecords.WithLabelValues(s.String()).Set(float64(counts[s]))
	}
}
