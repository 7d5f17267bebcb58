package usecase

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/jaennil/guide_helper/backend/tileengine/internal/entity"
	"github.com/jaennil/guide_helper/backend/tileengine/internal/lifecycle"
	"github.com/jaennil/guide_helper/backend/tileengine/pkg/logger"
)

var ErrStopped = errors.New("map view loop is not running")

type command func(e *lifecycle.Engine)

// MapViewUseCase owns the engine. One goroutine (Run) ticks it and applies
// commands; everything else talks to it through this type.
type MapViewUseCase struct {
	engine       *lifecycle.Engine
	hub          *EventHub
	tickInterval time.Duration
	logger       logger.Logger

	commands chan command
	stopped  chan struct{}
	running  atomic.Bool
	snapshot atomic.Pointer[lifecycle.Snapshot]
}

func NewMapViewUseCase(engine *lifecycle.Engine, hub *EventHub, tickInterval time.Duration, l logger.Logger) *MapViewUseCase {
	uc := &MapViewUseCase{
		engine:       engine,
		hub:          hub,
		tickInterval: tickInterval,
		logger:       l,
		commands:     make(chan command, 16),
		stopped:      make(chan struct{}),
	}
	snap := engine.Snapshot()
	uc.snapshot.Store(&snap)
	return uc
}

// Run ticks the engine until ctx is done. It must be called once.
func (uc *MapViewUseCase) Run(ctx context.Context) error {
	if !uc.running.CompareAndSwap(false, true) {
		return errors.New("map view loop already started")
	}
	defer close(uc.stopped)
	defer uc.engine.Close()

	if err := uc.engine.Prepare(ctx); err != nil {
		uc.logger.Error("startup cache cleanup failed", "error", err)
	}

	ticker := time.NewTicker(uc.tickInterval)
	defer ticker.Stop()

	uc.logger.Info("map view loop started", "tick_interval", uc.tickInterval)

	for {
		select {
		case <-ctx.Done():
			uc.logger.Info("map view loop stopped")
			return nil
		case cmd := <-uc.commands:
			cmd(uc.engine)
		case now := <-ticker.C:
			uc.engine.Tick(ctx, now)
			snap := uc.engine.Snapshot()
			uc.snapshot.Store(&snap)
		}
	}
}

// call runs fn on the loop goroutine and hands its result back over a
// buffered channel. A caller that gives up early never shares memory with
// a command still running.
func call[T any](ctx context.Context, uc *MapViewUseCase, fn func(e *lifecycle.Engine) T) (T, error) {
	var zero T
	out := make(chan T, 1)
	cmd := func(e *lifecycle.Engine) {
		out <- fn(e)
	}

	select {
	case uc.commands <- cmd:
	case <-uc.stopped:
		return zero, ErrStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	select {
	case v := <-out:
		return v, nil
	case <-uc.stopped:
		return zero, ErrStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (uc *MapViewUseCase) SetCamera(ctx context.Context, cam entity.Camera) error {
	uc.logger.Debug("camera update",
		"lon", cam.Center.Lon(),
		"lat", cam.Center.Lat(),
		"zoom", cam.Zoom,
		"mode", cam.Mode.String(),
	)
	_, err := call(ctx, uc, func(e *lifecycle.Engine) struct{} {
		e.SetCamera(cam, time.Now())
		return struct{}{}
	})
	return err
}

func (uc *MapViewUseCase) Camera(ctx context.Context) (entity.Camera, error) {
	return call(ctx, uc, func(e *lifecycle.Engine) entity.Camera {
		return e.Camera()
	})
}

type clearResult struct {
	removed int
	err     error
}

// ClearCache empties the disk cache and forgets failed tiles.
func (uc *MapViewUseCase) ClearCache(ctx context.Context) (int, error) {
	res, err := call(ctx, uc, func(e *lifecycle.Engine) clearResult {
		n, err := e.ClearCache(ctx)
		return clearResult{removed: n, err: err}
	})
	if err != nil {
		return 0, err
	}
	if res.err != nil {
		uc.logger.Error("failed to clear tile cache", "error", res.err)
		return res.removed, res.err
	}
	return res.removed, nil
}

// Tiles lists tracked records, optionally only those in state.
func (uc *MapViewUseCase) Tiles(ctx context.Context, state *entity.State) ([]entity.TileRecord, error) {
	records, err := call(ctx, uc, func(e *lifecycle.Engine) []entity.TileRecord {
		return e.Records()
	})
	if err != nil || state == nil {
		return records, err
	}

	filtered := records[:0]
	for _, r := range records {
		if r.State == *state {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

// Stats returns the snapshot published after the latest tick.
func (uc *MapViewUseCase) Stats() lifecycle.Snapshot {
	return *uc.snapshot.Load()
}

func (uc *MapViewUseCase) Subscribe() (<-chan lifecycle.RenderEvent, func()) {
	return uc.hub.Subscribe()
}

func (uc *MapViewUseCase) Running() bool {
	select {
	case <-uc.stopped:
		return false
	default:
		return uc.running.Load()
	}
}
