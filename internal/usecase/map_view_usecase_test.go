package usecase

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"
	"time"

	"github.com/jaennil/guide_helper/backend/tileengine/internal/entity"
	"github.com/jaennil/guide_helper/backend/tileengine/internal/lifecycle"
	"github.com/jaennil/guide_helper/backend/tileengine/internal/repository/cache"
	"github.com/jaennil/guide_helper/backend/tileengine/pkg/logger"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func pngTile(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, 2))))
	return buf.Bytes()
}

type mapViewFixture struct {
	uc     *MapViewUseCase
	cache  *cache.MapCache
	events <-chan lifecycle.RenderEvent
	cancel context.CancelFunc
	group  *errgroup.Group
}

// startMapView subscribes to render events before the loop starts so no
// event is missed.
func startMapView(t *testing.T) mapViewFixture {
	t.Helper()

	data := pngTile(t)
	src := lifecycle.TileSourceFunc(func(context.Context, entity.TileKey) ([]byte, error) {
		return data, nil
	})

	cfg := lifecycle.DefaultConfig()
	cfg.FadeSpeed2D = 50
	cam := entity.Camera{
		Center:   orb.Point{37.6173, 55.7558},
		Zoom:     10,
		Viewport: entity.Viewport{Width: 512, Height: 512},
	}

	c := cache.NewMapCache()
	hub := NewEventHub(1024)
	engine := lifecycle.NewEngine(context.Background(), cfg, c, src, hub, cam, logger.NewNop())
	uc := NewMapViewUseCase(engine, hub, time.Millisecond, logger.NewNop())
	events, unsubscribe := uc.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return uc.Run(ctx) })

	t.Cleanup(func() {
		cancel()
		g.Wait()
		unsubscribe()
	})
	return mapViewFixture{uc: uc, cache: c, events: events, cancel: cancel, group: g}
}

func TestMapViewLoopRendersTiles(t *testing.T) {
	fx := startMapView(t)
	uc := fx.uc

	select {
	case e := <-fx.events:
		assert.Equal(t, lifecycle.EventAttach, e.Kind)
		assert.NotEmpty(t, e.Tile)
	case <-time.After(5 * time.Second):
		t.Fatal("no render event")
	}

	require.Eventually(t, func() bool {
		s := uc.Stats()
		return s.ByState[entity.StateVisible.String()] == 9
	}, 5*time.Second, 5*time.Millisecond)

	s := uc.Stats()
	assert.Equal(t, 10, s.Level)
	assert.Equal(t, "2d", s.Mode)
	assert.LessOrEqual(t, s.RenderObjects, s.Budget)
}

func TestMapViewCommands(t *testing.T) {
	fx := startMapView(t)
	uc := fx.uc
	ctx := context.Background()

	cam, err := uc.Camera(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10.0, cam.Zoom)

	cam.Zoom = 12
	require.NoError(t, uc.SetCamera(ctx, cam))

	require.Eventually(t, func() bool {
		return uc.Stats().Level == 12
	}, 5*time.Second, 5*time.Millisecond)

	visible := entity.StateVisible
	require.Eventually(t, func() bool {
		tiles, err := uc.Tiles(ctx, &visible)
		return err == nil && len(tiles) == 9
	}, 5*time.Second, 5*time.Millisecond)

	tiles, err := uc.Tiles(ctx, &visible)
	require.NoError(t, err)
	for _, r := range tiles {
		assert.Equal(t, uint8(12), r.Key.Zoom)
		assert.Nil(t, r.Data)
	}

	require.Eventually(t, func() bool { return fx.cache.Len() > 0 }, 5*time.Second, 5*time.Millisecond)
	removed, err := uc.ClearCache(ctx)
	require.NoError(t, err)
	assert.Positive(t, removed)
}

func TestMapViewStopsWithContext(t *testing.T) {
	fx := startMapView(t)
	uc := fx.uc
	require.Eventually(t, uc.Running, time.Second, time.Millisecond)

	fx.cancel()
	require.NoError(t, fx.group.Wait())
	assert.False(t, uc.Running())

	_, err := uc.Camera(context.Background())
	assert.ErrorIs(t, err, ErrStopped)
}

func TestEventHubDropsForSlowSubscribers(t *testing.T) {
	hub := NewEventHub(1)
	ch, unsubscribe := hub.Subscribe()

	hub.Publish(lifecycle.RenderEvent{Kind: lifecycle.EventAttach, Tile: "1/0/0@256"})
	hub.Publish(lifecycle.RenderEvent{Kind: lifecycle.EventDetach, Tile: "1/0/0@256"})

	assert.Equal(t, uint64(1), hub.Dropped())
	e := <-ch
	assert.Equal(t, lifecycle.EventAttach, e.Kind)

	unsubscribe()
	unsubscribe()
	assert.Zero(t, hub.Subscribers())
	_, open := <-ch
	assert.False(t, open)
}

func TestAbandonedCommandDoesNotShareResult(t *testing.T) {
	cam := entity.Camera{
		Center:   orb.Point{37.6173, 55.7558},
		Zoom:     10,
		Viewport: entity.Viewport{Width: 256, Height: 256},
	}
	engine := lifecycle.NewEngine(context.Background(), lifecycle.DefaultConfig(), cache.NewMapCache(), nil, nil, cam, logger.NewNop())
	t.Cleanup(engine.Close)
	uc := NewMapViewUseCase(engine, NewEventHub(1), time.Millisecond, logger.NewNop())

	// No loop is running: the command stays queued until the test runs it.
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := uc.Camera(ctx)
		errc <- err
	}()

	require.Eventually(t, func() bool { return len(uc.commands) == 1 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)

	cmd := <-uc.commands
	cmd(engine)
}
