package lifecycle

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jaennil/guide_helper/backend/tileengine/internal/entity"
	"github.com/jaennil/guide_helper/backend/tileengine/pkg/logger"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frame2D(cam entity.Camera) *Frame {
	return &Frame{
		Now:    epoch,
		Camera: cam,
		Mode:   entity.ViewMode2D,
		Band:   entity.ZoomBand{Level: int(cam.Zoom)},
	}
}

func TestDispatcherTargetsCenteredRange(t *testing.T) {
	d := NewDispatcher(testConfig(), NewIndex(), logger.NewNop())

	// 3x3 tiles worth of pixels -> half extent 2 -> 5x5 targets.
	cam := camera2D(600, 300, 10, 3, 3)
	targets, cov := d.Targets(frame2D(cam))

	require.Len(t, targets, 25)
	want := entity.TileRange{Zoom: 10, MinX: 598, MaxX: 602, MinY: 298, MaxY: 302}
	if diff := cmp.Diff(want, cov.Ranges[10]); diff != "" {
		t.Errorf("range mismatch (-want +got):\n%s", diff)
	}

	seen := make(map[entity.TileKey]bool)
	for _, tg := range targets {
		assert.False(t, seen[tg.Key], "duplicate target %s", tg.Key)
		seen[tg.Key] = true
		assert.Equal(t, 0, tg.Offset)
		assert.Equal(t, entity.SizeNormal, tg.Key.Size)
	}
}

func TestDispatcherWrapsAntimeridian(t *testing.T) {
	d := NewDispatcher(testConfig(), NewIndex(), logger.NewNop())

	cam := entity.Camera{
		Center:   orb.Point{-179.9, 0.1},
		Zoom:     3,
		Viewport: entity.Viewport{Width: 1024, Height: 256},
	}
	targets, cov := d.Targets(frame2D(cam))

	r := cov.Ranges[3]
	assert.Equal(t, uint32(6), r.MinX)
	assert.Equal(t, uint32(2), r.MaxX)

	xs := make(map[uint32]bool)
	for _, tg := range targets {
		xs[tg.Key.X] = true
	}
	assert.Equal(t, map[uint32]bool{6: true, 7: true, 0: true, 1: true, 2: true}, xs)
	assert.True(t, cov.InView(entity.TileKey{Zoom: 3, X: 7, Y: 4, Size: entity.SizeNormal}))
	assert.False(t, cov.InView(entity.TileKey{Zoom: 3, X: 4, Y: 4, Size: entity.SizeNormal}))
}

func TestDispatcherClampsRows(t *testing.T) {
	d := NewDispatcher(testConfig(), NewIndex(), logger.NewNop())

	cam := entity.Camera{
		Center:   orb.Point{10, 84.9},
		Zoom:     4,
		Viewport: entity.Viewport{Width: 256, Height: 1024},
	}
	_, cov := d.Targets(frame2D(cam))

	r := cov.Ranges[4]
	assert.Equal(t, uint32(0), r.MinY)
	assert.LessOrEqual(t, r.MaxY, uint32(15))
}

func TestDispatcherWholeWorldAtLowZoom(t *testing.T) {
	d := NewDispatcher(testConfig(), NewIndex(), logger.NewNop())

	cam := entity.Camera{Zoom: 1, Viewport: entity.Viewport{Width: 4096, Height: 4096}}
	targets, _ := d.Targets(frame2D(cam))
	assert.Len(t, targets, 4)
}

func TestDispatcherIsIdempotent(t *testing.T) {
	index := NewIndex()
	d := NewDispatcher(testConfig(), index, logger.NewNop())

	f := frame2D(camera2D(600, 300, 10, 3, 3))
	first := d.Dispatch(f)
	require.Len(t, first, 25)
	require.Equal(t, 25, index.Len())

	f.Now = epoch.Add(time.Second)
	second := d.Dispatch(f)
	assert.Empty(t, second)
	assert.Equal(t, 25, index.Len())

	for _, r := range index.Sorted() {
		assert.Equal(t, f.Now, r.LastTouched)
		assert.Equal(t, entity.StateRequested, r.State)
	}
}

func TestDispatcherTriggers(t *testing.T) {
	cfg := testConfig()
	cfg.RefreshInterval = 300 * time.Millisecond
	d := NewDispatcher(cfg, NewIndex(), logger.NewNop())

	cam := camera2D(600, 300, 10, 3, 3)
	f := frame2D(cam)
	require.NotEmpty(t, d.Run(f), "first run always dispatches")
	require.Equal(t, 25, d.index.Len())

	// Same inputs, timer not due: coverage is carried over.
	f = frame2D(cam)
	f.DT = 100 * time.Millisecond
	assert.Nil(t, d.Run(f))
	assert.True(t, f.Coverage.InView(entity.TileKey{Zoom: 10, X: 600, Y: 300, Size: entity.SizeNormal}))

	// Moving the camera dispatches right away.
	moved := camera2D(603, 300, 10, 3, 3)
	f = frame2D(moved)
	f.DT = 16 * time.Millisecond
	assert.Len(t, d.Run(f), 15)
}

func TestDispatcher3DBand(t *testing.T) {
	cfg := testConfig()
	d := NewDispatcher(cfg, NewIndex(), logger.NewNop())

	cam := entity.Camera{
		Center:     tileCenter(38000, 20000, 16),
		AltitudeFt: 5000,
		Mode:       entity.ViewMode3D,
		Viewport:   entity.Viewport{Width: 512, Height: 512},
	}
	f := &Frame{
		Now:    epoch,
		Camera: cam,
		Mode:   entity.ViewMode3D,
		Band:   entity.ZoomBand{Level: 16, Depth: cfg.BandDepth3D},
	}
	targets, cov := d.Targets(f)

	require.Len(t, cov.Ranges, 5)
	perOffset := make(map[int]int)
	for _, tg := range targets {
		assert.Equal(t, 16-tg.Offset, int(tg.Key.Zoom))
		perOffset[tg.Offset]++
	}

	// Radius grows with the offset.
	assert.Equal(t, 9, perOffset[0])
	for o := 1; o <= cfg.BandDepth3D; o++ {
		side := 2*(1+o*cfg.BandWideningTiles) + 1
		assert.Equal(t, side*side, perOffset[o], "offset %d", o)
	}
}
