package lifecycle

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/jaennil/guide_helper/backend/tileengine/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColdStartSingleViewport(t *testing.T) {
	cfg := testConfig()
	cam := camera2D(600, 300, 10, 1, 1)
	h := newHarness(t, cfg, staticSource(pngTile(t)), cam)

	rep := h.tick()
	require.Equal(t, 9, rep.Requested)
	assert.Equal(t, 9, h.recordsByState()[entity.StateDownloading])

	rep = h.tick()
	require.Equal(t, 9, rep.Animation.Spawned)
	assert.Equal(t, 0, h.events.count(EventAttach), "attach waits for the next sync point")

	// Fade duration is 1/3 s; allow for the attach tick and rounding.
	fadeTicks := int(math.Ceil((1/cfg.FadeSpeed2D)/tickStep.Seconds())) + 2
	h.run(fadeTicks)

	for _, r := range h.engine.Records() {
		assert.Equal(t, entity.StateVisible, r.State, "tile %s", r.Key)
		assert.Equal(t, 1.0, r.Alpha, "tile %s", r.Key)
		assert.True(t, r.Attached)
	}
	assert.Equal(t, 9, h.events.count(EventAttach))
	assert.Equal(t, 9, h.engine.SceneSize())
	assert.Equal(t, 9, h.cache.Len(), "fetched tiles land in the disk cache")
}

func TestWarmStartResolvesFromDiskCache(t *testing.T) {
	cfg := testConfig()
	cam := camera2D(600, 300, 10, 1, 1)

	fetches := 0
	src := TileSourceFunc(func(context.Context, entity.TileKey) ([]byte, error) {
		fetches++
		return nil, nil
	})
	h := newHarness(t, cfg, src, cam)

	data := pngTile(t)
	for x := uint32(599); x <= 601; x++ {
		for y := uint32(299); y <= 301; y++ {
			require.NoError(t, h.cache.Set(context.Background(), entity.TileKey{Zoom: 10, X: x, Y: y, Size: entity.SizeNormal}, data))
		}
	}

	rep := h.tick()
	assert.Equal(t, 9, rep.Animation.Spawned, "cache hits spawn in the same tick")
	assert.Zero(t, fetches)
}

func TestFadeInIsMonotonic(t *testing.T) {
	cam := camera2D(600, 300, 10, 1, 1)
	h := newHarness(t, testConfig(), staticSource(pngTile(t)), cam)

	prev := make(map[entity.TileKey]float64)
	h.runChecked(40, func(TickReport) {
		for _, r := range h.engine.Records() {
			if r.State == entity.StateFadingIn || r.State == entity.StateVisible {
				assert.GreaterOrEqual(t, r.Alpha, prev[r.Key], "tile %s", r.Key)
				prev[r.Key] = r.Alpha
			}
		}
	})
}

func TestPanFadesOutLeavingColumns(t *testing.T) {
	cfg := testConfig()
	// 9x5 tiles of pixels -> 11 columns x 7 rows.
	cam := camera2D(600, 300, 10, 9, 5)
	h := newHarness(t, cfg, staticSource(pngTile(t)), cam)

	h.run(40)
	require.Len(t, h.keysInState(entity.StateVisible), 77)

	// Pan two columns east.
	moved := camera2D(602, 300, 10, 9, 5)
	h.engine.SetCamera(moved, h.now)

	rep := h.tick()
	assert.Equal(t, 14, rep.Requested)
	assert.Equal(t, 14, rep.Animation.Demoted)

	dominated := make(map[entity.TileKey]float64)
	for _, r := range h.engine.Records() {
		if r.Fading() {
			assert.Less(t, r.Key.X, uint32(597))
			dominated[r.Key] = r.Alpha
		}
	}
	require.Len(t, dominated, 14)

	h.runChecked(60, func(TickReport) {
		for k, prevAlpha := range dominated {
			r, ok := h.engine.Record(k)
			if !ok {
				delete(dominated, k)
				continue
			}
			assert.True(t, r.Fading(), "tile %s left the fade-out path", k)
			assert.LessOrEqual(t, r.Alpha, prevAlpha)
			dominated[k] = r.Alpha
		}
	})

	assert.Empty(t, dominated, "every leaving tile was evicted")
	visible := h.keysInState(entity.StateVisible)
	assert.Len(t, visible, 77)
	for _, k := range visible {
		assert.GreaterOrEqual(t, k.X, uint32(597))
		assert.LessOrEqual(t, k.X, uint32(607))
	}
	assert.Equal(t, 14, h.events.count(EventDetach))
	assert.Equal(t, 77, h.engine.SceneSize())
}

func TestBudgetNeverExceededAfterTick(t *testing.T) {
	cfg := testConfig()
	cfg.MaxResidentRenderObjects = 40
	cam := camera2D(600, 300, 10, 9, 5)
	h := newHarness(t, cfg, staticSource(pngTile(t)), cam)

	h.runChecked(120, func(TickReport) {
		require.LessOrEqual(t, h.engine.index.RenderObjects(), cfg.MaxResidentRenderObjects)
	})

	assert.Positive(t, h.engine.Snapshot().EmergencyEvictions)
	warnings := h.logs.FilterMessage("render budget exhausted, evicting active-level tiles").All()
	require.NotEmpty(t, warnings)
	assert.Equal(t, "evictor", warnings[0].ContextMap()["component"])

	// An undersized budget never settles: across further refresh periods
	// tiles keep being spawned and evicted and the resident set rotates.
	resident := func() map[entity.TileKey]bool {
		out := make(map[entity.TileKey]bool)
		for _, r := range h.engine.Records() {
			if r.HasRenderObject {
				out[r.Key] = true
			}
		}
		return out
	}

	seen := resident()
	before := len(warnings)
	spawned, emergency := 0, 0
	periods := int(3 * cfg.RefreshInterval / tickStep)
	h.runChecked(periods, func(rep TickReport) {
		spawned += rep.Animation.Spawned
		emergency += rep.Eviction.Emergency
		for k := range resident() {
			seen[k] = true
		}
	})

	assert.Positive(t, spawned)
	assert.Positive(t, emergency)
	assert.Greater(t, len(seen), cfg.MaxResidentRenderObjects, "more distinct tiles were resident than fit at once")
	assert.Greater(t, len(h.logs.FilterMessage("render budget exhausted, evicting active-level tiles").All()), before)
}

func TestZoomStepLetsOldLevelFinishFading(t *testing.T) {
	cfg := testConfig()
	cfg.MaxResidentRenderObjects = 100
	cam := camera2D(600, 300, 10, 9, 5)
	h := newHarness(t, cfg, staticSource(pngTile(t)), cam)

	h.run(40)
	require.Len(t, h.keysInState(entity.StateVisible), 77)

	zoomed := camera2D(1200, 600, 11, 9, 5)
	zoomed.Zoom = 11.0
	h.engine.SetCamera(zoomed, h.now)

	h.runChecked(120, func(rep TickReport) {
		require.Zero(t, rep.Eviction.Dominated, "old level evicted mid-fade")
		require.Zero(t, rep.Eviction.Emergency)
		require.LessOrEqual(t, h.engine.index.RenderObjects(), cfg.MaxResidentRenderObjects)
	})

	visible := h.keysInState(entity.StateVisible)
	assert.Len(t, visible, 77)
	for _, k := range visible {
		assert.Equal(t, uint8(11), k.Zoom)
	}
	assert.Equal(t, 77, h.engine.SceneSize())
}

func TestSingleTileLifecycle(t *testing.T) {
	cfg := testConfig()
	key := entity.TileKey{Zoom: 10, X: 512, Y: 341, Size: entity.SizeNormal}
	h := newHarness(t, cfg, staticSource(pngTile(t)), camera2D(512, 341, 10, 1, 1))

	h.tick()
	r, ok := h.engine.Record(key)
	require.True(t, ok)
	assert.Equal(t, entity.StateDownloading, r.State)

	h.tick()
	r, _ = h.engine.Record(key)
	require.Equal(t, entity.StateFadingIn, r.State, "downloaded and spawned in the same tick")
	assert.Zero(t, r.Alpha)
	spawned := r.SpawnTime

	fade := time.Duration(float64(time.Second) / cfg.FadeSpeed2D)
	for h.now.Sub(spawned) <= fade+2*tickStep {
		h.tick()
	}

	r, _ = h.engine.Record(key)
	assert.Equal(t, entity.StateVisible, r.State)
	assert.InDelta(t, 1.0, r.Alpha, 1e-9)
	assert.True(t, r.Attached)
}

func TestBudgetPrefersDominatedTiles(t *testing.T) {
	cfg := testConfig()
	cfg.MaxResidentRenderObjects = 80
	cam := camera2D(600, 300, 10, 9, 5)
	h := newHarness(t, cfg, staticSource(pngTile(t)), cam)

	h.run(40)
	require.Len(t, h.keysInState(entity.StateVisible), 77)

	h.engine.SetCamera(camera2D(602, 300, 10, 9, 5), h.now)
	h.runChecked(60, func(TickReport) {
		require.LessOrEqual(t, h.engine.index.RenderObjects(), cfg.MaxResidentRenderObjects)
	})

	assert.Zero(t, h.engine.Snapshot().EmergencyEvictions, "dominated tiles cover the overshoot")
	assert.Len(t, h.keysInState(entity.StateVisible), 77)
}

func TestStableViewReachesFixedPoint(t *testing.T) {
	cam := camera2D(600, 300, 10, 3, 3)
	h := newHarness(t, testConfig(), staticSource(pngTile(t)), cam)

	h.run(40)
	before := h.engine.Records()

	h.runChecked(100, func(rep TickReport) {
		assert.Zero(t, rep.Requested)
		assert.Zero(t, rep.Animation.Spawned)
		assert.Zero(t, rep.Eviction.Total())
	})

	after := h.engine.Records()
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].Key, after[i].Key)
		assert.Equal(t, before[i].State, after[i].State)
		assert.Equal(t, before[i].Alpha, after[i].Alpha)
	}
}

func TestZoomInReplacesLevel(t *testing.T) {
	cam := camera2D(600, 300, 10, 1, 1)
	h := newHarness(t, testConfig(), staticSource(pngTile(t)), cam)
	h.run(40)

	zoomed := cam
	zoomed.Zoom = 10.8
	h.engine.SetCamera(zoomed, h.now)

	rep := h.tick()
	require.True(t, rep.LevelChanged)
	assert.Equal(t, 11, rep.Level)

	h.run(60)
	for _, r := range h.engine.Records() {
		assert.Equal(t, uint8(11), r.Key.Zoom, "tile %s", r.Key)
		assert.Equal(t, entity.StateVisible, r.State)
	}
}

func TestOnlyActiveLevelRendersIn3D(t *testing.T) {
	cfg := testConfig()
	cam := entity.Camera{
		Center:     tileCenter(38000, 20000, 16),
		AltitudeFt: 5000,
		Mode:       entity.ViewMode3D,
		Viewport:   entity.Viewport{Width: 512, Height: 512},
	}
	h := newHarness(t, cfg, staticSource(pngTile(t)), cam)

	h.runChecked(20, func(TickReport) {
		for _, r := range h.engine.Records() {
			if r.HasRenderObject {
				require.Equal(t, 0, r.BandOffset, "tile %s", r.Key)
			}
		}
	})

	byZoom := make(map[uint8]int)
	for _, r := range h.engine.Records() {
		byZoom[r.Key.Zoom]++
		if r.BandOffset > 0 {
			assert.Equal(t, entity.StateDownloaded, r.State, "tile %s", r.Key)
		}
	}
	for z := uint8(12); z <= 16; z++ {
		assert.Positive(t, byZoom[z], "zoom %d", z)
	}
}

func TestModeSwitchRestores2DLevel(t *testing.T) {
	cam := camera2D(600, 300, 10, 1, 1)
	h := newHarness(t, testConfig(), staticSource(pngTile(t)), cam)
	h.run(5)

	cam3D := cam
	cam3D.Mode = entity.ViewMode3D
	cam3D.AltitudeFt = 40000
	h.engine.SetCamera(cam3D, h.now)

	rep := h.tick()
	assert.True(t, rep.LevelChanged)
	assert.Equal(t, 11, rep.Level)
	h.run(5)

	h.engine.SetCamera(cam, h.now)
	rep = h.tick()
	assert.True(t, rep.LevelChanged)
	assert.Equal(t, 10, rep.Level)
}

func TestNoSceneMutationOutsideSyncPoint(t *testing.T) {
	cam := camera2D(600, 300, 10, 1, 1)
	h := newHarness(t, testConfig(), staticSource(pngTile(t)), cam)

	var duringTick []RenderEvent
	h.engine.sink = EventSinkFunc(func(e RenderEvent) {
		duringTick = append(duringTick, e)
		assert.Equal(t, h.engine.ticks, e.Tick)
	})

	for range 30 {
		queued := h.engine.queue.Len()
		duringTick = nil
		h.tick()
		assert.Len(t, duringTick, queued, "only mutations queued by the previous tick are applied")
	}
}

func TestStartupCleanupRunsOnce(t *testing.T) {
	cam := camera2D(600, 300, 10, 1, 1)
	h := newHarness(t, testConfig(), staticSource(pngTile(t)), cam)

	ctx := context.Background()
	bad := entity.TileKey{Zoom: 3, X: 1, Y: 1, Size: entity.SizeNormal}
	good := entity.TileKey{Zoom: 3, X: 2, Y: 1, Size: entity.SizeNormal}
	require.NoError(t, h.cache.Set(ctx, bad, []byte("<html>rate limited</html>")))
	require.NoError(t, h.cache.Set(ctx, good, pngTile(t)))

	require.NoError(t, h.engine.Prepare(ctx))
	ok, err := h.cache.Exists(ctx, bad)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = h.cache.Exists(ctx, good)
	require.NoError(t, err)
	assert.True(t, ok)

	// A later invalid entry is not swept again.
	require.NoError(t, h.cache.Set(ctx, bad, []byte("junk")))
	h.tick()
	ok, err = h.cache.Exists(ctx, bad)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTickToleratesClockGoingBackwards(t *testing.T) {
	cam := camera2D(600, 300, 10, 1, 1)
	h := newHarness(t, testConfig(), staticSource(pngTile(t)), cam)
	h.run(3)

	h.now = h.now.Add(-time.Second)
	h.run(3)
	for _, r := range h.engine.Records() {
		assert.GreaterOrEqual(t, r.Alpha, 0.0)
		assert.LessOrEqual(t, r.Alpha, 1.0)
	}
}
