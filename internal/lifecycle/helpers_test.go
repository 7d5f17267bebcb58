package lifecycle

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/jaennil/guide_helper/backend/tileengine/internal/entity"
	"github.com/jaennil/guide_helper/backend/tileengine/internal/repository/cache"
	"github.com/jaennil/guide_helper/backend/tileengine/pkg/logger"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const tickStep = 16 * time.Millisecond

var epoch = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func pngTile(t testing.TB) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 200, G: 100, B: 50, A: 255})

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.CullMarginTiles = 0
	cfg.MaxInFlight = 256
	cfg.MaxRetries = 0
	cfg.RetryBase = time.Millisecond
	cfg.FetchTimeout = time.Second
	return cfg
}

// tileCenter is a point well inside tile (x, y) at zoom z.
func tileCenter(x, y uint32, z int) orb.Point {
	return maptile.New(x, y, maptile.Zoom(z)).Bound().Center()
}

// camera2D looks at tile (x, y, z) with a viewport of cols x rows tiles
// worth of pixels.
func camera2D(x, y uint32, z int, cols, rows int) entity.Camera {
	return entity.Camera{
		Center: tileCenter(x, y, z),
		Zoom:   float64(z),
		Mode:   entity.ViewMode2D,
		Viewport: entity.Viewport{
			Width:  cols * entity.SizeNormal.Pixels(),
			Height: rows * entity.SizeNormal.Pixels(),
		},
	}
}

type eventLog struct {
	mu     sync.Mutex
	events []RenderEvent
}

func (l *eventLog) Publish(e RenderEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) count(kind RenderEventKind) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func staticSource(data []byte) TileSource {
	return TileSourceFunc(func(context.Context, entity.TileKey) ([]byte, error) {
		return data, nil
	})
}

type harness struct {
	t      *testing.T
	engine *Engine
	cache  *cache.MapCache
	events *eventLog
	logs   *observer.ObservedLogs
	now    time.Time
}

func newHarness(t *testing.T, cfg Config, src TileSource, cam entity.Camera) *harness {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)
	l := logger.NewFromZap(zap.New(core))

	h := &harness{
		t:      t,
		cache:  cache.NewMapCache(),
		events: &eventLog{},
		logs:   logs,
		now:    epoch,
	}
	h.engine = NewEngine(context.Background(), cfg, h.cache, src, h.events, cam, l)
	t.Cleanup(h.engine.Close)
	return h
}

// tick advances one step and lets outstanding fetches land before the next.
func (h *harness) tick() TickReport {
	rep := h.engine.Tick(context.Background(), h.now)
	h.engine.WaitFetches()
	h.now = h.now.Add(tickStep)
	return rep
}

func (h *harness) run(n int) {
	for range n {
		h.tick()
	}
}

// runChecked ticks n times and runs check after every tick.
func (h *harness) runChecked(n int, check func(TickReport)) {
	for range n {
		check(h.tick())
	}
}

func (h *harness) recordsByState() map[entity.State]int {
	return h.engine.index.CountByState()
}

func (h *harness) keysInState(s entity.State) []entity.TileKey {
	var out []entity.TileKey
	for _, r := range h.engine.Records() {
		if r.State == s {
			out = append(out, r.Key)
		}
	}
	return out
}
