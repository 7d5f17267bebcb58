package lifecycle

import (
	"time"

	"github.com/jaennil/guide_helper/backend/tileengine/internal/entity"
)

// Snapshot is a read-only summary of the engine after a tick. It is a
// plain value, safe to hand to other goroutines.
type Snapshot struct {
	Tick       uint64         `json:"tick"`
	Time       time.Time      `json:"time"`
	Mode       string         `json:"mode"`
	Metric     float64        `json:"metric"`
	Level      int            `json:"level"`
	BandDepth  int            `json:"band_depth"`
	LastChange time.Time      `json:"last_level_change"`
	CenterTile string         `json:"center_tile"`
	Records    int            `json:"records"`
	ByState    map[string]int `json:"by_state"`

	RenderObjects int `json:"render_objects"`
	Attached      int `json:"attached"`
	Budget        int `json:"budget"`

	InFlight int `json:"in_flight"`
	Queued   int `json:"queued"`

	EmergencyEvictions uint64     `json:"emergency_evictions"`
	LastTick           TickReport `json:"last_tick"`
}

func (e *Engine) Snapshot() Snapshot {
	hs := e.hysteresis.State()

	byState := make(map[string]int)
	for s, n := range e.index.CountByState() {
		byState[s.String()] = n
	}

	center := Center(e.camera, uint8(hs.Level))

	return Snapshot{
		Tick:               e.ticks,
		Time:               e.lastTick,
		Mode:               e.camera.Mode.String(),
		Metric:             hs.Metric,
		Level:              hs.Level,
		BandDepth:          e.cfg.BandDepth(e.camera.Mode),
		LastChange:         hs.LastChange,
		CenterTile:         entity.TileKey{Zoom: uint8(center.Z), X: center.X, Y: center.Y, Size: e.cfg.TileSize}.String(),
		Records:            e.index.Len(),
		ByState:            byState,
		RenderObjects:      e.index.RenderObjects(),
		Attached:           len(e.scene),
		Budget:             e.cfg.MaxResidentRenderObjects,
		InFlight:           e.resolver.InFlight(),
		Queued:             e.resolver.Queued(),
		EmergencyEvictions: e.evictor.EmergencyTotal(),
		LastTick:           e.last,
	}
}
