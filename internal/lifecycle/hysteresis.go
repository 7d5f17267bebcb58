package lifecycle

import (
	"math"
	"time"

	"github.com/jaennil/guide_helper/backend/tileengine/internal/entity"
)

// HysteresisState is the controller's observable state.
type HysteresisState struct {
	Metric             float64
	Level              int
	UpgradeThreshold   float64
	DowngradeThreshold float64
	MinLevel           int
	MaxLevel           int
	LastChange         time.Time
}

// Hysteresis turns a continuous zoom metric into a discrete level with a
// dead zone, so small oscillations never flip the level.
type Hysteresis struct {
	state HysteresisState
}

func NewHysteresis(cfg Config, metric float64) *Hysteresis {
	h := &Hysteresis{
		state: HysteresisState{
			Metric:             metric,
			UpgradeThreshold:   cfg.UpgradeThreshold,
			DowngradeThreshold: cfg.DowngradeThreshold,
			MinLevel:           cfg.MinZoom,
			MaxLevel:           cfg.MaxZoom,
		},
	}
	h.state.Level = h.levelFor(metric)
	return h
}

// Evaluate feeds a new metric and moves the level by at most one step.
func (h *Hysteresis) Evaluate(metric float64, now time.Time) (int, bool) {
	s := &h.state
	s.Metric = metric
	level := float64(s.Level)

	switch {
	case metric >= level+s.UpgradeThreshold && s.Level < s.MaxLevel:
		s.Level++
	case metric <= level-(1-s.DowngradeThreshold) && s.Level > s.MinLevel:
		s.Level--
	default:
		return s.Level, false
	}

	s.LastChange = now
	return s.Level, true
}

// Reset jumps straight to level. Used on view-mode switches, which are not
// an evaluation of the metric.
func (h *Hysteresis) Reset(level int, now time.Time) {
	h.state.Level = clampInt(level, h.state.MinLevel, h.state.MaxLevel)
	h.state.LastChange = now
}

// ResetToMetric picks the level for which metric sits inside the dead zone.
func (h *Hysteresis) ResetToMetric(metric float64, now time.Time) {
	h.state.Metric = metric
	h.Reset(h.levelFor(metric), now)
}

func (h *Hysteresis) Level() int {
	return h.state.Level
}

func (h *Hysteresis) State() HysteresisState {
	return h.state
}

func (h *Hysteresis) levelFor(metric float64) int {
	level := int(math.Floor(metric + 1 - h.state.UpgradeThreshold))
	return clampInt(level, h.state.MinLevel, h.state.MaxLevel)
}

const (
	altitudeReferenceFt = 5000.0
	altitudeBaseZoom    = 16.0
	altitudeZoomPerOct  = 1.5
	altitudeMinZoom     = 8.0
	altitudeMaxZoom     = 18.0
)

// AltitudeToZoomMetric maps camera altitude to a zoom metric: zoom 16 at or
// below 5000 ft, losing 1.5 levels per doubling of altitude, clamped to
// [8, 18].
func AltitudeToZoomMetric(altitudeFt float64) float64 {
	ratio := math.Max(altitudeFt/altitudeReferenceFt, 1)
	z := altitudeBaseZoom - altitudeZoomPerOct*math.Log2(ratio)
	return math.Min(math.Max(z, altitudeMinZoom), altitudeMaxZoom)
}

// ZoomMetric is the continuous metric fed to the hysteresis controller.
func ZoomMetric(cam entity.Camera) float64 {
	if cam.Mode == entity.ViewMode3D {
		return AltitudeToZoomMetric(cam.AltitudeFt)
	}
	return cam.Zoom
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
