package entity

import "github.com/paulmach/orb"

// ViewMode selects between the flat map and the oblique 3D view.
type ViewMode uint8

const (
	ViewMode2D ViewMode = iota
	ViewMode3D
)

func (m ViewMode) String() string {
	if m == ViewMode3D {
		return "3d"
	}
	return "2d"
}

// Viewport is the drawable area in screen pixels.
type Viewport struct {
	Width  int
	Height int
}

// Camera is what the host feeds into the engine every tick.
type Camera struct {
	Center orb.Point // lon, lat
	// Zoom is the continuous zoom metric used in 2D.
	Zoom float64
	// AltitudeFt drives the zoom metric in 3D.
	AltitudeFt float64
	// Yaw in degrees, 0 = north, clockwise.
	Yaw      float64
	Mode     ViewMode
	Viewport Viewport
}

// ZoomBand is the set of zoom levels tracked around the active level.
type ZoomBand struct {
	Level int
	Depth int
}

// Contains reports whether offset lies inside [0, Depth].
func (b ZoomBand) Contains(offset int) bool {
	return offset >= 0 && offset <= b.Depth
}

// Offset is the band offset of a tile at the given zoom.
func (b ZoomBand) Offset(zoom uint8) int {
	return b.Level - int(zoom)
}

// TileRange is an inclusive tile rectangle at one zoom level. MinX may be
// greater than MaxX when the range wraps the antimeridian.
type TileRange struct {
	Zoom       uint8
	MinX, MaxX uint32
	MinY, MaxY uint32
}

// Contains reports whether (x, y) is in the range expanded by margin tiles.
func (r TileRange) Contains(x, y uint32, margin int) bool {
	n := int64(1) << r.Zoom
	iy := int64(y)
	if iy < int64(r.MinY)-int64(margin) || iy > int64(r.MaxY)+int64(margin) {
		return false
	}

	width := (int64(r.MaxX) - int64(r.MinX) + n) % n
	dx := (int64(x) - int64(r.MinX) + int64(margin) + n*4) % n
	return dx <= width+2*int64(margin) || width+2*int64(margin) >= n-1
}
