// Package entity holds the value types shared by the tile lifecycle engine,
// the cache repositories and the HTTP surface.
package entity

import (
	"fmt"
	"time"
)

// SizeClass is the pixel size of a raster tile.
type SizeClass uint16

const (
	SizeNormal    SizeClass = 256
	SizeLarge     SizeClass = 512
	SizeVeryLarge SizeClass = 768
)

func (s SizeClass) Pixels() int {
	return int(s)
}

func (s SizeClass) Valid() bool {
	switch s {
	case SizeNormal, SizeLarge, SizeVeryLarge:
		return true
	}
	return false
}

func (s SizeClass) String() string {
	switch s {
	case SizeNormal:
		return "normal"
	case SizeLarge:
		return "large"
	case SizeVeryLarge:
		return "very_large"
	}
	return fmt.Sprintf("size(%d)", uint16(s))
}

// TileKey identifies a tile everywhere in the engine.
type TileKey struct {
	Zoom uint8
	X    uint32
	Y    uint32
	Size SizeClass
}

func (k TileKey) Valid() bool {
	if k.Zoom > 31 || !k.Size.Valid() {
		return false
	}
	n := uint64(1) << k.Zoom
	return uint64(k.X) < n && uint64(k.Y) < n
}

// Filename is the on-disk cache name, e.g. "10.512.341.256.tile.png".
func (k TileKey) Filename() string {
	return fmt.Sprintf("%d.%d.%d.%d.tile.png", k.Zoom, k.X, k.Y, k.Size)
}

func (k TileKey) String() string {
	return fmt.Sprintf("%d/%d/%d@%d", k.Zoom, k.X, k.Y, k.Size)
}

// Less orders keys by zoom, then row, then column.
func (k TileKey) Less(o TileKey) bool {
	if k.Zoom != o.Zoom {
		return k.Zoom < o.Zoom
	}
	if k.Y != o.Y {
		return k.Y < o.Y
	}
	if k.X != o.X {
		return k.X < o.X
	}
	return k.Size < o.Size
}

// State is the lifecycle position of a tracked tile.
type State uint8

const (
	StateRequested State = iota
	StateDownloading
	StateDownloaded
	StateFadingIn
	StateVisible
	StateDominated
	StateFadingOut
	StateEvicted
	StateFailed
)

var stateNames = [...]string{
	StateRequested:   "requested",
	StateDownloading: "downloading",
	StateDownloaded:  "downloaded",
	StateFadingIn:    "fading_in",
	StateVisible:     "visible",
	StateDominated:   "dominated",
	StateFadingOut:   "fading_out",
	StateEvicted:     "evicted",
	StateFailed:      "failed",
}

// States lists every state in lifecycle order.
func States() []State {
	return []State{
		StateRequested, StateDownloading, StateDownloaded, StateFadingIn,
		StateVisible, StateDominated, StateFadingOut, StateEvicted, StateFailed,
	}
}

// ParseState is the inverse of State.String.
func ParseState(name string) (State, bool) {
	for i, n := range stateNames {
		if n == name {
			return State(i), true
		}
	}
	return 0, false
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// TileRecord is the single tracked entry for a key.
type TileRecord struct {
	Key        TileKey
	State      State
	Alpha      float64
	BandOffset int

	SpawnTime   time.Time
	LastTouched time.Time

	// HasRenderObject is set when a render object is allocated; Attached
	// once the allocation went through the mutation queue.
	HasRenderObject bool
	Attached        bool

	Data     []byte
	Attempts int
	Err      error
}

// Fading reports whether the record is on its way out.
func (r *TileRecord) Fading() bool {
	return r.State == StateDominated || r.State == StateFadingOut
}
