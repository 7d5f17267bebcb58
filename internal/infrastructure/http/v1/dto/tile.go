package dto

import (
	"time"

	"github.com/jaennil/guide_helper/backend/tileengine/internal/entity"
)

type Tile struct {
	Tile        string    `json:"tile"`
	Zoom        uint8     `json:"z"`
	X           uint32    `json:"x"`
	Y           uint32    `json:"y"`
	Size        int       `json:"size"`
	State       string    `json:"state"`
	Alpha       float64   `json:"alpha"`
	BandOffset  int       `json:"band_offset"`
	Attached    bool      `json:"attached"`
	Attempts    int       `json:"attempts,omitempty"`
	Error       string    `json:"error,omitempty"`
	SpawnTime   time.Time `json:"spawned_at,omitzero"`
	LastTouched time.Time `json:"last_touched"`
}

func TileFromRecord(r entity.TileRecord) Tile {
	t := Tile{
		Tile:        r.Key.String(),
		Zoom:        r.Key.Zoom,
		X:           r.Key.X,
		Y:           r.Key.Y,
		Size:        r.Key.Size.Pixels(),
		State:       r.State.String(),
		Alpha:       r.Alpha,
		BandOffset:  r.BandOffset,
		Attached:    r.Attached,
		Attempts:    r.Attempts,
		SpawnTime:   r.SpawnTime,
		LastTouched: r.LastTouched,
	}
	if r.Err != nil {
		t.Error = r.Err.Error()
	}
	return t
}

type TilesResponse struct {
	Count int    `json:"count"`
	Tiles []Tile `json:"tiles"`
}

type ClearCacheResponse struct {
	Removed int `json:"removed"`
}
