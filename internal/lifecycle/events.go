package lifecycle

import "github.com/jaennil/guide_helper/backend/tileengine/internal/entity"

type RenderEventKind string

const (
	EventAttach RenderEventKind = "attach"
	EventDetach RenderEventKind = "detach"
)

// RenderEvent tells the renderer to create or drop the draw object of a
// tile. Events are emitted only at the sync point of a tick.
type RenderEvent struct {
	Kind  RenderEventKind `json:"kind"`
	Key   entity.TileKey  `json:"-"`
	Tile  string          `json:"tile"`
	Alpha float64         `json:"alpha"`
	Tick  uint64          `json:"tick"`
}

type EventSink interface {
	Publish(RenderEvent)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(RenderEvent)

func (f EventSinkFunc) Publish(e RenderEvent) {
	f(e)
}

type nopSink struct{}

func (nopSink) Publish(RenderEvent) {}
