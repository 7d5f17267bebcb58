package cache

import (
	"context"
	"errors"

	"github.com/jaennil/guide_helper/backend/tileengine/internal/entity"
)

var (
	ErrInvalidTile = errors.New("tile bytes do not decode as an image")
	ErrBadKey      = errors.New("invalid tile key")
)

type TileCacheValue []byte

// TileCache persists tile bytes keyed by tile identity. Implementations are
// safe for concurrent use: writes come from fetch goroutines while the tick
// reads.
type TileCache interface {
	Exists(context.Context, entity.TileKey) (bool, error)
	Get(context.Context, entity.TileKey) (TileCacheValue, bool, error)
	Set(context.Context, entity.TileKey, TileCacheValue) error
	Delete(context.Context, entity.TileKey) error
	// Clear drops every cached tile and returns how many were removed.
	Clear(context.Context) (int, error)
	// RemoveInvalid decodes every cached tile and deletes the ones that fail.
	RemoveInvalid(context.Context) (int, error)
}
