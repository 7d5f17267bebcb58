package dto

import (
	"github.com/jaennil/guide_helper/backend/tileengine/internal/entity"
	"github.com/paulmach/orb"
)

type Camera struct {
	Latitude   float64 `json:"lat" validate:"gte=-85.0511,lte=85.0511"`
	Longitude  float64 `json:"lon" validate:"gte=-180,lte=180"`
	Zoom       float64 `json:"zoom" validate:"gte=0,lte=22"`
	AltitudeFt float64 `json:"altitude_ft" validate:"gte=0"`
	Yaw        float64 `json:"yaw" validate:"gte=-360,lte=360"`
	Mode       string  `json:"mode" validate:"omitempty,oneof=2d 3d"`
	Width      int     `json:"width" validate:"gt=0,lte=16384"`
	Height     int     `json:"height" validate:"gt=0,lte=16384"`
}

func (c Camera) ToEntity() entity.Camera {
	mode := entity.ViewMode2D
	if c.Mode == "3d" {
		mode = entity.ViewMode3D
	}
	return entity.Camera{
		Center:     orb.Point{c.Longitude, c.Latitude},
		Zoom:       c.Zoom,
		AltitudeFt: c.AltitudeFt,
		Yaw:        c.Yaw,
		Mode:       mode,
		Viewport:   entity.Viewport{Width: c.Width, Height: c.Height},
	}
}

func CameraFromEntity(c entity.Camera) Camera {
	return Camera{
		Latitude:   c.Center.Lat(),
		Longitude:  c.Center.Lon(),
		Zoom:       c.Zoom,
		AltitudeFt: c.AltitudeFt,
		Yaw:        c.Yaw,
		Mode:       c.Mode.String(),
		Width:      c.Viewport.Width,
		Height:     c.Viewport.Height,
	}
}
