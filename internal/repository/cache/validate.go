package cache

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// Validate decodes data fully. Providers serve png, jpeg or webp under the
// same .tile.png name, so any registered format is accepted.
func Validate(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidTile)
	}
	if _, _, err := image.Decode(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTile, err)
	}
	return nil
}

// CheckHeader only parses the image header. It catches error pages and
// foreign files stored under a tile name without decoding pixels, which is
// enough on the read path once the startup scan has run.
func CheckHeader(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidTile)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTile, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidTile, cfg.Width, cfg.Height)
	}
	return nil
}
