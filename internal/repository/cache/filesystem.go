package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/jaennil/guide_helper/backend/tileengine/internal/entity"
	"github.com/jaennil/guide_helper/backend/tileengine/pkg/logger"
)

var tileFileRegexp = regexp.MustCompile(`^(?P<z>\d+)\.(?P<x>\d+)\.(?P<y>\d+)\.(?P<size>\d+)\.tile\.png$`)

// FilesystemCache stores one file per tile in a flat directory, named
// "{zoom}.{x}.{y}.{size}.tile.png".
type FilesystemCache struct {
	dir    string
	logger logger.Logger
}

func NewFilesystemCache(dir string, l logger.Logger) (*FilesystemCache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}

	l.Info("filesystem cache initialized", "dir", dir)

	return &FilesystemCache{
		dir:    dir,
		logger: l,
	}, nil
}

var _ TileCache = (*FilesystemCache)(nil)

func (c *FilesystemCache) Exists(_ context.Context, k entity.TileKey) (bool, error) {
	_, err := os.Stat(c.keyToPath(k))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (c *FilesystemCache) Get(_ context.Context, k entity.TileKey) (TileCacheValue, bool, error) {
	content, err := os.ReadFile(c.keyToPath(k))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return content, true, nil
}

// Set writes through a temp file so a crash never leaves a truncated tile.
func (c *FilesystemCache) Set(_ context.Context, k entity.TileKey, v TileCacheValue) error {
	if !k.Valid() {
		return fmt.Errorf("%w: %s", ErrBadKey, k)
	}

	tmp, err := os.CreateTemp(c.dir, k.Filename()+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(v); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	return os.Rename(tmpName, c.keyToPath(k))
}

func (c *FilesystemCache) Delete(_ context.Context, k entity.TileKey) error {
	err := os.Remove(c.keyToPath(k))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (c *FilesystemCache) Clear(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, e := range entries {
		if ctx.Err() != nil {
			return deleted, ctx.Err()
		}
		if e.IsDir() || !strings.Contains(e.Name(), ".tile.") {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, e.Name())); err != nil {
			c.logger.Warn("failed to delete cached tile", "file", e.Name(), "error", err)
			continue
		}
		deleted++
	}

	c.logger.Info("cleared filesystem cache", "deleted", deleted, "dir", c.dir)
	return deleted, nil
}

func (c *FilesystemCache) RemoveInvalid(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, e := range entries {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}
		if e.IsDir() {
			continue
		}

		name := e.Name()
		path := filepath.Join(c.dir, name)

		// leftovers of interrupted writes
		if strings.HasSuffix(name, ".tmp") && strings.Contains(name, ".tile.png.") {
			os.Remove(path)
			removed++
			continue
		}
		if _, ok := parseTileFilename(name); !ok {
			continue
		}

		data, err := os.ReadFile(path)
		if err == nil {
			err = Validate(data)
		}
		if err != nil {
			c.logger.Warn("removing invalid cached tile", "file", name, "size", len(data), "error", err)
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				c.logger.Error("failed to remove invalid cached tile", "file", name, "error", err)
				continue
			}
			removed++
		}
	}

	return removed, nil
}

func (c *FilesystemCache) keyToPath(k entity.TileKey) string {
	return filepath.Join(c.dir, k.Filename())
}

func parseTileFilename(name string) (entity.TileKey, bool) {
	m := tileFileRegexp.FindStringSubmatch(name)
	if m == nil {
		return entity.TileKey{}, false
	}

	z, err := strconv.ParseUint(m[tileFileRegexp.SubexpIndex("z")], 10, 8)
	if err != nil {
		return entity.TileKey{}, false
	}
	x, err := strconv.ParseUint(m[tileFileRegexp.SubexpIndex("x")], 10, 32)
	if err != nil {
		return entity.TileKey{}, false
	}
	y, err := strconv.ParseUint(m[tileFileRegexp.SubexpIndex("y")], 10, 32)
	if err != nil {
		return entity.TileKey{}, false
	}
	size, err := strconv.ParseUint(m[tileFileRegexp.SubexpIndex("size")], 10, 16)
	if err != nil {
		return entity.TileKey{}, false
	}

	k := entity.TileKey{Zoom: uint8(z), X: uint32(x), Y: uint32(y), Size: entity.SizeClass(size)}
	return k, k.Valid()
}
