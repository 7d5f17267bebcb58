package cache

import (
	"context"
	"database/sql"
	"embed"
	"errors"

	"github.com/jaennil/guide_helper/backend/tileengine/internal/entity"
	"github.com/jaennil/guide_helper/backend/tileengine/pkg/logger"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

type SQLiteCache struct {
	db     *sql.DB
	logger logger.Logger
}

func NewSQLiteCache(path string, l logger.Logger) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	err = db.Ping()
	if err != nil {
		db.Close()
		return nil, err
	}

	c := &SQLiteCache{
		db:     db,
		logger: l,
	}

	err = c.runMigrations()
	if err != nil {
		db.Close()
		return nil, err
	}

	l.Info("sqlite cache initialized", "path", path)

	return c, nil
}

func (c *SQLiteCache) runMigrations() error {
	goose.SetBaseFS(migrations)

	err := goose.SetDialect("sqlite3")
	if err != nil {
		return err
	}

	err = goose.Up(c.db, "migrations")
	if err != nil {
		return err
	}

	return nil
}

var _ TileCache = (*SQLiteCache)(nil)

func (c *SQLiteCache) Exists(ctx context.Context, k entity.TileKey) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM tile_cache WHERE z = ? AND x = ? AND y = ? AND size = ?)`

	var exists bool
	if err := c.db.QueryRowContext(ctx, query, k.Zoom, k.X, k.Y, k.Size).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (c *SQLiteCache) Get(ctx context.Context, k entity.TileKey) (TileCacheValue, bool, error) {
	c.logger.Debug("sqlite cache get", "tile", k)

	query := `SELECT tile_data
	FROM tile_cache
	WHERE z = ? AND x = ? AND y = ? AND size = ?`

	var tileData []byte
	err := c.db.QueryRowContext(ctx, query, k.Zoom, k.X, k.Y, k.Size).Scan(&tileData)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		c.logger.Error("sqlite cache get failed", "tile", k, "error", err)
		return nil, false, err
	}

	return tileData, true, nil
}

func (c *SQLiteCache) Set(ctx context.Context, k entity.TileKey, v TileCacheValue) error {
	c.logger.Debug("sqlite cache set", "tile", k, "size", len(v))

	query := `INSERT INTO tile_cache (z, x, y, size, tile_data)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(z, x, y, size) DO UPDATE SET tile_data = excluded.tile_data, stored_at = CURRENT_TIMESTAMP`

	_, err := c.db.ExecContext(ctx, query, k.Zoom, k.X, k.Y, k.Size, []byte(v))
	if err != nil {
		c.logger.Error("sqlite cache set failed", "tile", k, "error", err)
		return err
	}

	return nil
}

func (c *SQLiteCache) Delete(ctx context.Context, k entity.TileKey) error {
	query := `DELETE FROM tile_cache WHERE z = ? AND x = ? AND y = ? AND size = ?`
	_, err := c.db.ExecContext(ctx, query, k.Zoom, k.X, k.Y, k.Size)
	return err
}

func (c *SQLiteCache) Clear(ctx context.Context) (int, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM tile_cache`)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	c.logger.Info("cleared sqlite cache", "deleted", n)
	return int(n), nil
}

func (c *SQLiteCache) RemoveInvalid(ctx context.Context) (int, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT z, x, y, size, tile_data FROM tile_cache`)
	if err != nil {
		return 0, err
	}

	var invalid []entity.TileKey
	for rows.Next() {
		var (
			k    entity.TileKey
			data []byte
		)
		if err := rows.Scan(&k.Zoom, &k.X, &k.Y, &k.Size, &data); err != nil {
			rows.Close()
			return 0, err
		}
		if err := Validate(data); err != nil {
			c.logger.Warn("removing invalid cached tile", "tile", k, "size", len(data), "error", err)
			invalid = append(invalid, k)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	// deletes run after the cursor is closed, sqlite holds a read lock until then
	removed := 0
	for _, k := range invalid {
		if err := c.Delete(ctx, k); err != nil {
			c.logger.Error("failed to remove invalid cached tile", "tile", k, "error", err)
			continue
		}
		removed++
	}

	return removed, nil
}

func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
