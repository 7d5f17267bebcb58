package app

import (
	"fmt"

	"github.com/jaennil/guide_helper/backend/tileengine/internal/repository/cache"
	"github.com/jaennil/guide_helper/backend/tileengine/pkg/config"
	"github.com/jaennil/guide_helper/backend/tileengine/pkg/logger"
)

// NewTileCache opens the configured disk cache backend behind the in-memory
// hot tier. The returned func releases both.
func NewTileCache(cfg *config.Config, l logger.Logger) (cache.TileCache, func(), error) {
	var (
		cold    cache.TileCache
		closeFn = func() {}
	)

	switch cfg.Cache.Backend {
	case "filesystem":
		fs, err := cache.NewFilesystemCache(cfg.Cache.Dir, l)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open filesystem cache: %w", err)
		}
		cold = fs
	case "sqlite":
		db, err := cache.NewSQLiteCache(cfg.Cache.SQLitePath, l)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite cache: %w", err)
		}
		cold = db
		closeFn = func() {
			if err := db.Close(); err != nil {
				l.Error("failed to close sqlite cache", "error", err)
			}
		}
	case "redis":
		rc, err := cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		}, l)
		if err != nil {
			return nil, nil, err
		}
		cold = rc
		closeFn = func() {
			if err := rc.Close(); err != nil {
				l.Error("failed to close redis cache", "error", err)
			}
		}
	case "memory":
		return cache.NewMapCache(), closeFn, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}

	if cfg.Cache.HotTierBytes <= 0 {
		return cold, closeFn, nil
	}

	tiered, err := cache.NewTieredCache(cold, cfg.Cache.HotTierBytes)
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("failed to create hot tier: %w", err)
	}

	l.Info("tile cache ready", "backend", cfg.Cache.Backend, "hot_tier_bytes", cfg.Cache.HotTierBytes)

	return tiered, func() {
		tiered.Close()
		closeFn()
	}, nil
}
