package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jaennil/guide_helper/backend/tileengine/internal/entity"
	"github.com/jaennil/guide_helper/backend/tileengine/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const redisKeyPattern = "tile:*"

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

func NewRedisCache(cfg RedisConfig, l logger.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ttl := cfg.TTL
	if ttl == 0 {
		ttl = 24 * time.Hour // default TTL
	}

	l.Info("redis cache initialized", "addr", cfg.Addr, "db", cfg.DB, "ttl", ttl)

	return &RedisCache{
		client: client,
		ttl:    ttl,
		logger: l,
	}, nil
}

var _ TileCache = (*RedisCache)(nil)

func (c *RedisCache) keyFor(k entity.TileKey) string {
	return fmt.Sprintf("tile:%d:%d:%d:%d", k.Zoom, k.X, k.Y, k.Size)
}

func (c *RedisCache) Exists(ctx context.Context, k entity.TileKey) (bool, error) {
	n, err := c.client.Exists(ctx, c.keyFor(k)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists error: %w", err)
	}
	return n > 0, nil
}

func (c *RedisCache) Get(ctx context.Context, k entity.TileKey) (TileCacheValue, bool, error) {
	data, err := c.client.Get(ctx, c.keyFor(k)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get error: %w", err)
	}

	return data, true, nil
}

func (c *RedisCache) Set(ctx context.Context, k entity.TileKey, v TileCacheValue) error {
	// Cast TileCacheValue to []byte for redis
	if err := c.client.Set(ctx, c.keyFor(k), []byte(v), c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set error: %w", err)
	}

	return nil
}

func (c *RedisCache) Delete(ctx context.Context, k entity.TileKey) error {
	if err := c.client.Del(ctx, c.keyFor(k)).Err(); err != nil {
		return fmt.Errorf("redis del error: %w", err)
	}
	return nil
}

func (c *RedisCache) Clear(ctx context.Context) (int, error) {
	deleted := 0
	iter := c.client.Scan(ctx, 0, redisKeyPattern, 512).Iterator()
	for iter.Next(ctx) {
		n, err := c.client.Del(ctx, iter.Val()).Result()
		if err != nil {
			return deleted, fmt.Errorf("redis del error: %w", err)
		}
		deleted += int(n)
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("redis scan error: %w", err)
	}

	c.logger.Info("cleared redis cache", "deleted", deleted)
	return deleted, nil
}

func (c *RedisCache) RemoveInvalid(ctx context.Context) (int, error) {
	removed := 0
	iter := c.client.Scan(ctx, 0, redisKeyPattern, 512).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := c.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err == nil {
			err = Validate(data)
		}
		if err == nil {
			continue
		}

		c.logger.Warn("removing invalid cached tile", "key", key, "size", len(data), "error", err)
		if err := c.client.Del(ctx, key).Err(); err != nil {
			c.logger.Error("failed to remove invalid cached tile", "key", key, "error", err)
			continue
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("redis scan error: %w", err)
	}

	return removed, nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
