package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jaennil/guide_helper/backend/tileengine/internal/entity"
	v1 "github.com/jaennil/guide_helper/backend/tileengine/internal/infrastructure/http/v1"
	"github.com/jaennil/guide_helper/backend/tileengine/internal/infrastructure/http/v1/handler"
	"github.com/jaennil/guide_helper/backend/tileengine/internal/lifecycle"
	"github.com/jaennil/guide_helper/backend/tileengine/internal/repository/source"
	"github.com/jaennil/guide_helper/backend/tileengine/internal/usecase"
	"github.com/jaennil/guide_helper/backend/tileengine/pkg/config"
	"github.com/jaennil/guide_helper/backend/tileengine/pkg/http_server"
	"github.com/jaennil/guide_helper/backend/tileengine/pkg/logger"
	"github.com/jaennil/guide_helper/backend/tileengine/pkg/telemetry"
	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"
)

const (
	eventBuffer     = 256
	shutdownTimeout = 30 * time.Second
)

// Run serves the engine until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config, l logger.Logger) error {
	l.Info("starting tile engine", "config", cfg)

	if cfg.Telemetry.Enabled {
		shutdownTelemetry, err := telemetry.InitTracer(telemetry.Config{
			ServiceName:    cfg.Telemetry.ServiceName,
			ServiceVersion: cfg.Telemetry.ServiceVersion,
			Environment:    cfg.Telemetry.Environment,
			OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		}, l)
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		defer func() {
			if err := shutdownTelemetry(context.Background()); err != nil {
				l.Error("failed to shutdown telemetry", "error", err)
			}
		}()
		l.Info("telemetry initialized", "service", cfg.Telemetry.ServiceName)
	}

	ctx = logger.WithLogger(ctx, l)

	tileCache, closeCache, err := NewTileCache(cfg, l)
	if err != nil {
		return err
	}
	defer closeCache()

	src := source.NewHTTPSource(source.HTTPSourceConfig{
		BaseURL:   cfg.Upstream.TileServerURL,
		UserAgent: cfg.Upstream.UserAgent,
		Referer:   cfg.Upstream.Referer,
		Timeout:   cfg.Upstream.FetchTimeout,
	}, logger.ForComponent(l, "source"))

	engineCfg := EngineConfig(cfg)
	if err := engineCfg.Validate(); err != nil {
		return err
	}

	hub := usecase.NewEventHub(eventBuffer)
	engine := lifecycle.NewEngine(ctx, engineCfg, tileCache, src, hub, InitialCamera(cfg), l)
	mapView := usecase.NewMapViewUseCase(engine, hub, cfg.Engine.TickInterval, logger.ForComponent(l, "map_view"))

	h := handler.NewHandler(validator.New(), mapView)
	router := v1.NewRouter(h, l, cfg.Telemetry.Enabled)
	httpServer := http_server.NewServer(ctx, cfg.HTTP.Server, router)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return mapView.Run(gctx)
	})

	g.Go(func() error {
		l.Info("starting http server...", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		l.Info("http server stopped", "address", httpServer.Addr)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		l.Info("shutting down http server...", "address", httpServer.Addr)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			l.Error("http server shutdown failed", "error", err)
			return err
		}
		l.Info("http_server shutdown completed")
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	l.Info("application shutdown completed")
	return nil
}

// EngineConfig maps the environment onto the engine tunables.
func EngineConfig(cfg *config.Config) lifecycle.Config {
	e := cfg.Engine

	c := lifecycle.DefaultConfig()
	c.MaxResidentRenderObjects = e.MaxResidentRenderObjects
	c.FadeSpeed2D = e.FadeSpeed2D
	c.FadeSpeed3D = e.FadeSpeed3D
	c.BandDepth2D = e.BandDepth2D
	c.BandDepth3D = e.BandDepth3D
	c.RefreshInterval = e.RefreshInterval
	c.UpgradeThreshold = e.UpgradeThreshold
	c.DowngradeThreshold = e.DowngradeThreshold
	c.MinZoom = e.MinZoom
	c.MaxZoom = e.MaxZoom
	c.TileSize = entity.SizeClass(e.TileSize)
	c.CullMarginTiles = e.CullMarginTiles
	c.BandWideningTiles = e.BandWideningTiles
	c.BandLookAheadTiles = e.BandLookAheadTiles

	c.MaxInFlight = cfg.Upstream.MaxInFlight
	c.FetchTimeout = cfg.Upstream.FetchTimeout
	c.MaxRetries = cfg.Upstream.MaxRetries
	c.RetryBase = cfg.Upstream.RetryBase
	return c
}

func InitialCamera(cfg *config.Config) entity.Camera {
	return entity.Camera{
		Center: orb.Point{cfg.Engine.InitialLongitude, cfg.Engine.InitialLatitude},
		Zoom:   cfg.Engine.InitialZoom,
		Viewport: entity.Viewport{
			Width:  cfg.Engine.ViewportWidth,
			Height: cfg.Engine.ViewportHeight,
		},
	}
}
