package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type (
	Config struct {
		HTTP      HTTP      `envPrefix:"HTTP_"`
		Logger    Logger    `envPrefix:"LOGGER_"`
		Telemetry Telemetry `envPrefix:"TELEMETRY_"`
		Cache     Cache     `envPrefix:"CACHE_"`
		Redis     Redis     `envPrefix:"REDIS_"`
		Upstream  Upstream  `envPrefix:"UPSTREAM_"`
		Engine    Engine    `envPrefix:"ENGINE_"`
	}

	HTTP struct {
		Server  Server        `envPrefix:"SERVER_"`
		Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`
	}

	Server struct {
		Port         string        `env:"PORT" envDefault:"8080"`
		ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
		WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"15s"`
		IdleTimeout  time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	}

	Logger struct {
		Level          string `env:"LEVEL" envDefault:"info"`
		File           string `env:"FILE"`
		FileMaxSizeMB  int    `env:"FILE_MAX_SIZE_MB" envDefault:"50"`
		FileMaxBackups int    `env:"FILE_MAX_BACKUPS" envDefault:"3"`
		FileMaxAgeDays int    `env:"FILE_MAX_AGE_DAYS" envDefault:"14"`
	}

	Telemetry struct {
		Enabled        bool   `env:"ENABLED" envDefault:"false"`
		ServiceName    string `env:"SERVICE_NAME" envDefault:"guide-helper-tileengine"`
		ServiceVersion string `env:"SERVICE_VERSION" envDefault:"1.0.0"`
		Environment    string `env:"ENVIRONMENT" envDefault:"production"`
		OTLPEndpoint   string `env:"OTLP_ENDPOINT" envDefault:"otel-collector.observability.svc.cluster.local:4317"`
	}

	Cache struct {
		// Backend is one of filesystem, sqlite, redis, memory.
		Backend      string `env:"BACKEND" envDefault:"filesystem"`
		Dir          string `env:"DIR" envDefault:".cache/tiles"`
		SQLitePath   string `env:"SQLITE_PATH" envDefault:"tiles.db"`
		HotTierBytes int64  `env:"HOT_TIER_BYTES" envDefault:"67108864"`
	}

	Redis struct {
		Addr     string        `env:"ADDR" envDefault:"localhost:6379"`
		Password string        `env:"PASSWORD" envDefault:""`
		DB       int           `env:"DB" envDefault:"0"`
		TTL      time.Duration `env:"TTL" envDefault:"24h"`
	}

	Upstream struct {
		TileServerURL string        `env:"TILE_SERVER_URL" envDefault:"https://tile.openstreetmap.org"`
		UserAgent     string        `env:"USER_AGENT" envDefault:"GuideHelper/1.0 (https://github.com/jaennil/guide_helper)"`
		Referer       string        `env:"REFERER" envDefault:"https://guidehelper.ru.tuna.am"`
		FetchTimeout  time.Duration `env:"FETCH_TIMEOUT" envDefault:"10s"`
		MaxRetries    uint64        `env:"MAX_RETRIES" envDefault:"3"`
		RetryBase     time.Duration `env:"RETRY_BASE" envDefault:"200ms"`
		MaxInFlight   int           `env:"MAX_IN_FLIGHT" envDefault:"8"`
	}

	Engine struct {
		TickInterval             time.Duration `env:"TICK_INTERVAL" envDefault:"16ms"`
		RefreshInterval          time.Duration `env:"REFRESH_INTERVAL" envDefault:"300ms"`
		MaxResidentRenderObjects int           `env:"MAX_RESIDENT_RENDER_OBJECTS" envDefault:"1200"`
		FadeSpeed2D              float64       `env:"FADE_SPEED_2D" envDefault:"3.0"`
		FadeSpeed3D              float64       `env:"FADE_SPEED_3D" envDefault:"30.0"`
		BandDepth2D              int           `env:"BAND_DEPTH_2D" envDefault:"0"`
		BandDepth3D              int           `env:"BAND_DEPTH_3D" envDefault:"4"`
		UpgradeThreshold         float64       `env:"UPGRADE_THRESHOLD" envDefault:"0.7"`
		DowngradeThreshold       float64       `env:"DOWNGRADE_THRESHOLD" envDefault:"0.6"`
		MinZoom                  int           `env:"MIN_ZOOM" envDefault:"0"`
		MaxZoom                  int           `env:"MAX_ZOOM" envDefault:"19"`
		TileSize                 int           `env:"TILE_SIZE" envDefault:"256"`
		CullMarginTiles          int           `env:"CULL_MARGIN_TILES" envDefault:"1"`
		BandWideningTiles        int           `env:"BAND_WIDENING_TILES" envDefault:"2"`
		BandLookAheadTiles       float64       `env:"BAND_LOOK_AHEAD_TILES" envDefault:"1"`
		InitialLatitude          float64       `env:"INITIAL_LATITUDE" envDefault:"55.7558"`
		InitialLongitude         float64       `env:"INITIAL_LONGITUDE" envDefault:"37.6173"`
		InitialZoom              float64       `env:"INITIAL_ZOOM" envDefault:"10"`
		ViewportWidth            int           `env:"VIEWPORT_WIDTH" envDefault:"1920"`
		ViewportHeight           int           `env:"VIEWPORT_HEIGHT" envDefault:"1080"`
	}
)

func New() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Printf("NOTICE: .env file not found or cannot be loaded: %v\n", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}
