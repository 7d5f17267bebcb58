package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jaennil/guide_helper/backend/tileengine/internal/entity"
	"github.com/jaennil/guide_helper/backend/tileengine/pkg/logger"
	"github.com/jaennil/guide_helper/backend/tileengine/pkg/metrics"
	"github.com/jaennil/guide_helper/backend/tileengine/pkg/telemetry"
	"github.com/rs/xid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// maxTileBytes caps a single response body.
const maxTileBytes = 4 << 20

type HTTPSourceConfig struct {
	// BaseURL is either a plain base ("https://tile.openstreetmap.org",
	// tiles at {base}/{z}/{x}/{y}.png) or a template containing {z}, {x},
	// {y} and optionally {size}.
	BaseURL   string
	UserAgent string
	Referer   string
	Timeout   time.Duration
}

// HTTPSource fetches raster tiles from an XYZ tile server.
type HTTPSource struct {
	cfg        HTTPSourceConfig
	httpClient *http.Client
	tracer     trace.Tracer
	logger     logger.Logger
}

func NewHTTPSource(cfg HTTPSourceConfig, l logger.Logger) *HTTPSource {
	return &HTTPSource{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		tracer: otel.Tracer(telemetry.TracerName),
		logger: l,
	}
}

func (s *HTTPSource) URL(k entity.TileKey) string {
	base := s.cfg.BaseURL
	if !strings.Contains(base, "{z}") {
		return fmt.Sprintf("%s/%d/%d/%d.png", strings.TrimRight(base, "/"), k.Zoom, k.X, k.Y)
	}

	r := strings.NewReplacer(
		"{z}", fmt.Sprint(k.Zoom),
		"{x}", fmt.Sprint(k.X),
		"{y}", fmt.Sprint(k.Y),
		"{size}", fmt.Sprint(k.Size.Pixels()),
	)
	return r.Replace(base)
}

// Fetch downloads one tile. Errors are always *FetchError.
func (s *HTTPSource) Fetch(ctx context.Context, k entity.TileKey) ([]byte, error) {
	requestID := xid.New().String()
	upstreamURL := s.URL(k)

	ctx, span := s.tracer.Start(ctx, "tile.fetch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.Int("tile.z", int(k.Zoom)),
			attribute.Int64("tile.x", int64(k.X)),
			attribute.Int64("tile.y", int64(k.Y)),
			attribute.Int("tile.size", k.Size.Pixels()),
			attribute.String("request.id", requestID),
		),
	)
	defer span.End()

	data, err := s.fetch(ctx, k, upstreamURL, requestID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("tile.bytes", len(data)))
	span.SetStatus(codes.Ok, "")
	return data, nil
}

func (s *HTTPSource) fetch(ctx context.Context, k entity.TileKey, upstreamURL, requestID string) ([]byte, error) {
	s.logger.Debug("fetching from upstream", "url", upstreamURL, "request_id", requestID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, upstreamURL, nil)
	if err != nil {
		return nil, &FetchError{Kind: FetchNetwork, Key: k, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	// Set required headers for OpenStreetMap tile usage policy
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	if s.cfg.Referer != "" {
		req.Header.Set("Referer", s.cfg.Referer)
	}

	metrics.TilesUpstreamRequests.Inc()
	start := time.Now()
	resp, err := s.httpClient.Do(req)
	metrics.TilesUpstreamLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, Classify(k, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, &FetchError{Kind: FetchNotFound, Key: k, Err: fmt.Errorf("upstream returned status %d", resp.StatusCode)}
	case resp.StatusCode == http.StatusGatewayTimeout || resp.StatusCode == http.StatusRequestTimeout:
		return nil, &FetchError{Kind: FetchTimeout, Key: k, Err: fmt.Errorf("upstream returned status %d", resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		return nil, &FetchError{Kind: FetchNetwork, Key: k, Err: fmt.Errorf("upstream returned status %d", resp.StatusCode)}
	}

	tileData, err := io.ReadAll(io.LimitReader(resp.Body, maxTileBytes))
	if err != nil {
		return nil, Classify(k, fmt.Errorf("failed to read tile data: %w", err))
	}

	s.logger.Debug("fetched tile from upstream",
		"tile", k,
		"size", len(tileData),
		"duration", time.Since(start),
		"request_id", requestID,
	)

	return tileData, nil
}
