package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TileRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tiles_requests_total",
		Help: "Total number of tile records created by the dispatcher",
	})

	TilesCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tiles_cache_hits_total",
		Help: "Total number of requests resolved from the tile cache",
	})

	TilesCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tiles_cache_misses_total",
		Help: "Total number of requests that needed a network fetch",
	})

	TilesCacheCorrupt = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tiles_cache_corrupt_total",
		Help: "Total number of cached tiles dropped because they did not decode",
	})

	TilesCacheWriteErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tiles_cache_write_errors_total",
		Help: "Total number of failed tile cache writes",
	})

	TilesUpstreamRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tiles_upstream_requests_total",
		Help: "Total number of upstream fetch attempts",
	})

	TilesUpstreamLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tiles_upstream_latency_seconds",
		Help:    "Latency of upstream tile fetches in seconds",
		Buckets: prometheus.DefBuckets,
	})

	TilesFetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tiles_fetch_failures_total",
		Help: "Total number of tiles marked failed after exhausting retries",
	}, []string{"kind"})

	TilesSpawned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tiles_spawned_total",
		Help: "Total number of render objects allocated",
	})

	TilesEvicted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tiles_evicted_total",
		Help: "Total number of tile records removed from the index",
	}, []string{"reason"})

	TilesEmergencyEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tiles_emergency_evictions_total",
		Help: "Total number of active-level tiles evicted to respect the budget",
	})

	TilesResidentRenderObjects = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tiles_resident_render_objects",
		Help: "Render objects currently allocated",
	})

	TilesRecords = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tiles_records",
		Help: "Tracked tile records by lifecycle state",
	}, []string{"state"})

	TilesInvalidRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tiles_invalid_removed_total",
		Help: "Total number of cached tiles removed by the startup scan",
	})

	ZoomLevel = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tiles_zoom_level",
		Help: "Current discrete zoom level",
	})

	ZoomLevelChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tiles_zoom_level_changes_total",
		Help: "Total number of discrete zoom level transitions",
	}, []string{"direction"})

	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tiles_tick_duration_seconds",
		Help:    "Duration of one engine tick in seconds",
		Buckets: []float64{.0001, .0005, .001, .002, .005, .01, .02, .05},
	})

	EventStreamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tiles_event_stream_clients",
		Help: "Connected render event stream clients",
	})
)
