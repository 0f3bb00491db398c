package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Tile lifecycle metrics
var (
	TilesLive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "asset_tiles_live",
			Help: "Number of tile controllers currently registered in the resource pool",
		},
	)

	TileRegistrationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "asset_tiles_registrations_total",
			Help: "Total number of tile registrations",
		},
	)

	TileEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "asset_tiles_evictions_total",
			Help: "Total number of tiles evicted from the resource pool",
		},
	)

	TileStateTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_tiles_state_transitions_total",
			Help: "Total number of tile lifecycle state transitions",
		},
		[]string{"from", "to"},
	)
)

// Thumbnail metrics
var (
	ThumbnailLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_tiles_thumbnail_loads_total",
			Help: "Total number of thumbnail load completions",
		},
		[]string{"status"}, // "success", "cache_hit", "error", "stale"
	)

	ThumbnailLoadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "asset_tiles_thumbnail_load_duration_seconds",
			Help:    "Thumbnail decode+scale duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	ThumbnailCacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "asset_tiles_thumbnail_cache_hits_total",
			Help: "Total number of shared thumbnail cache hits",
		},
	)

	ThumbnailCacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "asset_tiles_thumbnail_cache_misses_total",
			Help: "Total number of shared thumbnail cache misses",
		},
	)

	ThumbnailCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "asset_tiles_thumbnail_cache_entries",
			Help: "Number of bitmaps currently held by the shared thumbnail cache",
		},
	)

	ThumbnailMemoryEstimateBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "asset_tiles_thumbnail_memory_estimate_bytes",
			Help: "Estimated RGBA memory held by cached thumbnails",
		},
	)
)

// Metadata metrics
var (
	MetadataChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_tiles_metadata_changes_total",
			Help: "Total number of committed metadata changes",
		},
		[]string{"field"}, // "rating", "color", "selection"
	)

	MetadataRollbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "asset_tiles_metadata_rollbacks_total",
			Help: "Total number of metadata change rollbacks",
		},
	)

	MetadataWriteThroughErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "asset_tiles_metadata_write_errors_total",
			Help: "Total number of failed write-throughs to the item record store",
		},
	)
)

// Interaction metrics
var (
	InteractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_tiles_interactions_total",
			Help: "Total number of recognized semantic gestures",
		},
		[]string{"gesture"}, // "click_thumbnail", "click_filename", "drag", "context_menu", "key"
	)
)

// HTTP metrics for the gallery service
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_tiles_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "asset_tiles_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "asset_tiles_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Item store metrics
var (
	StoreQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_tiles_store_queries_total",
			Help: "Total number of item record store operations",
		},
		[]string{"operation", "status"},
	)

	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "asset_tiles_store_query_duration_seconds",
			Help:    "Item record store operation duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)
)
