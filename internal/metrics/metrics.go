package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_cache_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_cache_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_cache_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Store metrics
var (
	StoreQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_cache_store_queries_total",
			Help: "Total number of store operations",
		},
		[]string{"operation", "status"},
	)

	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_cache_store_query_duration_seconds",
			Help:    "Store operation duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	StoreRecordsDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_cache_store_records_deleted_total",
			Help: "Total number of records removed by the expiry sweep",
		},
	)

	StoreDuplicatePuts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_cache_store_duplicate_puts_total",
			Help: "Inserts skipped because the origin URL was already stored",
		},
	)
)

// Fetch metrics
var (
	FetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_cache_fetch_total",
			Help: "Total number of remote media fetches",
		},
		[]string{"kind", "status"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_cache_fetch_duration_seconds",
			Help:    "Remote media fetch duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		},
		[]string{"kind"},
	)

	FetchBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_cache_fetch_bytes_total",
			Help: "Total bytes downloaded from origin URLs",
		},
		[]string{"kind"},
	)
)

// Thumbnail metrics
var (
	ThumbnailExtractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_cache_thumbnail_extractions_total",
			Help: "Total number of video frame extractions",
		},
		[]string{"status"},
	)

	ThumbnailExtractionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_cache_thumbnail_extraction_duration_seconds",
			Help:    "Video frame extraction duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	ThumbnailFFmpegDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_cache_thumbnail_ffmpeg_duration_seconds",
			Help:    "Duration of individual ffmpeg/ffprobe invocations",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"tool"},
	)
)

// Cache metrics
var (
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_cache_lookups_total",
			Help: "Cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)

	CachePopulateTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_cache_populate_total",
			Help: "Cache populate attempts by kind and status",
		},
		[]string{"kind", "status"},
	)

	CachePopulateShared = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_cache_populate_shared_total",
			Help: "Populate calls that joined an in-flight populate for the same URL",
		},
	)

	CacheItems = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_cache_items",
			Help: "Number of cached records by media kind",
		},
		[]string{"kind"},
	)

	CacheSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_cache_size_bytes",
			Help: "Total payload bytes held in the store",
		},
	)

	CachePurgeLastTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_cache_purge_last_timestamp",
			Help: "Unix timestamp of the last expiry sweep",
		},
	)

	HandlesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_cache_handles_active",
			Help: "Number of object handles currently resolvable",
		},
	)
)

// Retrieval metrics
var (
	RetrievalTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_cache_retrieval_transitions_total",
			Help: "Retrieval state machine transitions by target state",
		},
		[]string{"state"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_cache_memory_usage_ratio",
			Help: "Heap usage as a ratio of the memory limit",
		},
	)

	MemoryReliefTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_cache_memory_relief_total",
			Help: "Handles revoked to relieve memory pressure",
		},
	)
)

// Application info
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_cache_app_info",
			Help: "Application build information",
		},
		[]string{"version", "commit", "go_version"},
	)
)
