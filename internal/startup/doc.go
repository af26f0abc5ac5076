// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// All configuration is loaded from environment variables via [LoadConfig]:
//
//   - CACHE_DIR: Directory holding the SQLite store (default: /cache)
//   - PORT: HTTP server port (default: 8080)
//   - PUBLIC_BASE_URL: Base of minted handle URLs (default: http://localhost:PORT)
//   - FALLBACK_URL: Placeholder shown when media cannot be served
//   - AUTO_CACHE: Populate the cache on lookup misses (default: true)
//   - FETCH_TIMEOUT: Remote fetch timeout as Go duration (default: 15s)
//   - EXTRACT_TIMEOUT: Video frame extraction timeout (default: 30s)
//   - MAX_AGE: Age after which records are purged (default: 720h)
//   - PURGE_INTERVAL: How often the purge sweep runs (default: 1h)
//   - STATS_INTERVAL: How often cache gauges are refreshed (default: 1m)
//   - HANDLE_TTL: Lifetime of minted handles, 0 for no expiry (default: 0)
//   - HANDLE_MAX_ENTRIES: Live handle cap, oldest revoked first, 0 for none
//     (default: 10000)
//   - RETRY_DELAY: Pause before a resolver's automatic retry (default: 0)
//   - USE_VIPS: Encode frames with libvips when available (default: true)
//   - METRICS_ENABLED: Serve /metrics (default: true)
//   - LOG_REQUESTS: W3C access logging (default: true)
//   - LOG_LEVEL: debug, info, warn, error (default: info)
//   - MEMORY_LIMIT, MEMORY_RATIO: read by the memory package to set GOMEMLIMIT
//
// Invalid values fall back to their defaults with a warning. The cache
// directory must be writable; the store lives at CACHE_DIR/media-cache.db.
package startup
