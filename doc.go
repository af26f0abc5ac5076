// Package main provides the entry point for the media cache.
//
// The media cache keeps a durable local copy of remote images and of a
// single still frame for each remote video, keyed by origin URL. Callers
// resolve media through it and get back a short-lived object handle served
// from /blob/{token}, falling back to the origin URL or a placeholder when
// caching is not possible.
//
// # Application Lifecycle
//
//  1. Memory: GOMEMLIMIT is derived from MEMORY_LIMIT when set
//  2. Configuration: environment variables are loaded and the cache
//     directory is checked for write access
//  3. Store: the SQLite store is opened and migrated
//  4. Components:
//     - Frame extractor: ffmpeg/ffprobe for video stills, libvips or pure Go
//     for JPEG encoding
//     - Fetcher: HTTP client with timeout and content-type checks
//     - Handle registry: in-memory tokens for payload bytes
//     - Cache orchestrator: lookup, single-flight population, expiry
//  5. HTTP server: routes, metrics, compression and W3C access logging
//  6. Graceful shutdown on SIGINT/SIGTERM
//
// # Background Services
//
//   - Maintenance: purges expired records and expired handles every
//     PURGE_INTERVAL, once at startup
//   - Metrics collector: refreshes item and byte gauges every STATS_INTERVAL
//   - Memory monitor: sheds the oldest handles when the heap nears its limit
//
// # HTTP API
//
//	GET    /api/cache?url=          lookup only, never fetches
//	POST   /api/cache               {"postId","url","kind"}, fetch and store
//	GET    /api/cache/stats         record counts and live handles
//	POST   /api/cache/purge         background expiry sweep, ?maxAge=
//	GET    /api/resolve             run a resolver to completion
//	GET    /blob/{token}            serve a handle
//	DELETE /blob/{token}            revoke a handle
//	GET    /health, /livez, /readyz, /version, /metrics
//
// See the startup package for the full list of environment variables.
package main
