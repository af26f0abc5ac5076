// Package metrics provides Prometheus instrumentation for the media cache.
//
// All metrics are prefixed with "media_cache_" and registered through
// promauto at package init.
//
// # Metric Categories
//
//   - HTTP: request counts, durations and in-flight requests
//   - Store: SQLite operation counts and durations, expiry deletions,
//     duplicate inserts that were skipped
//   - Fetch: remote fetch outcomes, durations and bytes
//   - Thumbnail: video frame extraction outcomes and ffmpeg timings
//   - Cache: lookup hit/miss, populate outcomes, shared single-flight
//     populates, item and byte gauges, active handles
//   - Retrieval: state transitions of retrieval state machines
//   - Memory: heap usage against the limit, handles shed under pressure
//
// The Collector refreshes the item and byte gauges from a StatsProvider on a
// fixed interval.
package metrics
