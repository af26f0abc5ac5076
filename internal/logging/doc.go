// Package logging provides the leveled logger used across the media cache.
//
// Levels, lowest first:
//   - DEBUG: cache hits, fetch and extraction detail
//   - INFO: startup, purge sweeps, populate results
//   - WARN: recoverable failures (statistics, purge, handle cleanup)
//   - ERROR: failures that surface to an operator
//   - FATAL: startup failures that terminate the process
//
// The level comes from DEBUG=true or LOG_LEVEL at first use and can be
// overridden with SetLevel.
package logging
