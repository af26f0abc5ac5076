// Package handlers provides the HTTP surface of the media cache.
//
// It includes handlers for:
//   - Serving and revoking minted handles under /blob/
//   - Cache lookup, population, statistics and purge under /api/cache
//   - Running a resolver for one item under /api/resolve
//   - Health checks, version and metrics
package handlers
