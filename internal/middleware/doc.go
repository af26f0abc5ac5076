// Package middleware provides HTTP middleware for the media cache.
//
// It includes:
//   - Request logging in W3C Extended Log Format
//   - Prometheus request metrics keyed by route template
//   - gzip compression of JSON and text responses
package middleware
