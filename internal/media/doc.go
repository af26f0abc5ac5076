// Package media holds the media vocabulary shared by the cache components:
// the image/video Kind, Content-Type classification, and helpers that sniff
// and probe encoded payloads.
package media
