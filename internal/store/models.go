package store

import (
	"time"

	"media-cache/internal/media"
)

// Record is one cached media item. Records are written once and never
// updated; expiry removes them.
type Record struct {
	ID          string     `json:"id"`
	OriginalURL string     `json:"originalUrl"`
	Payload     []byte     `json:"-"`
	Kind        media.Kind `json:"mediaKind"`
	CachedAt    int64      `json:"cachedAt"` // epoch millis
	OwnerPostID string     `json:"ownerPostId"`
	ContentType string     `json:"contentType,omitempty"`
	Width       int        `json:"width,omitempty"`
	Height      int        `json:"height,omitempty"`
}

// Size returns the payload length in bytes.
func (r *Record) Size() int64 {
	return int64(len(r.Payload))
}

// CachedTime returns CachedAt as a time.Time.
func (r *Record) CachedTime() time.Time {
	return time.UnixMilli(r.CachedAt)
}

// KindSummary aggregates the stored records of one media kind.
type KindSummary struct {
	Kind  media.Kind
	Count int
	Bytes int64
}
