package handlers

import (
	"context"
	"sync/atomic"
	"time"

	"media-cache/internal/cache"
	"media-cache/internal/handles"
	"media-cache/internal/media"
)

// CacheService is the orchestrator as used by the HTTP layer.
type CacheService interface {
	GetCachedMedia(ctx context.Context, originalURL string) (string, error)
	CacheMedia(ctx context.Context, postID, originalURL string, kind media.Kind) (string, error)
	PurgeExpired(ctx context.Context, maxAge time.Duration) int64
	GetStatistics(ctx context.Context) cache.Statistics
}

// BlobRegistry resolves and revokes minted handles.
type BlobRegistry interface {
	Resolve(handle string) (handles.Blob, bool)
	Revoke(handle string) bool
	Len() int
}

// Pinger reports whether the store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options carries the resolver defaults used by /api/resolve.
type Options struct {
	FallbackURL string
	AutoCache   bool
	RetryDelay  time.Duration
}

type Handlers struct {
	cache     CacheService
	blobs     BlobRegistry
	store     Pinger
	opts      Options
	startTime time.Time
	purging   atomic.Bool
}

func New(c CacheService, blobs BlobRegistry, store Pinger, opts Options) *Handlers {
	if opts.FallbackURL == "" {
		opts.FallbackURL = cache.DefaultFallbackURL
	}
	return &Handlers{
		cache:     c,
		blobs:     blobs,
		store:     store,
		opts:      opts,
		startTime: time.Now(),
	}
}
