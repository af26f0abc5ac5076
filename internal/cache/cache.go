package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"media-cache/internal/fetcher"
	"media-cache/internal/logging"
	"media-cache/internal/media"
	"media-cache/internal/metrics"
	"media-cache/internal/store"
	"media-cache/internal/thumbnail"

	"golang.org/x/sync/singleflight"
)

const (
	// DefaultFallbackURL is shown when media cannot be served at all.
	DefaultFallbackURL = "https://via.placeholder.com/150"

	// DefaultMaxAge is how long records live before the purge sweep removes them.
	DefaultMaxAge = 30 * 24 * time.Hour

	// DefaultExtractTimeout bounds a single video frame extraction.
	DefaultExtractTimeout = 30 * time.Second
)

var log = logging.For("cache")

// Store is the durable record store the cache reads and writes.
type Store interface {
	Get(ctx context.Context, originalURL string) (*store.Record, error)
	Put(ctx context.Context, rec *store.Record) (bool, error)
	DeleteOlderThan(ctx context.Context, thresholdMillis int64) (int64, error)
	Summarize(ctx context.Context) ([]store.KindSummary, error)
}

// Fetcher downloads remote media.
type Fetcher interface {
	Fetch(ctx context.Context, url string, expected media.Kind, timeout time.Duration) ([]byte, error)
}

// FrameExtractor turns a video payload into still image bytes.
type FrameExtractor interface {
	ExtractFrame(ctx context.Context, video []byte, opts thumbnail.Options) ([]byte, error)
}

// HandleMinter issues object handles for payload bytes.
type HandleMinter interface {
	Mint(payload []byte, contentType string) string
}

// Config carries the cache's tunables. Zero values select the defaults.
type Config struct {
	FallbackURL    string
	AutoCache      bool
	FetchTimeout   time.Duration
	ExtractTimeout time.Duration
	MaxAge         time.Duration
	Frame          thumbnail.Options
}

// DefaultConfig returns the default configuration with auto-caching on.
func DefaultConfig() Config {
	return Config{
		FallbackURL:    DefaultFallbackURL,
		AutoCache:      true,
		FetchTimeout:   fetcher.DefaultTimeout,
		ExtractTimeout: DefaultExtractTimeout,
		MaxAge:         DefaultMaxAge,
		Frame:          thumbnail.DefaultOptions(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.FallbackURL == "" {
		c.FallbackURL = d.FallbackURL
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = d.FetchTimeout
	}
	if c.ExtractTimeout <= 0 {
		c.ExtractTimeout = d.ExtractTimeout
	}
	if c.MaxAge <= 0 {
		c.MaxAge = d.MaxAge
	}
	if c.Frame == (thumbnail.Options{}) {
		c.Frame = d.Frame
	}
	return c
}

// Statistics summarizes the store contents.
type Statistics struct {
	TotalItems     int   `json:"totalItems"`
	TotalSizeBytes int64 `json:"totalSizeBytes"`
	Images         int   `json:"images"`
	Videos         int   `json:"videos"`
}

// Cache maps origin URLs to locally servable handles. It is the only writer
// of the store.
type Cache struct {
	store     Store
	fetcher   Fetcher
	extractor FrameExtractor
	handles   HandleMinter
	cfg       Config

	inflight singleflight.Group
	now      func() time.Time

	idMu      sync.Mutex
	lastStamp int64
	stampSeq  int
}

// New creates a Cache. extractor may be nil, in which case video
// population fails with thumbnail.ErrExtractionFailed.
func New(s Store, f Fetcher, extractor FrameExtractor, h HandleMinter, cfg Config) *Cache {
	return &Cache{
		store:     s,
		fetcher:   f,
		extractor: extractor,
		handles:   h,
		cfg:       cfg.withDefaults(),
		now:       time.Now,
	}
}

// Config returns the effective configuration.
func (c *Cache) Config() Config {
	return c.cfg
}

// GetCachedMedia returns a fresh handle for originalURL if it is stored, or
// "" on a miss. It never touches the network.
func (c *Cache) GetCachedMedia(ctx context.Context, originalURL string) (string, error) {
	rec, err := c.store.Get(ctx, originalURL)
	if errors.Is(err, store.ErrNotFound) {
		metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
		return "", nil
	}
	if err != nil {
		metrics.CacheLookupsTotal.WithLabelValues("error").Inc()
		return "", err
	}

	metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
	log.Debug("Cache hit for %s (record %s)", originalURL, rec.ID)
	return c.mint(rec.Payload, rec.ContentType), nil
}

type populated struct {
	payload     []byte
	contentType string
}

// CacheMedia returns a handle for originalURL, fetching and storing it first
// if needed. Videos are stored as a single still frame. Concurrent calls for
// the same URL share one fetch; each caller gets its own handle. Errors from
// the store, fetcher and extractor are returned wrapped but unchanged in
// kind.
func (c *Cache) CacheMedia(ctx context.Context, postID, originalURL string, kind media.Kind) (string, error) {
	if handle, err := c.GetCachedMedia(ctx, originalURL); err != nil || handle != "" {
		return handle, err
	}

	if _, err := fetcher.ValidateURL(originalURL); err != nil {
		metrics.CachePopulateTotal.WithLabelValues(kind.String(), "invalid_url").Inc()
		return "", err
	}

	// The shared populate outlives any single caller; each caller stops
	// waiting when its own context ends.
	ch := c.inflight.DoChan(originalURL, func() (interface{}, error) {
		return c.populate(context.WithoutCancel(ctx), postID, originalURL, kind)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		metrics.CachePopulateTotal.WithLabelValues(kind.String(), "canceled").Inc()
		return "", fmt.Errorf("%w: %s: %w", fetcher.ErrFetchFailed, originalURL, ctx.Err())
	}
	if res.Shared {
		metrics.CachePopulateShared.Inc()
	}
	if res.Err != nil {
		metrics.CachePopulateTotal.WithLabelValues(kind.String(), "error").Inc()
		return "", res.Err
	}

	metrics.CachePopulateTotal.WithLabelValues(kind.String(), "success").Inc()
	p := res.Val.(populated)
	return c.mint(p.payload, p.contentType), nil
}

func (c *Cache) populate(ctx context.Context, postID, originalURL string, kind media.Kind) (populated, error) {
	start := time.Now()

	payload, err := c.fetcher.Fetch(ctx, originalURL, kind, c.cfg.FetchTimeout)
	if err != nil {
		return populated{}, fmt.Errorf("fetch %s: %w", originalURL, err)
	}

	if kind == media.KindVideo {
		payload, err = c.downgradeVideo(ctx, payload)
		if err != nil {
			return populated{}, fmt.Errorf("thumbnail %s: %w", originalURL, err)
		}
	}

	rec := &store.Record{
		ID:          c.newID(postID),
		OriginalURL: originalURL,
		Payload:     payload,
		Kind:        kind,
		CachedAt:    c.now().UnixMilli(),
		OwnerPostID: postID,
		ContentType: media.DetectContentType(payload),
	}
	if dims, err := media.ProbeImage(payload); err == nil {
		rec.Width, rec.Height = dims.Width, dims.Height
	} else {
		log.Debug("Could not read dimensions of %s: %v", originalURL, err)
	}

	inserted, err := c.store.Put(ctx, rec)
	if err != nil {
		return populated{}, fmt.Errorf("store %s: %w", originalURL, err)
	}
	if !inserted {
		// Another writer stored this URL first; its record wins.
		if existing, getErr := c.store.Get(ctx, originalURL); getErr == nil {
			log.Debug("Record for %s already existed (%s)", originalURL, existing.ID)
			return populated{payload: existing.Payload, contentType: existing.ContentType}, nil
		}
	}

	log.Info("Cached %s %s for post %s: %d bytes in %v", kind, originalURL, postID, len(payload), time.Since(start))
	return populated{payload: rec.Payload, contentType: rec.ContentType}, nil
}

// downgradeVideo replaces a video payload with a still frame and checks the
// result really is an image.
func (c *Cache) downgradeVideo(ctx context.Context, video []byte) ([]byte, error) {
	if c.extractor == nil {
		return nil, fmt.Errorf("%w: no frame extractor configured", thumbnail.ErrExtractionFailed)
	}

	exCtx, cancel := context.WithTimeout(ctx, c.cfg.ExtractTimeout)
	defer cancel()

	frame, err := c.extractor.ExtractFrame(exCtx, video, c.cfg.Frame)
	if err != nil {
		return nil, err
	}
	if !media.IsImagePayload(frame) {
		return nil, fmt.Errorf("%w: extractor returned %s", thumbnail.ErrExtractionFailed, media.DetectContentType(frame))
	}
	return frame, nil
}

// newID builds "{postID}_{millis}". Two ids minted in the same millisecond
// get a numeric suffix so the id never depends on the URL uniqueness check.
func (c *Cache) newID(postID string) string {
	stamp := c.now().UnixMilli()

	c.idMu.Lock()
	defer c.idMu.Unlock()

	id := postID + "_" + strconv.FormatInt(stamp, 10)
	if stamp == c.lastStamp {
		c.stampSeq++
		return id + "-" + strconv.Itoa(c.stampSeq)
	}
	c.lastStamp = stamp
	c.stampSeq = 0
	return id
}

func (c *Cache) mint(payload []byte, contentType string) string {
	if contentType == "" {
		contentType = media.DetectContentType(payload)
	}
	return c.handles.Mint(payload, contentType)
}

// PurgeExpired deletes records older than maxAge (the configured default
// when maxAge <= 0). Failures are logged, not returned; the count is
// informational.
func (c *Cache) PurgeExpired(ctx context.Context, maxAge time.Duration) int64 {
	if maxAge <= 0 {
		maxAge = c.cfg.MaxAge
	}
	threshold := c.now().Add(-maxAge).UnixMilli()

	deleted, err := c.store.DeleteOlderThan(ctx, threshold)
	if err != nil {
		log.Warn("Purge of records older than %v failed: %v", maxAge, err)
		return 0
	}

	metrics.CachePurgeLastTimestamp.Set(float64(c.now().Unix()))
	if deleted > 0 {
		log.Info("Purged %d records older than %v", deleted, maxAge)
	} else {
		log.Debug("Purge found no records older than %v", maxAge)
	}
	return deleted
}

// GetStatistics sums the stored records without loading payloads. Any
// store error yields the zero value.
func (c *Cache) GetStatistics(ctx context.Context) Statistics {
	summaries, err := c.store.Summarize(ctx)
	if err != nil {
		log.Warn("Statistics unavailable: %v", err)
		return Statistics{}
	}

	var stats Statistics
	for _, ks := range summaries {
		stats.TotalItems += ks.Count
		stats.TotalSizeBytes += ks.Bytes
		switch ks.Kind {
		case media.KindImage:
			stats.Images += ks.Count
		case media.KindVideo:
			stats.Videos += ks.Count
		}
	}
	return stats
}

// Stats implements metrics.StatsProvider.
func (c *Cache) Stats(ctx context.Context) metrics.Stats {
	s := c.GetStatistics(ctx)
	return metrics.Stats{
		TotalItems:     s.TotalItems,
		TotalSizeBytes: s.TotalSizeBytes,
		Images:         s.Images,
		Videos:         s.Videos,
	}
}
