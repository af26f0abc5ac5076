package metrics

import (
	"context"
	"time"

	"media-cache/internal/logging"
)

// Stats is the aggregate view the collector publishes as gauges.
type Stats struct {
	TotalItems     int
	TotalSizeBytes int64
	Images         int
	Videos         int
}

// StatsProvider supplies cache statistics to the collector.
type StatsProvider interface {
	Stats(ctx context.Context) Stats
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.interval)
	defer cancel()

	stats := c.statsProvider.Stats(ctx)

	CacheItems.WithLabelValues("image").Set(float64(stats.Images))
	CacheItems.WithLabelValues("video").Set(float64(stats.Videos))
	CacheSizeBytes.Set(float64(stats.TotalSizeBytes))

	logging.Debug("Metrics collected: items=%d, bytes=%d, images=%d, videos=%d",
		stats.TotalItems, stats.TotalSizeBytes, stats.Images, stats.Videos)
}
