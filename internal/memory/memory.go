package memory

import (
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"media-cache/internal/logging"
	"media-cache/internal/metrics"
)

// Config controls the pressure monitor.
type Config struct {
	// LimitBytes overrides GOMEMLIMIT as the reference limit. 0 uses
	// GOMEMLIMIT; with neither set the monitor does nothing.
	LimitBytes int64

	// HighWaterMark is the usage ratio at which the monitor starts relieving
	// pressure. Relief repeats on every check until usage drops below it.
	HighWaterMark float64

	// ShedFraction is handed to the relief function on each check above the
	// high water mark.
	ShedFraction float64

	CheckInterval time.Duration
}

// DefaultConfig returns the defaults used by main.
func DefaultConfig() Config {
	return Config{
		HighWaterMark: 0.85,
		ShedFraction:  0.25,
		CheckInterval: 5 * time.Second,
	}
}

// ReliefFunc frees memory held by the caller, typically by revoking the
// oldest fraction of live handles. It returns how many items were dropped.
type ReliefFunc func(fraction float64) int

// Monitor samples heap usage and calls a ReliefFunc under pressure.
type Monitor struct {
	cfg      Config
	limit    int64
	relieve  ReliefFunc
	readHeap func() uint64

	mu       sync.RWMutex
	current  uint64
	pressure bool

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewMonitor creates a monitor. relieve may be nil, in which case the
// monitor only reports usage.
func NewMonitor(cfg Config, relieve ReliefFunc) *Monitor {
	d := DefaultConfig()
	if cfg.HighWaterMark <= 0 || cfg.HighWaterMark > 1 {
		cfg.HighWaterMark = d.HighWaterMark
	}
	if cfg.ShedFraction <= 0 || cfg.ShedFraction > 1 {
		cfg.ShedFraction = d.ShedFraction
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = d.CheckInterval
	}

	limit := cfg.LimitBytes
	if limit == 0 {
		if goLimit := debug.SetMemoryLimit(-1); goLimit > 0 && goLimit < 1<<62 {
			limit = goLimit
		}
	}
	if limit == 0 {
		logging.Debug("Memory monitor: no limit configured, pressure relief disabled")
	}

	return &Monitor{
		cfg:      cfg,
		limit:    limit,
		relieve:  relieve,
		readHeap: heapAlloc,
		stopChan: make(chan struct{}),
	}
}

func heapAlloc() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.HeapAlloc
}

// Start begins sampling. It is a no-op without a limit.
func (m *Monitor) Start() {
	if m.limit == 0 {
		return
	}
	go m.loop()
}

// Stop ends sampling. It is safe to call more than once.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.check()
		case <-m.stopChan:
			return
		}
	}
}

func (m *Monitor) check() {
	current := m.readHeap()
	usage := float64(current) / float64(m.limit)
	metrics.MemoryUsageRatio.Set(usage)

	m.mu.Lock()
	m.current = current
	was := m.pressure
	m.pressure = usage >= m.cfg.HighWaterMark
	now := m.pressure
	m.mu.Unlock()

	switch {
	case now && !was:
		logging.Warn("Memory pressure (%.1f%% of limit), shedding handles", usage*100)
	case !now && was:
		logging.Info("Memory recovered (%.1f%% of limit)", usage*100)
	}
	if !now {
		return
	}

	if m.relieve != nil {
		if n := m.relieve(m.cfg.ShedFraction); n > 0 {
			metrics.MemoryReliefTotal.Add(float64(n))
			logging.Debug("Memory relief dropped %d items", n)
		}
	}
	runtime.GC()
}

// UnderPressure reports whether the last sample was above the high water mark.
func (m *Monitor) UnderPressure() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pressure
}

// Usage returns the last sampled usage ratio, or 0 without a limit.
func (m *Monitor) Usage() float64 {
	if m.limit == 0 {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return float64(m.current) / float64(m.limit)
}
