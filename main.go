package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"media-cache/internal/cache"
	"media-cache/internal/fetcher"
	"media-cache/internal/handlers"
	"media-cache/internal/handles"
	"media-cache/internal/logging"
	"media-cache/internal/memory"
	"media-cache/internal/metrics"
	"media-cache/internal/middleware"
	"media-cache/internal/startup"
	"media-cache/internal/store"
	"media-cache/internal/thumbnail"

	"github.com/gorilla/mux"
)

func main() {
	startTime := time.Now()

	// Set GOMEMLIMIT before anything large is allocated
	memory.ConfigureFromEnv()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}
	dirLock, err := startup.LockCacheDir(config.CacheDir)
	if err != nil {
		startup.LogFatal("Cache directory error: %v", err)
	}
	metrics.AppInfo.WithLabelValues(startup.Version, startup.Commit, startup.GoVersion).Set(1)

	// Initialize store
	storeStart := time.Now()
	st, err := store.Open(context.Background(), config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to open store: %v", err)
	}
	startup.LogStoreInit(config.DatabasePath, time.Since(storeStart))

	// Initialize frame extractor
	vipsEnabled := false
	if config.UseVips {
		if err := thumbnail.InitVips(); err != nil {
			logging.Warn("libvips unavailable, using pure Go frame encoding: %v", err)
		} else {
			vipsEnabled = true
		}
	}
	extractor := thumbnail.New(thumbnail.Config{TempDir: config.TempDir, UseVips: vipsEnabled})
	startup.LogExtractorInit(extractor.CheckTools(), vipsEnabled)

	registry := handles.New(handles.Config{
		BaseURL:    config.PublicBaseURL,
		TTL:        config.HandleTTL,
		MaxEntries: config.HandleMaxEntries,
	})

	c := cache.New(st, fetcher.New(fetcher.Config{Timeout: config.FetchTimeout}), extractor, registry, cache.Config{
		FallbackURL:    config.FallbackURL,
		AutoCache:      config.AutoCache,
		FetchTimeout:   config.FetchTimeout,
		ExtractTimeout: config.ExtractTimeout,
		MaxAge:         config.MaxAge,
	})

	collector := metrics.NewCollector(c, config.StatsInterval)
	collector.Start()

	// Minted handles hold payloads in memory; shed the oldest under pressure
	memMonitor := memory.NewMonitor(memory.DefaultConfig(), registry.Shed)
	memMonitor.Start()

	maint := startMaintenance(c, registry, config.PurgeInterval)

	h := handlers.New(c, registry, st, handlers.Options{
		FallbackURL: config.FallbackURL,
		AutoCache:   config.AutoCache,
		RetryDelay:  config.RetryDelay,
	})

	router := setupRouter(h, config.MetricsEnabled)
	startup.LogHTTPRoutes(router, config.LogRequests)

	var handler http.Handler = router
	if config.LogRequests {
		handler = middleware.Logger(middleware.DefaultLoggingConfig())(handler)
	}
	handler = middleware.Compression(middleware.DefaultCompressionConfig())(handler)

	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: config.FetchTimeout + config.ExtractTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		handleShutdown(srv, collector, memMonitor, maint, st, dirLock, vipsEnabled)
	}()

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		PublicBaseURL:   config.PublicBaseURL,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
	<-done
}

func setupRouter(h *handlers.Handlers, metricsEnabled bool) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	if metricsEnabled {
		r.Handle("/metrics", h.MetricsHandler()).Methods("GET")
	}

	// Minted handles
	r.HandleFunc(handles.PathPrefix+"{token}", h.ServeBlob).Methods("GET", "HEAD").Name("blob")
	r.HandleFunc(handles.PathPrefix+"{token}", h.RevokeBlob).Methods("DELETE")

	// Cache API, registered on the root router so a method mismatch is a 405
	r.HandleFunc("/api/cache", h.LookupMedia).Methods("GET")
	r.HandleFunc("/api/cache", h.CacheMedia).Methods("POST")
	r.HandleFunc("/api/cache/stats", h.GetStats).Methods("GET")
	r.HandleFunc("/api/cache/purge", h.PurgeCache).Methods("POST")
	r.HandleFunc("/api/resolve", h.Resolve).Methods("GET")

	return r
}

// maintenance runs the periodic purge sweep and handle expiry.
type maintenance struct {
	stop chan struct{}
	wg   sync.WaitGroup
}

type purger interface {
	PurgeExpired(ctx context.Context, maxAge time.Duration) int64
}

type sweeper interface {
	Sweep() int
}

// startMaintenance purges once immediately and then every interval.
func startMaintenance(p purger, s sweeper, interval time.Duration) *maintenance {
	m := &maintenance{stop: make(chan struct{})}
	if interval <= 0 {
		interval = time.Hour
	}

	run := func() {
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		defer cancel()
		p.PurgeExpired(ctx, 0)
		if n := s.Sweep(); n > 0 {
			logging.Debug("Revoked %d expired handles", n)
		}
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		run()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				run()
			case <-m.stop:
				return
			}
		}
	}()
	return m
}

// Stop ends the maintenance loop and waits for a running sweep to finish.
func (m *maintenance) Stop() {
	close(m.stop)
	m.wg.Wait()
}

func handleShutdown(srv *http.Server, collector *metrics.Collector, memMonitor *memory.Monitor, maint *maintenance, st *store.Store, dirLock *startup.DirLock, vipsEnabled bool) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownStep("Stopping maintenance")
	maint.Stop()
	startup.LogShutdownStepComplete("Maintenance stopped")

	startup.LogShutdownStep("Stopping monitors")
	collector.Stop()
	memMonitor.Stop()
	startup.LogShutdownStepComplete("Monitors stopped")

	if vipsEnabled {
		thumbnail.ShutdownVips()
		startup.LogShutdownStepComplete("libvips shut down")
	}

	startup.LogShutdownStep("Closing store")
	if err := st.Close(); err != nil {
		logging.Warn("Store close error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Store closed")
	}
	if err := dirLock.Release(); err != nil {
		logging.Warn("Failed to release cache directory lock: %v", err)
	}

	startup.LogShutdownComplete()
}
