package handlers

import (
	"net/http"
	"runtime"
	"time"

	"media-cache/internal/metrics"
	"media-cache/internal/startup"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Ready   bool   `json:"ready"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
	Error   string `json:"error,omitempty"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`

	// Cache summary
	TotalItems     int   `json:"totalItems"`
	TotalSizeBytes int64 `json:"totalSizeBytes"`
	HandlesActive  int   `json:"handlesActive"`
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:       statusHealthy,
		Ready:        true,
		Version:      startup.Version,
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	if err := h.store.Ping(r.Context()); err != nil {
		response.Status = statusDegraded
		response.Ready = false
		response.Error = err.Error()
	} else {
		stats := h.cache.GetStatistics(r.Context())
		response.TotalItems = stats.TotalItems
		response.TotalSizeBytes = stats.TotalSizeBytes
	}
	response.HandlesActive = h.blobs.Len()

	w.Header().Set("Content-Type", "application/json")

	// Without the store nothing can be served
	if !response.Ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	writeJSON(w, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 only when the store answers
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		writeJSONStatus(w, "not_ready", http.StatusServiceUnavailable)
		return
	}
	writeJSONStatus(w, "ready", http.StatusOK)
}

// VersionResponse is the build information plus process uptime
type VersionResponse struct {
	startup.BuildInfo
	Uptime string `json:"uptime"`
}

// GetVersion returns the application version and build information
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, VersionResponse{
		BuildInfo: startup.GetBuildInfo(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	})
}

// MetricsHandler returns the Prometheus metrics handler. The live handle
// gauge is refreshed on every scrape so TTL expiry is reflected.
func (h *Handlers) MetricsHandler() http.Handler {
	next := promhttp.Handler()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.HandlesActive.Set(float64(h.blobs.Len()))
		next.ServeHTTP(w, r)
	})
}
