package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"media-cache/internal/fetcher"
	"media-cache/internal/logging"
	"media-cache/internal/media"
)

const (
	maxRequestBody = 64 << 10
	purgeTimeout   = 5 * time.Minute
)

// LookupResponse is returned by GET /api/cache.
type LookupResponse struct {
	URL    string `json:"url"`
	Cached bool   `json:"cached"`
}

// CacheRequest is the body of POST /api/cache.
type CacheRequest struct {
	PostID string `json:"postId"`
	URL    string `json:"url"`
	Kind   string `json:"kind"`
}

// StatsResponse is returned by GET /api/cache/stats.
type StatsResponse struct {
	TotalItems     int   `json:"totalItems"`
	TotalSizeBytes int64 `json:"totalSizeBytes"`
	Images         int   `json:"images"`
	Videos         int   `json:"videos"`
	HandlesActive  int   `json:"handlesActive"`
}

// LookupMedia answers whether a URL is cached. It never fetches.
func (h *Handlers) LookupMedia(w http.ResponseWriter, r *http.Request) {
	originalURL := r.URL.Query().Get("url")
	if originalURL == "" {
		writeJSONError(w, "url parameter required", http.StatusBadRequest)
		return
	}

	handle, err := h.cache.GetCachedMedia(r.Context(), originalURL)
	if err != nil {
		writeCacheError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, LookupResponse{URL: handle, Cached: handle != ""})
}

// CacheMedia populates the cache for one item and returns a handle.
func (h *Handlers) CacheMedia(w http.ResponseWriter, r *http.Request) {
	var req CacheRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if _, err := fetcher.ValidateURL(req.URL); err != nil {
		writeCacheError(w, err)
		return
	}

	kind, ok := requestKind(req.Kind, req.URL)
	if !ok {
		writeJSONError(w, "kind must be image or video", http.StatusBadRequest)
		return
	}

	handle, err := h.cache.CacheMedia(r.Context(), req.PostID, req.URL, kind)
	if err != nil {
		writeCacheError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, LookupResponse{URL: handle, Cached: true})
}

// GetStats returns store statistics and the number of live handles.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := h.cache.GetStatistics(r.Context())

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, StatsResponse{
		TotalItems:     stats.TotalItems,
		TotalSizeBytes: stats.TotalSizeBytes,
		Images:         stats.Images,
		Videos:         stats.Videos,
		HandlesActive:  h.blobs.Len(),
	})
}

// PurgeCache starts an expiry sweep in the background. maxAge is optional.
func (h *Handlers) PurgeCache(w http.ResponseWriter, r *http.Request) {
	var maxAge time.Duration
	if raw := r.URL.Query().Get("maxAge"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			writeJSONError(w, "maxAge must be a positive duration", http.StatusBadRequest)
			return
		}
		maxAge = d
	}

	if !h.purging.CompareAndSwap(false, true) {
		w.Header().Set("Content-Type", "application/json")
		writeJSON(w, map[string]string{
			"status":  "already_running",
			"message": "A purge is already in progress",
		})
		return
	}

	go func() {
		defer h.purging.Store(false)
		ctx, cancel := context.WithTimeout(context.Background(), purgeTimeout)
		defer cancel()
		deleted := h.cache.PurgeExpired(ctx, maxAge)
		logging.Info("Manual purge removed %d records", deleted)
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]string{
		"status":  "started",
		"message": "Purge started",
	})
}

// requestKind parses an explicit kind or guesses one from the URL.
func requestKind(raw, originalURL string) (media.Kind, bool) {
	if strings.TrimSpace(raw) != "" {
		kind, err := media.ParseKind(raw)
		return kind, err == nil
	}
	return media.GuessKind(originalURL)
}
