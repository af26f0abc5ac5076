package handlers

import (
	"net/http"

	"media-cache/internal/retrieval"
)

// Resolve drives a resolver for one item to completion and returns the
// snapshot a rendering surface would display. It always answers 200; the
// outcome is carried by the snapshot flags.
func (h *Handlers) Resolve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	originalURL := q.Get("url")

	kind, ok := requestKind(q.Get("kind"), originalURL)
	if !ok && originalURL != "" {
		writeJSONError(w, "kind must be image or video", http.StatusBadRequest)
		return
	}

	hook := retrieval.New(h.cache, q.Get("postId"), originalURL, kind, retrieval.Options{
		FallbackURL: h.opts.FallbackURL,
		AutoCache:   h.opts.AutoCache,
		RetryDelay:  h.opts.RetryDelay,
	})
	snapshot := hook.Mount(r.Context())

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, snapshot)
}
