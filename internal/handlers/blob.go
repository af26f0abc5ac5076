package handlers

import (
	"bytes"
	"net/http"

	"github.com/gorilla/mux"
)

// ServeBlob serves the bytes behind a minted handle.
func (h *Handlers) ServeBlob(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	blob, ok := h.blobs.Resolve(token)
	if !ok {
		http.Error(w, "Handle not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", blob.ContentType)
	w.Header().Set("Cache-Control", "private, no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, "", blob.MintedAt, bytes.NewReader(blob.Payload))
}

// RevokeBlob invalidates a handle. The stored record is untouched.
func (h *Handlers) RevokeBlob(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	if !h.blobs.Revoke(token) {
		writeJSONError(w, "Handle not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
