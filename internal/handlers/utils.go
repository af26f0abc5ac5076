package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"media-cache/internal/fetcher"
	"media-cache/internal/logging"
	"media-cache/internal/store"
	"media-cache/internal/thumbnail"
)

// writeJSON encodes v as JSON to the response writer.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONError writes an error response as JSON with the given status code.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, map[string]string{"error": message})
}

// writeJSONStatus writes a simple status response as JSON.
func writeJSONStatus(w http.ResponseWriter, status string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, map[string]string{"status": status})
}

// ErrorResponse is the body of a failed cache operation.
type ErrorResponse struct {
	Error  string `json:"error"`
	Code   string `json:"code"`
	Status int    `json:"upstreamStatus,omitempty"`
}

// classifyError maps the cache error taxonomy onto an HTTP status and a
// stable machine-readable code.
func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, fetcher.ErrInvalidURL):
		return http.StatusBadRequest, "invalid_url"
	case errors.Is(err, fetcher.ErrFetchTimeout):
		return http.StatusGatewayTimeout, "fetch_timeout"
	case errors.Is(err, fetcher.ErrContentTypeMismatch):
		return http.StatusUnsupportedMediaType, "content_type_mismatch"
	case errors.Is(err, fetcher.ErrEmptyPayload):
		return http.StatusUnprocessableEntity, "empty_payload"
	case errors.Is(err, thumbnail.ErrExtractionFailed):
		return http.StatusUnprocessableEntity, "thumbnail_extraction_failed"
	case errors.Is(err, fetcher.ErrFetchFailed):
		return http.StatusBadGateway, "fetch_failed"
	case errors.Is(err, store.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "store_unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// errorMessages are the client-facing texts for each error code. The
// underlying error names upstream URLs and is only logged.
var errorMessages = map[string]string{
	"invalid_url":                 "invalid media URL",
	"fetch_timeout":               "upstream fetch timed out",
	"content_type_mismatch":       "upstream content type does not match the media kind",
	"empty_payload":               "upstream returned an empty payload",
	"thumbnail_extraction_failed": "could not extract a video frame",
	"fetch_failed":                "upstream fetch failed",
	"store_unavailable":           "cache store unavailable",
	"internal":                    "internal error",
}

// writeCacheError writes err using classifyError. Only the code and the
// upstream status reach the client.
func writeCacheError(w http.ResponseWriter, err error) {
	status, code := classifyError(err)
	if status >= http.StatusInternalServerError {
		logging.Error("cache request failed: %v", err)
	} else {
		logging.Debug("cache request rejected: %v", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	writeJSON(w, ErrorResponse{
		Error:  errorMessages[code],
		Code:   code,
		Status: fetcher.StatusCode(err),
	})
}
