package fetcher

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidURL is returned for anything that is not an absolute http(s) URL.
	ErrInvalidURL = errors.New("invalid media url")

	// ErrFetchTimeout is returned when the request exceeds its timeout.
	ErrFetchTimeout = errors.New("media fetch timed out")

	// ErrFetchFailed covers transport errors and non-2xx responses.
	ErrFetchFailed = errors.New("media fetch failed")

	// ErrContentTypeMismatch is returned when the response is not the expected kind.
	ErrContentTypeMismatch = errors.New("media content type mismatch")

	// ErrEmptyPayload is returned when the response body is empty.
	ErrEmptyPayload = errors.New("media payload is empty")
)

// StatusError is a FetchFailed carrying the HTTP status of the response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v: %s returned status %d", ErrFetchFailed, e.URL, e.StatusCode)
}

// Unwrap makes errors.Is(err, ErrFetchFailed) hold.
func (e *StatusError) Unwrap() error {
	return ErrFetchFailed
}

// StatusCode extracts the HTTP status from a fetch error, or 0 if the
// failure happened before a response arrived.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}
