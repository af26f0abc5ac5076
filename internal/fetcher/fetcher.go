package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"media-cache/internal/logging"
	"media-cache/internal/media"
	"media-cache/internal/metrics"
)

const (
	// DefaultTimeout bounds one fetch including reading the body.
	DefaultTimeout = 15 * time.Second

	// DefaultMaxBytes caps the size of a downloaded payload.
	DefaultMaxBytes int64 = 100 << 20

	maxRedirects = 10
)

var log = logging.For("fetcher")

// Config configures a Fetcher. Zero values select the defaults.
type Config struct {
	Timeout   time.Duration
	MaxBytes  int64
	UserAgent string

	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// Fetcher downloads remote media. It never sends cookies or credentials and
// performs no retries.
type Fetcher struct {
	client    *http.Client
	timeout   time.Duration
	maxBytes  int64
	userAgent string
}

// New creates a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "media-cache/1.0"
	}

	return &Fetcher{
		client: &http.Client{
			// No Jar: cookies are never stored or sent.
			Transport:     cfg.Transport,
			CheckRedirect: stripCredentialsOnRedirect,
		},
		timeout:   cfg.Timeout,
		maxBytes:  cfg.MaxBytes,
		userAgent: cfg.UserAgent,
	}
}

// stripCredentialsOnRedirect drops credential headers on every hop.
func stripCredentialsOnRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	req.Header.Del("Authorization")
	req.Header.Del("Cookie")
	req.Header.Del("Proxy-Authorization")
	return nil
}

// ValidateURL checks that raw is an absolute http or https URL with a host.
func ValidateURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty url", ErrInvalidURL)
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: %q is not an absolute http(s) url", ErrInvalidURL, raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: %q has no host", ErrInvalidURL, raw)
	}
	if u.User != nil {
		return nil, fmt.Errorf("%w: %q embeds credentials", ErrInvalidURL, raw)
	}
	return u, nil
}

// Fetch downloads rawURL and checks that the response is a non-empty payload
// of the expected kind. A timeout <= 0 uses the configured default.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, expected media.Kind, timeout time.Duration) (payload []byte, err error) {
	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = outcome(err)
		}
		metrics.FetchTotal.WithLabelValues(expected.String(), status).Inc()
		metrics.FetchDuration.WithLabelValues(expected.String()).Observe(time.Since(start).Seconds())
	}()

	u, err := ValidateURL(rawURL)
	if err != nil {
		return nil, err
	}
	if !expected.Valid() {
		return nil, fmt.Errorf("%w: unknown expected kind %q", ErrContentTypeMismatch, expected)
	}

	if timeout <= 0 {
		timeout = f.timeout
	}
	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", expected.ContentTypePrefix()+"*")

	log.Debug("GET %s (expect %s, timeout %v)", u.Redacted(), expected, timeout)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, f.classify(ctx, fetchCtx, rawURL, err)
	}
	defer func() {
		// Drain a little so the connection can be reused
		_, _ = io.CopyN(io.Discard, resp.Body, 4096)
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Debug("failed to close response body for %s: %v", rawURL, closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	declared := resp.Header.Get("Content-Type")
	declaredKind, declaredOK := media.KindForContentType(declared)
	if declaredOK && declaredKind != expected {
		return nil, fmt.Errorf("%w: %s declared %q, expected %s", ErrContentTypeMismatch, rawURL, declared, expected.ContentTypePrefix()+"*")
	}
	if !declaredOK && !isOpaqueContentType(declared) {
		return nil, fmt.Errorf("%w: %s declared %q, expected %s", ErrContentTypeMismatch, rawURL, declared, expected.ContentTypePrefix()+"*")
	}

	payload, err = io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, f.classify(ctx, fetchCtx, rawURL, err)
	}
	if int64(len(payload)) > f.maxBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrFetchFailed, rawURL, f.maxBytes)
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyPayload, rawURL)
	}

	if !declaredOK {
		sniffed := media.DetectContentType(payload)
		if kind, ok := media.KindForContentType(sniffed); !ok || kind != expected {
			return nil, fmt.Errorf("%w: %s sniffed as %q, expected %s", ErrContentTypeMismatch, rawURL, sniffed, expected.ContentTypePrefix()+"*")
		}
		log.Debug("Sniffed %s as %s", u.Redacted(), sniffed)
	}

	metrics.FetchBytes.WithLabelValues(expected.String()).Add(float64(len(payload)))
	log.Debug("Fetched %s: %d bytes in %v", u.Redacted(), len(payload), time.Since(start))
	return payload, nil
}

// classify maps a transport error to FetchTimeout or FetchFailed. A deadline
// hit on our own context is a timeout; cancellation by the caller is not.
func (f *Fetcher) classify(parent, fetchCtx context.Context, rawURL string, err error) error {
	if parent.Err() == nil && errors.Is(fetchCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w", ErrFetchTimeout, rawURL, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrFetchFailed, rawURL, err)
}

// isOpaqueContentType reports whether a declared type gives no kind
// information, in which case the payload is sniffed instead.
func isOpaqueContentType(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch ct {
	case "", "application/octet-stream", "binary/octet-stream":
		return true
	}
	return false
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrInvalidURL):
		return "invalid_url"
	case errors.Is(err, ErrFetchTimeout):
		return "timeout"
	case errors.Is(err, ErrContentTypeMismatch):
		return "content_type_mismatch"
	case errors.Is(err, ErrEmptyPayload):
		return "empty"
	default:
		return "error"
	}
}
