package retrieval

import (
	"context"
	"sync"
	"time"

	"media-cache/internal/logging"
	"media-cache/internal/media"
	"media-cache/internal/metrics"
)

// MaxAttempts is the number of consecutive failures after which the hook
// stops retrying on its own.
const MaxAttempts = 2

var log = logging.For("retrieval")

// Status is a state of the hook.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusReady
	StatusTransientError
	StatusPermanentError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusTransientError:
		return "transient_error"
	case StatusPermanentError:
		return "permanent_error"
	default:
		return "unknown"
	}
}

// MarshalText renders the status by name in JSON responses.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Orchestrator is the part of the cache the hook drives.
type Orchestrator interface {
	GetCachedMedia(ctx context.Context, originalURL string) (string, error)
	CacheMedia(ctx context.Context, postID, originalURL string, kind media.Kind) (string, error)
}

// Snapshot is what a consumer renders.
type Snapshot struct {
	URL               string `json:"url"`
	IsLoading         bool   `json:"isLoading"`
	HasError          bool   `json:"hasError"`
	HasPermanentError bool   `json:"hasPermanentError"`
	Status            Status `json:"status"`
	Attempts          int    `json:"attempts"`
}

// Options configures a hook.
type Options struct {
	FallbackURL string
	AutoCache   bool

	// RetryDelay is waited before the automatic retry. Zero retries at once.
	RetryDelay time.Duration

	// OnChange, when set, receives every state transition in order.
	OnChange func(Snapshot)
}

// Hook tracks one target. Its methods are safe for concurrent use; the
// internal lock is never held while the orchestrator is called.
type Hook struct {
	orch Orchestrator
	opts Options

	mu       sync.Mutex
	postID   string
	url      string
	kind     media.Kind
	status   Status
	display  string
	attempts int
	lastErr  error
	gen      uint64
}

// New creates an idle hook for the given target. Nothing is loaded until
// Mount is called.
func New(orch Orchestrator, postID, url string, kind media.Kind, opts Options) *Hook {
	return &Hook{
		orch:    orch,
		opts:    opts,
		postID:  postID,
		url:     url,
		kind:    kind,
		display: url,
	}
}

// Mount resolves the current target, including the automatic retry, and
// returns the settled snapshot. A call made while the hook is loading or
// has given up returns the current snapshot without doing anything; only
// ManualCache or SetTarget leave the permanent error state.
func (h *Hook) Mount(ctx context.Context) Snapshot {
	h.mu.Lock()
	if h.status == StatusLoading || h.status == StatusPermanentError {
		s := h.snapshotLocked()
		h.mu.Unlock()
		return s
	}
	h.gen++
	gen := h.gen
	h.attempts = 0
	h.mu.Unlock()

	return h.resolve(ctx, gen, false)
}

// SetTarget switches the hook to a new target and resolves it. Any result
// still in flight for the previous target is discarded.
func (h *Hook) SetTarget(ctx context.Context, postID, url string, kind media.Kind) Snapshot {
	h.mu.Lock()
	h.gen++
	gen := h.gen
	h.postID, h.url, h.kind = postID, url, kind
	h.attempts = 0
	h.lastErr = nil
	h.status = StatusIdle
	h.display = url
	h.mu.Unlock()

	return h.resolve(ctx, gen, false)
}

// ManualCache clears any error state and makes exactly one populate
// attempt. A failure goes straight to PermanentError.
func (h *Hook) ManualCache(ctx context.Context) Snapshot {
	h.mu.Lock()
	if h.status == StatusLoading {
		s := h.snapshotLocked()
		h.mu.Unlock()
		return s
	}
	h.gen++
	gen := h.gen
	h.attempts = 0
	h.lastErr = nil
	h.mu.Unlock()

	return h.resolve(ctx, gen, true)
}

// Snapshot returns the current state.
func (h *Hook) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshotLocked()
}

// LastError returns the error behind the most recent failed attempt, for
// logging and diagnostics only.
func (h *Hook) LastError() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastErr
}

func (h *Hook) resolve(ctx context.Context, gen uint64, manual bool) Snapshot {
	h.mu.Lock()
	postID, url, kind := h.postID, h.url, h.kind
	h.mu.Unlock()

	if url == "" {
		h.transition(gen, func() {
			h.status = StatusReady
			h.display = h.opts.FallbackURL
		})
		return h.Snapshot()
	}

	for {
		if !h.transition(gen, func() { h.status = StatusLoading }) {
			return h.Snapshot()
		}

		handle, err := h.attempt(ctx, postID, url, kind, manual)
		if err == nil {
			h.transition(gen, func() {
				h.status = StatusReady
				h.display = handle
				h.attempts = 0
				h.lastErr = nil
			})
			return h.Snapshot()
		}

		var next Status
		var attempts int
		live := h.transition(gen, func() {
			h.attempts++
			h.lastErr = err
			if manual || h.attempts >= MaxAttempts {
				h.status = StatusPermanentError
				h.display = h.opts.FallbackURL
			} else {
				h.status = StatusTransientError
				h.display = url
			}
			next = h.status
			attempts = h.attempts
		})
		if !live {
			return h.Snapshot()
		}
		if next == StatusPermanentError {
			log.Warn("Giving up on %s after %d attempts: %v", url, attempts, err)
			return h.Snapshot()
		}

		log.Debug("Attempt for %s failed, retrying: %v", url, err)
		if !wait(ctx, h.opts.RetryDelay) {
			return h.Snapshot()
		}
	}
}

// attempt performs one lookup-then-populate. Manual attempts skip straight to
// populate; CacheMedia re-checks the store itself.
func (h *Hook) attempt(ctx context.Context, postID, url string, kind media.Kind, manual bool) (string, error) {
	if !manual {
		handle, err := h.orch.GetCachedMedia(ctx, url)
		if err != nil {
			return "", err
		}
		if handle != "" {
			return handle, nil
		}
		if !h.opts.AutoCache {
			return url, nil
		}
	}
	return h.orch.CacheMedia(ctx, postID, url, kind)
}

// transition applies mutate if gen is still current and notifies the
// observer. It reports false when the target changed underneath.
func (h *Hook) transition(gen uint64, mutate func()) bool {
	h.mu.Lock()
	if gen != h.gen {
		h.mu.Unlock()
		return false
	}
	mutate()
	s := h.snapshotLocked()
	h.mu.Unlock()

	metrics.RetrievalTransitionsTotal.WithLabelValues(s.Status.String()).Inc()
	if h.opts.OnChange != nil {
		h.opts.OnChange(s)
	}
	return true
}

func (h *Hook) snapshotLocked() Snapshot {
	return Snapshot{
		URL:               h.display,
		IsLoading:         h.status == StatusLoading,
		HasError:          h.status == StatusTransientError || h.status == StatusPermanentError,
		HasPermanentError: h.status == StatusPermanentError,
		Status:            h.status,
		Attempts:          h.attempts,
	}
}

func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
