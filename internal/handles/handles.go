package handles

import (
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"media-cache/internal/metrics"

	"github.com/google/uuid"
)

// PathPrefix is the URL path under which handles are served.
const PathPrefix = "/blob/"

// Blob is the content a handle resolves to.
type Blob struct {
	Payload     []byte
	ContentType string
	MintedAt    time.Time
}

// Config configures a Registry.
type Config struct {
	// BaseURL is prepended to minted handles, e.g. "http://127.0.0.1:8080".
	BaseURL string
	// TTL revokes handles automatically after this long; 0 keeps them
	// until revoked.
	TTL time.Duration
	// MaxEntries bounds the registry; the oldest handle is revoked when a
	// new one would exceed it. 0 means unbounded.
	MaxEntries int
}

// Registry mints process-local, revocable handles for payload bytes. Handles
// do not survive a restart and are never persisted.
type Registry struct {
	mu      sync.RWMutex
	baseURL string
	ttl     time.Duration
	max     int
	entries map[string]Blob
	now     func() time.Time
}

// New creates an empty Registry.
func New(cfg Config) *Registry {
	return &Registry{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		ttl:     cfg.TTL,
		max:     cfg.MaxEntries,
		entries: make(map[string]Blob),
		now:     time.Now,
	}
}

// Mint registers payload and returns a fresh handle for it. Every call
// returns a new handle, even for identical bytes.
func (r *Registry) Mint(payload []byte, contentType string) string {
	token := uuid.NewString()

	r.mu.Lock()
	if r.max > 0 && len(r.entries) >= r.max {
		r.evictOldestLocked()
	}
	r.entries[token] = Blob{Payload: payload, ContentType: contentType, MintedAt: r.now()}
	n := len(r.entries)
	r.mu.Unlock()

	metrics.HandlesActive.Set(float64(n))
	return r.baseURL + PathPrefix + token
}

// Resolve returns the blob for a handle or bare token. Expired and revoked
// handles do not resolve.
func (r *Registry) Resolve(handle string) (Blob, bool) {
	token := Token(handle)

	r.mu.RLock()
	blob, ok := r.entries[token]
	r.mu.RUnlock()

	if !ok {
		return Blob{}, false
	}
	if r.expired(blob) {
		r.Revoke(token)
		return Blob{}, false
	}
	return blob, true
}

// Revoke invalidates a handle. It reports whether the handle was live.
func (r *Registry) Revoke(handle string) bool {
	token := Token(handle)

	r.mu.Lock()
	_, ok := r.entries[token]
	delete(r.entries, token)
	n := len(r.entries)
	r.mu.Unlock()

	metrics.HandlesActive.Set(float64(n))
	return ok
}

// Sweep revokes expired handles and returns how many were removed.
func (r *Registry) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}

	r.mu.Lock()
	removed := 0
	for token, blob := range r.entries {
		if r.expired(blob) {
			delete(r.entries, token)
			removed++
		}
	}
	n := len(r.entries)
	r.mu.Unlock()

	metrics.HandlesActive.Set(float64(n))
	return removed
}

// Shed revokes the oldest fraction (0-1] of live handles and returns how
// many were removed. At least one handle is removed when any exist.
func (r *Registry) Shed(fraction float64) int {
	if fraction <= 0 {
		return 0
	}
	if fraction > 1 {
		fraction = 1
	}

	r.mu.Lock()
	tokens := make([]string, 0, len(r.entries))
	for token := range r.entries {
		tokens = append(tokens, token)
	}
	sort.Slice(tokens, func(i, j int) bool {
		return r.entries[tokens[i]].MintedAt.Before(r.entries[tokens[j]].MintedAt)
	})

	n := int(math.Ceil(float64(len(tokens)) * fraction))
	for _, token := range tokens[:n] {
		delete(r.entries, token)
	}
	remaining := len(r.entries)
	r.mu.Unlock()

	metrics.HandlesActive.Set(float64(remaining))
	return n
}

// Len returns the number of registered handles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *Registry) expired(b Blob) bool {
	return r.ttl > 0 && r.now().Sub(b.MintedAt) >= r.ttl
}

// evictOldestLocked must be called with r.mu held.
func (r *Registry) evictOldestLocked() {
	var oldestToken string
	var oldest time.Time
	for token, blob := range r.entries {
		if oldestToken == "" || blob.MintedAt.Before(oldest) {
			oldestToken, oldest = token, blob.MintedAt
		}
	}
	delete(r.entries, oldestToken)
}

// Token extracts the token from a handle URL. A bare token is returned as is.
func Token(handle string) string {
	if i := strings.LastIndex(handle, PathPrefix); i >= 0 {
		return handle[i+len(PathPrefix):]
	}
	return handle
}

// IsHandle reports whether s looks like a handle minted under PathPrefix.
func IsHandle(s string) bool {
	token := Token(s)
	if token == s {
		return false
	}
	_, err := uuid.Parse(token)
	return err == nil
}
