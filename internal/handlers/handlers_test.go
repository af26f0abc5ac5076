package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"media-cache/internal/cache"
	"media-cache/internal/fetcher"
	"media-cache/internal/handles"
	"media-cache/internal/media"
	"media-cache/internal/retrieval"
	"media-cache/internal/store"

	"github.com/gorilla/mux"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeCache struct {
	mu        sync.Mutex
	lookupFn  func(url string) (string, error)
	cacheFn   func(postID, url string, kind media.Kind) (string, error)
	stats     cache.Statistics
	purgedAge chan time.Duration
	kinds     []media.Kind
}

func (f *fakeCache) GetCachedMedia(_ context.Context, url string) (string, error) {
	if f.lookupFn == nil {
		return "", nil
	}
	return f.lookupFn(url)
}

func (f *fakeCache) CacheMedia(_ context.Context, postID, url string, kind media.Kind) (string, error) {
	f.mu.Lock()
	f.kinds = append(f.kinds, kind)
	f.mu.Unlock()
	return f.cacheFn(postID, url, kind)
}

func (f *fakeCache) PurgeExpired(_ context.Context, maxAge time.Duration) int64 {
	if f.purgedAge != nil {
		f.purgedAge <- maxAge
	}
	return 1
}

func (f *fakeCache) GetStatistics(context.Context) cache.Statistics {
	return f.stats
}

type fakePinger struct {
	err error
}

func (p fakePinger) Ping(context.Context) error { return p.err }

func newTestHandlers(c CacheService, reg *handles.Registry) *Handlers {
	if reg == nil {
		reg = handles.New(handles.Config{BaseURL: "http://local"})
	}
	return New(c, reg, fakePinger{}, Options{FallbackURL: "https://fallback/150", AutoCache: true})
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
	}
}

// =============================================================================
// Blob Tests
// =============================================================================

func TestServeBlob(t *testing.T) {
	reg := handles.New(handles.Config{BaseURL: "http://local"})
	handle := reg.Mint([]byte("jpeg-bytes"), "image/jpeg")
	h := newTestHandlers(&fakeCache{}, reg)

	req := httptest.NewRequest(http.MethodGet, "/blob/"+handles.Token(handle), http.NoBody)
	req = mux.SetURLVars(req, map[string]string{"token": handles.Token(handle)})
	w := httptest.NewRecorder()

	h.ServeBlob(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %q, want image/jpeg", ct)
	}
	if w.Body.String() != "jpeg-bytes" {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestServeBlobUnknownAndRevoked(t *testing.T) {
	reg := handles.New(handles.Config{BaseURL: "http://local"})
	handle := reg.Mint([]byte("x"), "image/png")
	h := newTestHandlers(&fakeCache{}, reg)
	token := handles.Token(handle)

	del := mux.SetURLVars(httptest.NewRequest(http.MethodDelete, "/blob/"+token, http.NoBody), map[string]string{"token": token})
	w := httptest.NewRecorder()
	h.RevokeBlob(w, del)
	if w.Code != http.StatusNoContent {
		t.Fatalf("RevokeBlob status = %d, want 204", w.Code)
	}

	for _, tok := range []string{token, "does-not-exist"} {
		req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/blob/"+tok, http.NoBody), map[string]string{"token": tok})
		w := httptest.NewRecorder()
		h.ServeBlob(w, req)
		if w.Code != http.StatusNotFound {
			t.Errorf("ServeBlob(%s) status = %d, want 404", tok, w.Code)
		}
	}

	w = httptest.NewRecorder()
	h.RevokeBlob(w, del)
	if w.Code != http.StatusNotFound {
		t.Errorf("second RevokeBlob status = %d, want 404", w.Code)
	}
}

// =============================================================================
// Cache API Tests
// =============================================================================

func TestLookupMedia(t *testing.T) {
	c := &fakeCache{lookupFn: func(u string) (string, error) {
		switch u {
		case "https://x/hit.png":
			return "http://local/blob/abc", nil
		case "https://x/broken.png":
			return "", fmt.Errorf("get: %w", store.ErrStoreUnavailable)
		}
		return "", nil
	}}
	h := newTestHandlers(c, nil)

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantURL    string
		wantCached bool
	}{
		{"hit", "https://x/hit.png", http.StatusOK, "http://local/blob/abc", true},
		{"miss", "https://x/miss.png", http.StatusOK, "", false},
		{"store down", "https://x/broken.png", http.StatusServiceUnavailable, "", false},
		{"missing url", "", http.StatusBadRequest, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/api/cache"
			if tt.query != "" {
				target += "?url=" + url.QueryEscape(tt.query)
			}
			w := httptest.NewRecorder()
			h.LookupMedia(w, httptest.NewRequest(http.MethodGet, target, http.NoBody))

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if w.Code != http.StatusOK {
				return
			}
			var resp LookupResponse
			decodeBody(t, w, &resp)
			if resp.URL != tt.wantURL || resp.Cached != tt.wantCached {
				t.Errorf("response = %+v", resp)
			}
		})
	}
}

func TestCacheMediaEndpoint(t *testing.T) {
	c := &fakeCache{cacheFn: func(postID, u string, kind media.Kind) (string, error) {
		return "http://local/blob/" + postID, nil
	}}
	h := newTestHandlers(c, nil)

	body := `{"postId":"p1","url":"https://x/img.png","kind":"image"}`
	w := httptest.NewRecorder()
	h.CacheMedia(w, httptest.NewRequest(http.MethodPost, "/api/cache", strings.NewReader(body)))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp LookupResponse
	decodeBody(t, w, &resp)
	if resp.URL != "http://local/blob/p1" || !resp.Cached {
		t.Errorf("response = %+v", resp)
	}
}

func TestCacheMediaEndpointGuessesKind(t *testing.T) {
	c := &fakeCache{cacheFn: func(string, string, media.Kind) (string, error) { return "h", nil }}
	h := newTestHandlers(c, nil)

	body := `{"postId":"p2","url":"https://x/clip.mp4"}`
	w := httptest.NewRecorder()
	h.CacheMedia(w, httptest.NewRequest(http.MethodPost, "/api/cache", strings.NewReader(body)))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if len(c.kinds) != 1 || c.kinds[0] != media.KindVideo {
		t.Errorf("kinds passed = %v, want [video]", c.kinds)
	}
}

func TestCacheMediaEndpointErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		cacheErr   error
		wantStatus int
		wantCode   string
	}{
		{"malformed body", `{`, nil, http.StatusBadRequest, ""},
		{"invalid url", `{"postId":"p","url":"not a url","kind":"image"}`, nil, http.StatusBadRequest, "invalid_url"},
		{"bad kind", `{"postId":"p","url":"https://x/a","kind":"audio"}`, nil, http.StatusBadRequest, ""},
		{"unguessable kind", `{"postId":"p","url":"https://x/a"}`, nil, http.StatusBadRequest, ""},
		{"timeout", `{"postId":"p","url":"https://x/a.png"}`, fetcher.ErrFetchTimeout, http.StatusGatewayTimeout, "fetch_timeout"},
		{"upstream 404", `{"postId":"p","url":"https://x/a.png"}`, &fetcher.StatusError{URL: "u", StatusCode: 404}, http.StatusBadGateway, "fetch_failed"},
		{"mismatch", `{"postId":"p","url":"https://x/a.png"}`, fetcher.ErrContentTypeMismatch, http.StatusUnsupportedMediaType, "content_type_mismatch"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &fakeCache{cacheFn: func(string, string, media.Kind) (string, error) {
				if tt.cacheErr != nil {
					return "", fmt.Errorf("fetch: %w", tt.cacheErr)
				}
				return "h", nil
			}}
			h := newTestHandlers(c, nil)

			w := httptest.NewRecorder()
			h.CacheMedia(w, httptest.NewRequest(http.MethodPost, "/api/cache", strings.NewReader(tt.body)))

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantCode == "" {
				return
			}
			var resp ErrorResponse
			decodeBody(t, w, &resp)
			if resp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantCode)
			}
			if tt.name == "upstream 404" && resp.Status != 404 {
				t.Errorf("upstreamStatus = %d, want 404", resp.Status)
			}
			if resp.Error == "" {
				t.Error("error message should not be empty")
			}
		})
	}
}

func TestCacheErrorBodyOmitsUpstreamDetail(t *testing.T) {
	const origin = "https://origin.internal:8443/private/a.png?token=s3cret"
	c := &fakeCache{cacheFn: func(string, string, media.Kind) (string, error) {
		return "", fmt.Errorf("fetch %s: %w", origin, &fetcher.StatusError{URL: origin, StatusCode: 503})
	}}
	h := newTestHandlers(c, nil)

	body := `{"postId":"p","url":"https://x/a.png"}`
	w := httptest.NewRecorder()
	h.CacheMedia(w, httptest.NewRequest(http.MethodPost, "/api/cache", strings.NewReader(body)))

	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadGateway)
	}
	raw := w.Body.String()
	for _, leak := range []string{"origin.internal", "s3cret", "/private/"} {
		if strings.Contains(raw, leak) {
			t.Errorf("body %q exposes %q", raw, leak)
		}
	}

	var resp ErrorResponse
	decodeBody(t, w, &resp)
	if resp.Code != "fetch_failed" || resp.Status != 503 {
		t.Errorf("resp = %+v, want fetch_failed with upstreamStatus 503", resp)
	}
}

func TestGetStats(t *testing.T) {
	reg := handles.New(handles.Config{})
	reg.Mint([]byte("a"), "image/png")
	reg.Mint([]byte("b"), "image/png")
	c := &fakeCache{stats: cache.Statistics{TotalItems: 3, TotalSizeBytes: 1234, Images: 2, Videos: 1}}
	h := newTestHandlers(c, reg)

	w := httptest.NewRecorder()
	h.GetStats(w, httptest.NewRequest(http.MethodGet, "/api/cache/stats", http.NoBody))

	var resp StatsResponse
	decodeBody(t, w, &resp)
	want := StatsResponse{TotalItems: 3, TotalSizeBytes: 1234, Images: 2, Videos: 1, HandlesActive: 2}
	if resp != want {
		t.Errorf("stats = %+v, want %+v", resp, want)
	}
}

func TestPurgeCache(t *testing.T) {
	c := &fakeCache{purgedAge: make(chan time.Duration, 1)}
	h := newTestHandlers(c, nil)

	w := httptest.NewRecorder()
	h.PurgeCache(w, httptest.NewRequest(http.MethodPost, "/api/cache/purge?maxAge=48h", http.NoBody))
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}

	select {
	case got := <-c.purgedAge:
		if got != 48*time.Hour {
			t.Errorf("purge maxAge = %v, want 48h", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("purge never ran")
	}
}

func TestPurgeCacheAlreadyRunning(t *testing.T) {
	h := newTestHandlers(&fakeCache{}, nil)
	h.purging.Store(true)

	w := httptest.NewRecorder()
	h.PurgeCache(w, httptest.NewRequest(http.MethodPost, "/api/cache/purge", http.NoBody))

	var resp map[string]string
	decodeBody(t, w, &resp)
	if resp["status"] != "already_running" {
		t.Errorf("status = %q, want already_running", resp["status"])
	}
}

func TestPurgeCacheInvalidMaxAge(t *testing.T) {
	h := newTestHandlers(&fakeCache{}, nil)
	for _, v := range []string{"soon", "-1h", "0s"} {
		w := httptest.NewRecorder()
		h.PurgeCache(w, httptest.NewRequest(http.MethodPost, "/api/cache/purge?maxAge="+v, http.NoBody))
		if w.Code != http.StatusBadRequest {
			t.Errorf("maxAge=%s status = %d, want 400", v, w.Code)
		}
	}
}

// =============================================================================
// Resolve Tests
// =============================================================================

func TestResolve(t *testing.T) {
	var attempts int
	c := &fakeCache{cacheFn: func(_, u string, _ media.Kind) (string, error) {
		if strings.Contains(u, "broken") {
			attempts++
			return "", fetcher.ErrFetchFailed
		}
		return "http://local/blob/new", nil
	}}
	h := newTestHandlers(c, nil)

	tests := []struct {
		name       string
		query      string
		wantURL    string
		wantStatus retrieval.Status
	}{
		{"populates", "postId=p1&url=https://x/a.png&kind=image", "http://local/blob/new", retrieval.StatusReady},
		{"empty url", "postId=p1", "https://fallback/150", retrieval.StatusReady},
		{"gives up", "postId=p1&url=https://x/broken.png", "https://fallback/150", retrieval.StatusPermanentError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.Resolve(w, httptest.NewRequest(http.MethodGet, "/api/resolve?"+tt.query, http.NoBody))

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", w.Code)
			}
			var raw map[string]interface{}
			decodeBody(t, w, &raw)
			if raw["url"] != tt.wantURL {
				t.Errorf("url = %v, want %s", raw["url"], tt.wantURL)
			}
			if raw["status"] != tt.wantStatus.String() {
				t.Errorf("status = %v, want %s", raw["status"], tt.wantStatus)
			}
		})
	}

	if attempts != retrieval.MaxAttempts {
		t.Errorf("attempts for broken url = %d, want %d", attempts, retrieval.MaxAttempts)
	}
}

func TestResolveRejectsUnknownKind(t *testing.T) {
	h := newTestHandlers(&fakeCache{}, nil)
	w := httptest.NewRecorder()
	h.Resolve(w, httptest.NewRequest(http.MethodGet, "/api/resolve?url=https://x/a&kind=audio", http.NoBody))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestNewDefaultsFallback(t *testing.T) {
	h := New(&fakeCache{}, handles.New(handles.Config{}), fakePinger{}, Options{})
	if h.opts.FallbackURL != cache.DefaultFallbackURL {
		t.Errorf("FallbackURL = %q", h.opts.FallbackURL)
	}
}
