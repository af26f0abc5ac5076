package startup

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"
)

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()

	if info.Version == "" {
		t.Error("Expected Version to be set")
	}
	if info.OS == "" || info.Arch == "" {
		t.Errorf("Expected OS/Arch to be set, got %q/%q", info.OS, info.Arch)
	}
	if info.GoVersion != GoVersion {
		t.Errorf("Expected GoVersion=%s, got %s", GoVersion, info.GoVersion)
	}
}

// clearConfigEnv makes LoadConfig see only the variables a test sets.
func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "PUBLIC_BASE_URL", "FALLBACK_URL", "AUTO_CACHE", "FETCH_TIMEOUT",
		"EXTRACT_TIMEOUT", "MAX_AGE", "PURGE_INTERVAL", "STATS_INTERVAL", "HANDLE_TTL",
		"HANDLE_MAX_ENTRIES", "RETRY_DELAY", "METRICS_ENABLED", "LOG_REQUESTS", "USE_VIPS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearConfigEnv(t)
	dir := t.TempDir()
	t.Setenv("CACHE_DIR", dir)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.CacheDir != dir {
		t.Errorf("CacheDir = %q, want %q", cfg.CacheDir, dir)
	}
	if cfg.DatabasePath != filepath.Join(dir, DatabaseFile) {
		t.Errorf("DatabasePath = %q", cfg.DatabasePath)
	}
	if cfg.Port != "8080" || cfg.PublicBaseURL != "http://localhost:8080" {
		t.Errorf("Port = %q, PublicBaseURL = %q", cfg.Port, cfg.PublicBaseURL)
	}
	if cfg.FallbackURL != "https://via.placeholder.com/150" {
		t.Errorf("FallbackURL = %q", cfg.FallbackURL)
	}
	if !cfg.AutoCache || !cfg.MetricsEnabled || !cfg.LogRequests {
		t.Errorf("boolean defaults = auto %v, metrics %v, requests %v", cfg.AutoCache, cfg.MetricsEnabled, cfg.LogRequests)
	}
	if cfg.FetchTimeout != 15*time.Second || cfg.ExtractTimeout != 30*time.Second {
		t.Errorf("timeouts = %v / %v", cfg.FetchTimeout, cfg.ExtractTimeout)
	}
	if cfg.MaxAge != 720*time.Hour {
		t.Errorf("MaxAge = %v", cfg.MaxAge)
	}
	if cfg.PurgeInterval != time.Hour || cfg.StatsInterval != time.Minute {
		t.Errorf("intervals = %v / %v", cfg.PurgeInterval, cfg.StatsInterval)
	}
	if cfg.RetryDelay != 0 || cfg.HandleTTL != 0 {
		t.Errorf("RetryDelay = %v, HandleTTL = %v", cfg.RetryDelay, cfg.HandleTTL)
	}
	if cfg.HandleMaxEntries != DefaultHandleMaxEntries || cfg.HandleMaxEntries == 0 {
		t.Errorf("HandleMaxEntries = %d, want a bounded default of %d", cfg.HandleMaxEntries, DefaultHandleMaxEntries)
	}
	if cfg.TempDir != filepath.Join(dir, "tmp") {
		t.Errorf("TempDir = %q", cfg.TempDir)
	}
	if info, err := os.Stat(cfg.TempDir); err != nil || !info.IsDir() {
		t.Errorf("temp dir was not created: %v", err)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("CACHE_DIR", filepath.Join(t.TempDir(), "nested", "cache"))
	t.Setenv("PORT", "9000")
	t.Setenv("PUBLIC_BASE_URL", "https://media.example.com/")
	t.Setenv("AUTO_CACHE", "false")
	t.Setenv("MAX_AGE", "48h")
	t.Setenv("FETCH_TIMEOUT", "bogus")
	t.Setenv("RETRY_DELAY", "250ms")
	t.Setenv("HANDLE_MAX_ENTRIES", "64")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Port != "9000" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.PublicBaseURL != "https://media.example.com" {
		t.Errorf("PublicBaseURL = %q, want trailing slash trimmed", cfg.PublicBaseURL)
	}
	if cfg.AutoCache {
		t.Error("AutoCache should be false")
	}
	if cfg.MaxAge != 48*time.Hour {
		t.Errorf("MaxAge = %v", cfg.MaxAge)
	}
	if cfg.FetchTimeout != 15*time.Second {
		t.Errorf("invalid FETCH_TIMEOUT should fall back, got %v", cfg.FetchTimeout)
	}
	if cfg.RetryDelay != 250*time.Millisecond {
		t.Errorf("RetryDelay = %v", cfg.RetryDelay)
	}
	if cfg.HandleMaxEntries != 64 {
		t.Errorf("HandleMaxEntries = %d, want 64", cfg.HandleMaxEntries)
	}
	if _, err := os.Stat(cfg.CacheDir); err != nil {
		t.Errorf("cache dir was not created: %v", err)
	}
}

func TestLoadConfigCacheDirIsFile(t *testing.T) {
	clearConfigEnv(t)
	file := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CACHE_DIR", file)

	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig() should fail when CACHE_DIR is a file")
	}
}

func TestGetRouteGroup(t *testing.T) {
	tests := map[string]string{
		"/blob/{token}":    "blob",
		"/api/cache":       "api/cache",
		"/api/cache/stats": "api/cache",
		"/api/resolve":     "api/resolve",
		"/health":          "health",
		"/":                "",
	}
	for path, want := range tests {
		if got := getRouteGroup(path); got != want {
			t.Errorf("getRouteGroup(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestGetRoutes(t *testing.T) {
	noop := func(http.ResponseWriter, *http.Request) {}
	r := mux.NewRouter()
	r.HandleFunc("/api/cache", noop).Methods("GET", "POST").Name("cache")
	r.HandleFunc("/health", noop).Methods("GET")
	r.PathPrefix("/static/").HandlerFunc(noop)

	routes, err := GetRoutes(r)
	if err != nil {
		t.Fatalf("GetRoutes() error = %v", err)
	}
	if len(routes) != 4 {
		t.Fatalf("routes = %d, want 4: %+v", len(routes), routes)
	}
	if routes[0].Name != "cache" || routes[0].Method != "GET" || routes[1].Method != "POST" {
		t.Errorf("first routes = %+v", routes[:2])
	}
	if routes[3].Method != "*" {
		t.Errorf("route without methods = %+v, want method *", routes[3])
	}
}
