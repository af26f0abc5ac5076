package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"media-cache/internal/logging"

	"github.com/gorilla/mux"
)

const sectionRule = "------------------------------------------------------------"

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// DefaultHandleMaxEntries bounds the handle registry unless
// HANDLE_MAX_ENTRIES overrides it. 0 disables the bound.
const DefaultHandleMaxEntries = 10000

// DatabaseFile is the name of the SQLite file inside the cache directory.
const DatabaseFile = "media-cache.db"

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Config holds all application configuration
type Config struct {
	CacheDir         string
	Port             string
	PublicBaseURL    string
	FallbackURL      string
	AutoCache        bool
	FetchTimeout     time.Duration
	ExtractTimeout   time.Duration
	MaxAge           time.Duration
	PurgeInterval    time.Duration
	StatsInterval    time.Duration
	HandleTTL        time.Duration
	HandleMaxEntries int
	RetryDelay       time.Duration
	MetricsEnabled   bool
	LogRequests      bool
	UseVips          bool

	// Derived paths
	DatabasePath string
	TempDir      string
}

// LoadConfig loads and validates configuration from environment variables
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logSection("CONFIGURATION")

	cacheDir := getEnv("CACHE_DIR", "/cache")
	port := getEnv("PORT", "8080")
	publicBaseURL := strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:"+port), "/")
	fallbackURL := getEnv("FALLBACK_URL", "https://via.placeholder.com/150")
	autoCache := getEnvBool("AUTO_CACHE", true)
	metricsEnabled := getEnvBool("METRICS_ENABLED", true)
	logRequests := getEnvBool("LOG_REQUESTS", true)
	useVips := getEnvBool("USE_VIPS", true)

	fetchTimeout := getEnvDuration("FETCH_TIMEOUT", 15*time.Second)
	extractTimeout := getEnvDuration("EXTRACT_TIMEOUT", 30*time.Second)
	maxAge := getEnvDuration("MAX_AGE", 30*24*time.Hour)
	purgeInterval := getEnvDuration("PURGE_INTERVAL", time.Hour)
	statsInterval := getEnvDuration("STATS_INTERVAL", time.Minute)
	handleTTL := getEnvDuration("HANDLE_TTL", 0)
	handleMaxEntries := getEnvInt("HANDLE_MAX_ENTRIES", DefaultHandleMaxEntries)
	retryDelay := getEnvDuration("RETRY_DELAY", 0)

	logging.Info("  CACHE_DIR:           %s", cacheDir)
	logging.Info("  PORT:                %s", port)
	logging.Info("  PUBLIC_BASE_URL:     %s", publicBaseURL)
	logging.Info("  FALLBACK_URL:        %s", fallbackURL)
	logging.Info("  AUTO_CACHE:          %v", autoCache)
	logging.Info("  FETCH_TIMEOUT:       %v", fetchTimeout)
	logging.Info("  EXTRACT_TIMEOUT:     %v", extractTimeout)
	logging.Info("  MAX_AGE:             %v", maxAge)
	logging.Info("  PURGE_INTERVAL:      %v", purgeInterval)
	logging.Info("  STATS_INTERVAL:      %v", statsInterval)
	logging.Info("  HANDLE_TTL:          %v", handleTTL)
	logging.Info("  HANDLE_MAX_ENTRIES:  %d", handleMaxEntries)
	logging.Info("  RETRY_DELAY:         %v", retryDelay)
	logging.Info("  USE_VIPS:            %v", useVips)
	logging.Info("  METRICS_ENABLED:     %v", metricsEnabled)
	logging.Info("  LOG_REQUESTS:        %v", logRequests)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())

	logging.Info("")
	logSection("DIRECTORY SETUP")

	cacheDir, err := filepath.Abs(cacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cache directory path: %w", err)
	}
	logging.Info("  Cache directory (absolute): %s", cacheDir)

	if err := ensureDirectory(cacheDir, "cache"); err != nil {
		return nil, fmt.Errorf("cache directory error: %w", err)
	}

	logging.Debug("  Testing cache directory write access...")
	if err := testWriteAccess(cacheDir); err != nil {
		return nil, fmt.Errorf("cache directory is not writable (required for the store): %w", err)
	}
	logging.Info("  [OK] Cache directory is writable")

	config := &Config{
		CacheDir:         cacheDir,
		Port:             port,
		PublicBaseURL:    publicBaseURL,
		FallbackURL:      fallbackURL,
		AutoCache:        autoCache,
		FetchTimeout:     fetchTimeout,
		ExtractTimeout:   extractTimeout,
		MaxAge:           maxAge,
		PurgeInterval:    purgeInterval,
		StatsInterval:    statsInterval,
		HandleTTL:        handleTTL,
		HandleMaxEntries: handleMaxEntries,
		RetryDelay:       retryDelay,
		MetricsEnabled:   metricsEnabled,
		LogRequests:      logRequests,
		UseVips:          useVips,
		DatabasePath:     filepath.Join(cacheDir, DatabaseFile),
		TempDir:          filepath.Join(cacheDir, "tmp"),
	}

	if !setupOptionalDir(config.TempDir, "frame staging") {
		// Extraction still works from the system temp dir
		config.TempDir = ""
	}

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Store:       ENABLED (required)")
	logging.Info("    Auto cache:  %s", enabledString(config.AutoCache))
	logging.Info("    Metrics:     %s", enabledString(config.MetricsEnabled))

	return config, nil
}

func setupOptionalDir(path, name string) bool {
	logging.Debug("  Setting up %s directory: %s", name, path)

	if err := os.MkdirAll(path, 0o755); err != nil {
		logging.Warn("    Failed to create %s directory: %v", name, err)
		return false
	}

	if err := testWriteAccess(path); err != nil {
		logging.Warn("    %s directory is not writable: %v", name, err)
		return false
	}

	logging.Debug("    [OK] %s directory ready", name)
	return true
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogStoreInit logs store initialization
func LogStoreInit(path string, duration time.Duration) {
	logging.Info("")
	logSection("STORE INITIALIZATION")
	logging.Info("  Database: %s", path)
	logging.Info("  [OK] Store opened in %v", duration)
}

// LogExtractorInit logs the frame extractor's tool check
func LogExtractorInit(toolErr error, vipsEnabled bool) {
	logging.Info("")
	logSection("FRAME EXTRACTOR INITIALIZATION")

	if toolErr != nil {
		logging.Warn("  FFmpeg check failed: %v", toolErr)
		logging.Warn("  Video items cannot be cached until ffmpeg and ffprobe are installed")
	} else {
		logging.Info("  [OK] FFmpeg and FFprobe are available")
	}

	if vipsEnabled {
		logging.Info("  [OK] libvips frame encoding enabled")
	} else {
		logging.Info("  Frame encoding uses the pure Go encoder")
	}
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}

		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes dynamically
func LogHTTPRoutes(router *mux.Router, logRequests bool) {
	logging.Info("")
	logSection("HTTP SERVER SETUP")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))
		logging.Debug("")

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}

			for _, route := range groups[group] {
				logging.Debug("    %-6s %s", route.Method, route.Path)
			}
			logging.Debug("")
		}
	}

	if logRequests {
		logging.Info("  HTTP request logging: ON")
	} else {
		logging.Info("  HTTP request logging: OFF (set LOG_REQUESTS=true to enable)")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")

	parts := strings.SplitN(path, "/", 2)
	first := parts[0]

	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}

	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	PublicBaseURL   string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logSection("SERVER STARTED")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    API:           http://0.0.0.0:%s/api/cache", config.Port)
	logging.Info("    Handles:       %s/blob/", config.PublicBaseURL)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.Port)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info(sectionRule)
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logSection("SHUTDOWN INITIATED (received %s)", signal)
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// Helper functions

func logSection(format string, args ...interface{}) {
	logging.Info(sectionRule)
	logging.Info(format, args...)
	logging.Info(sectionRule)
}

func printBanner() {
	banner := `
------------------------------------------------------------
                    _ _                           _
  _ __ ___   ___  __| (_) __ _        ___ __ _  ___| |__   ___
 | '_ ' _ \ / _ \/ _' | |/ _' |_____ / __/ _' |/ __| '_ \ / _ \
 | | | | | |  __/ (_| | | (_| |_____| (_| (_| | (__| | | |  __/
 |_| |_| |_|\___|\__,_|_|\__,_|      \___\__,_|\___|_| |_|\___|

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logSection("SYSTEM INFORMATION")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		logging.Warn("Invalid integer for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed < 0 {
		logging.Warn("Invalid duration for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
