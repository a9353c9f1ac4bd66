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

	"printvault/internal/logging"
	"printvault/internal/workers"

	"github.com/gorilla/mux"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

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

// Config holds all application configuration
type Config struct {
	DataDir     string
	CacheDir    string
	DatabaseDir string
	Port        string
	MetricsPort string

	RedisAddr     string
	RedisPassword string

	ArchiveWorkers int
	MaxJobAttempts int
	RetryDelay     time.Duration

	LogHealthChecks bool
	MetricsEnabled  bool

	// Default library bootstrapped at first start when none exists
	DefaultLibraryName     string
	DefaultLibraryPath     string
	DefaultLibraryTemplate string

	// Derived paths
	DatabasePath string
	ThumbnailDir string
	UploadDir    string
	ScratchDir   string
}

// LoadConfig loads and validates configuration from environment variables
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	dataDir := getEnv("DATA_DIR", "/data")
	cacheDir := getEnv("CACHE_DIR", "/cache")
	databaseDir := getEnv("DATABASE_DIR", "/database")
	port := getEnv("PORT", "8080")
	metricsPort := getEnv("METRICS_PORT", "9090")
	redisAddr := getEnv("REDIS_ADDR", "localhost:6379")
	redisPassword := getEnv("REDIS_PASSWORD", "")
	maxJobAttempts := getEnvInt("MAX_JOB_ATTEMPTS", 3)
	retryDelayStr := getEnv("JOB_RETRY_DELAY", "2s")
	logHealthChecks := getEnvBool("LOG_HEALTH_CHECKS", true)
	metricsEnabled := getEnvBool("METRICS_ENABLED", true)
	defaultLibraryName := getEnv("DEFAULT_LIBRARY_NAME", "Main")
	defaultLibraryPath := getEnv("DEFAULT_LIBRARY_PATH", "")
	defaultLibraryTemplate := getEnv("DEFAULT_LIBRARY_TEMPLATE", "{library}/{model}")

	logging.Info("  DATA_DIR:                 %s", dataDir)
	logging.Info("  CACHE_DIR:                %s", cacheDir)
	logging.Info("  DATABASE_DIR:             %s", databaseDir)
	logging.Info("  PORT:                     %s", port)
	logging.Info("  METRICS_PORT:             %s", metricsPort)
	logging.Info("  METRICS_ENABLED:          %v", metricsEnabled)
	logging.Info("  REDIS_ADDR:               %s", redisAddr)
	logging.Info("  MAX_JOB_ATTEMPTS:         %d", maxJobAttempts)
	logging.Info("  JOB_RETRY_DELAY:          %s", retryDelayStr)
	logging.Info("  LOG_HEALTH_CHECKS:        %v", logHealthChecks)
	logging.Info("  DEFAULT_LIBRARY_NAME:     %s", defaultLibraryName)
	logging.Info("  DEFAULT_LIBRARY_TEMPLATE: %s", defaultLibraryTemplate)
	logging.Info("  LOG_LEVEL:                %s", logging.GetLevel())

	retryDelay, err := time.ParseDuration(retryDelayStr)
	if err != nil {
		logging.Warn("  Invalid JOB_RETRY_DELAY, using default: 2s")
		retryDelay = 2 * time.Second
	}

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	dataDir, err = filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	logging.Info("  Data directory (absolute): %s", dataDir)

	cacheDir, err = filepath.Abs(cacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cache directory path: %w", err)
	}
	logging.Info("  Cache directory (absolute): %s", cacheDir)

	databaseDir, err = filepath.Abs(databaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database directory path: %w", err)
	}
	logging.Info("  Database directory (absolute): %s", databaseDir)

	if defaultLibraryPath == "" {
		defaultLibraryPath = filepath.Join(dataDir, "library")
	}

	config := &Config{
		DataDir:                dataDir,
		CacheDir:               cacheDir,
		DatabaseDir:            databaseDir,
		Port:                   port,
		MetricsPort:            metricsPort,
		RedisAddr:              redisAddr,
		RedisPassword:          redisPassword,
		ArchiveWorkers:         archiveWorkerCount(),
		MaxJobAttempts:         maxJobAttempts,
		RetryDelay:             retryDelay,
		LogHealthChecks:        logHealthChecks,
		MetricsEnabled:         metricsEnabled,
		DefaultLibraryName:     defaultLibraryName,
		DefaultLibraryPath:     defaultLibraryPath,
		DefaultLibraryTemplate: defaultLibraryTemplate,
		DatabasePath:           filepath.Join(databaseDir, "printvault.db"),
		ThumbnailDir:           filepath.Join(cacheDir, "thumbnails"),
		UploadDir:              filepath.Join(cacheDir, "uploads"),
		ScratchDir:             filepath.Join(cacheDir, "scratch"),
	}

	// All of these are required: the pipeline cannot degrade without them
	for _, dir := range []struct {
		path string
		name string
	}{
		{databaseDir, "database"},
		{config.ThumbnailDir, "thumbnail"},
		{config.UploadDir, "upload"},
		{config.ScratchDir, "scratch"},
		{config.DefaultLibraryPath, "library"},
	} {
		if err := ensureDirectory(dir.path, dir.name); err != nil {
			return nil, fmt.Errorf("%s directory error: %w", dir.name, err)
		}
		if err := testWriteAccess(dir.path); err != nil {
			return nil, fmt.Errorf("%s directory is not writable: %w", dir.name, err)
		}
		logging.Info("  [OK] %s directory is writable", dir.name)
	}

	logging.Info("")
	logging.Info("  Workers: %d archive, 1 folder-import", config.ArchiveWorkers)

	return config, nil
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DATABASE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Database initialized in %v", duration)
}

// LogQueueInit logs queue lane initialization
func LogQueueInit(addr string, lanes ...string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("QUEUE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Redis: %s", addr)
	for _, lane := range lanes {
		logging.Info("  [OK] Lane %s ready", lane)
	}
}

// LogThumbnailInit logs which thumbnail encode path is active
func LogThumbnailInit(vipsAvailable bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("THUMBNAIL INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	if vipsAvailable {
		logging.Info("  [OK] libvips available, WebP renditions enabled")
	} else {
		logging.Warn("  libvips unavailable, falling back to JPEG renditions")
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
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

		name := route.GetName()

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   name,
			})
		}

		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes dynamically
func LogHTTPRoutes(router *mux.Router) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))

		sort.Slice(routes, func(i, j int) bool { return routes[i].Path < routes[j].Path })
		for _, route := range routes {
			logging.Debug("    %-6s %s", route.Method, route.Path)
		}
	}

	logging.Info("  HTTP logging enabled")
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    API:           http://0.0.0.0:%s/api", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
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

// archiveWorkerCount sizes the archive lane pool. Ingestion is I/O bound;
// INGEST_WORKERS overrides the computed count.
func archiveWorkerCount() int {
	return workers.ForIO(8)
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
    ____       _       ___    __          ____
   / __ \_____(_)___  / / |  / /___ ___  / / /_
  / /_/ / ___/ / __ \/ /| | / / __ '/ / / / __/
 / ____/ /  / / / / / / | |/ / /_/ / /_/ / /_
/_/   /_/  /_/_/ /_/_/  |___/\__,_/\__,_/\__/

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		logging.Debug("  Goroutines:      %d", runtime.NumGoroutine())

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
		// Write access was confirmed, so not an error
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
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || parsed <= 0 {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
