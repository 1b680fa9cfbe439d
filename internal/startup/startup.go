package startup

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"voice-transcoder/internal/filesystem"
	"voice-transcoder/internal/logging"
	"voice-transcoder/internal/payload"
	"voice-transcoder/internal/transcoder"

	"github.com/gorilla/mux"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// Defaults for values read from the environment.
const (
	DefaultPort        = "8080"
	DefaultMetricsPort = "9090"
)

// staleArtifactAge is how old an input_*/output_* file must be before the
// startup sweep treats it as abandoned by a previous process.
const staleArtifactAge = 15 * time.Minute

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
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	LogHealthChecks bool

	Mode           transcoder.Mode
	EncoderPath    string
	EncodeTimeout  time.Duration
	EncoderWorkers int
	TempDir        string
	MaxBodyBytes   int64
}

// TranscoderConfig returns the transcoder settings derived from c.
func (c *Config) TranscoderConfig() transcoder.Config {
	return transcoder.Config{
		Mode:          c.Mode,
		EncoderPath:   c.EncoderPath,
		TempDir:       c.TempDir,
		Timeout:       c.EncodeTimeout,
		MaxConcurrent: c.EncoderWorkers,
	}
}

// LoadConfig loads and validates configuration from environment variables
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	config, err := configFromEnv()
	if err != nil {
		return nil, err
	}

	logging.Info("  PORT:                %s", config.Port)
	logging.Info("  METRICS_PORT:        %s", config.MetricsPort)
	logging.Info("  METRICS_ENABLED:     %v", config.MetricsEnabled)
	logging.Info("  TRANSCODE_MODE:      %s", config.Mode)
	logging.Info("  ENCODER_PATH:        %s", config.EncoderPath)
	logging.Info("  ENCODE_TIMEOUT:      %v", config.EncodeTimeout)
	if config.EncoderWorkers > 0 {
		logging.Info("  ENCODER_WORKERS:     %d", config.EncoderWorkers)
	} else {
		logging.Info("  ENCODER_WORKERS:     auto")
	}
	logging.Info("  TEMP_DIR:            %s", config.TempDir)
	logging.Info("  LOG_HEALTH_CHECKS:   %v", config.LogHealthChecks)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())

	return config, nil
}

// configFromEnv reads every setting. Invalid optional values fall back to
// their defaults with a warning; an invalid TRANSCODE_MODE is an error since
// the two modes differ in observable output.
func configFromEnv() (*Config, error) {
	mode, err := transcoder.ParseMode(getEnv("TRANSCODE_MODE", string(transcoder.ModePipe)))
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:            getEnvPort("PORT", DefaultPort),
		MetricsPort:     getEnvPort("METRICS_PORT", DefaultMetricsPort),
		MetricsEnabled:  getEnvBool("METRICS_ENABLED", true),
		LogHealthChecks: getEnvBool("LOG_HEALTH_CHECKS", true),
		Mode:            mode,
		EncoderPath:     getEnv("ENCODER_PATH", transcoder.DefaultEncoder),
		EncodeTimeout:   getEnvDuration("ENCODE_TIMEOUT", transcoder.DefaultTimeout),
		EncoderWorkers:  getEnvInt("ENCODER_WORKERS", 0),
		TempDir:         getEnv("TEMP_DIR", os.TempDir()),
		MaxBodyBytes:    payload.MaxBodyBytes,
	}, nil
}

// LogTranscoderInit logs transcoder initialization and checks the encoder.
// A missing encoder is not fatal: the service starts, reports not ready and
// answers conversions with 500 until the executable appears.
func LogTranscoderInit(trans *transcoder.Transcoder) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("TRANSCODER INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Mode:            %s (%s)", trans.Mode(), trans.ContentType())
	logging.Info("  Encoder slots:   %d", trans.Slots())
	if trans.Timeout() > 0 {
		logging.Info("  Job timeout:     %v", trans.Timeout())
	} else {
		logging.Warn("  Job timeout:     DISABLED")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	info, err := trans.CheckEncoder(ctx)
	if err != nil {
		logging.Warn("  Encoder check failed: %v", err)
		logging.Warn("  Conversions will fail until %s is installed", trans.Encoder())
		return
	}

	logging.Info("  [OK] Encoder found: %s", info.Path)
	logging.Debug("  Encoder version: %s", info.Version)
	if !info.Opus {
		logging.Warn("  Encoder does not list libopus; conversions will fail")
	}
}

// LogTempDirInit sweeps stale artifacts left by a previous process. Pipe
// mode never stages files, so nothing is swept.
func LogTempDirInit(mode transcoder.Mode, dir string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("TEMP DIRECTORY")
	logging.Info("------------------------------------------------------------")
	if mode != transcoder.ModeStaged {
		logging.Info("  [SKIP] %s mode does not stage files", mode)
		return
	}
	logging.Info("  Directory: %s", dir)

	removed, err := filesystem.Sweep(dir, staleArtifactAge)
	if err != nil {
		logging.Warn("  Stale artifact sweep failed: %v", err)
		return
	}
	if removed > 0 {
		logging.Info("  [OK] Removed %d stale artifacts", removed)
	} else {
		logging.Info("  [OK] No stale artifacts")
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

// LogHTTPRoutes logs all registered HTTP routes
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	routes, err := GetRoutes(router)
	if err != nil {
		logging.Warn("error walking routes: %v", err)
	}

	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path != routes[j].Path {
			return routes[i].Path < routes[j].Path
		}
		return routes[i].Method < routes[j].Method
	})

	logging.Info("  Registered routes (%d total):", len(routes))
	for _, route := range routes {
		logging.Info("    %-6s %s", route.Method, route.Path)
	}

	if logHealthChecks {
		logging.Info("  Health check logging: ON")
	} else {
		logging.Info("  Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
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
	logging.Info("    Convert:       POST http://0.0.0.0:%s/", config.Port)
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

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
 __   __    _          _____                            _
 \ \ / /__ (_) ___ ___|_   _| __ __ _ _ __  ___  ___ __| | ___ _ __
  \ V / _ \| |/ __/ _ \ | || '__/ _' | '_ \/ __|/ __/ _' |/ _ \ '__|
   | | (_) | | (_|  __/ | || | | (_| | | | \__ \ (_| (_| |  __/ |
   |_|\___/|_|\___\___| |_||_|  \__,_|_| |_|___/\___\__,_|\___|_|

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
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
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
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
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
	if err != nil {
		logging.Warn("Invalid duration value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

// getEnvPort returns a TCP port in 1-65535, or defaultValue when the variable
// is unset or not a valid port.
func getEnvPort(key, defaultValue string) string {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	port, err := strconv.Atoi(value)
	if err != nil || port < 1 || port > 65535 {
		logging.Warn("Invalid port for %s: %q, using default: %s", key, value, defaultValue)
		return defaultValue
	}
	return strconv.Itoa(port)
}
