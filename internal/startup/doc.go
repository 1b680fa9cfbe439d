// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// All configuration is loaded from environment variables via [LoadConfig]:
//
//   - PORT: HTTP server port (default: 8080; invalid values fall back to it)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable metrics server (default: true)
//   - TRANSCODE_MODE: pipe or staged (default: pipe)
//   - ENCODER_PATH: Encoder executable, looked up on PATH (default: ffmpeg)
//   - ENCODE_TIMEOUT: Per-job deadline as Go duration (default: 2m)
//   - ENCODER_WORKERS: Concurrent encoder processes (default: 1.5 per CPU)
//   - TEMP_DIR: Directory for staged-mode artifacts (default: OS temp dir)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//
// # Lifecycle Logging
//
//   - [LogTranscoderInit]: transport mode, slot count and encoder availability
//   - [LogTempDirInit]: temp directory and stale artifact sweep
//   - [LogHTTPRoutes]: registered HTTP routes
//   - [LogServerStarted]: server endpoints and startup duration
//   - [LogShutdownInitiated], [LogShutdownComplete]: graceful shutdown
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
package startup
