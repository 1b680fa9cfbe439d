// Command voice-transcoder serves POST / and converts the inline PCM audio of
// a generateContent-style JSON response to Ogg/Opus.
//
// # Request Lifecycle
//
//  1. The body (at most 50MB) is decoded and
//     candidates[0].content.parts[0].inlineData.data is base64-decoded into
//     24 kHz mono s16le PCM.
//  2. An ffmpeg process encodes it with libopus at 16 kbit/s, either through
//     stdin/stdout (pipe mode) or through per-request temp files (staged
//     mode).
//  3. The encoded stream is written back with per-write deadlines.
//
// Invalid payloads get 400 "Invalid JSON structure", oversized bodies 413,
// and encoder failures before the first byte 500 "Conversion Failed". Once
// audio has been sent a failure can only truncate the stream.
//
// # HTTP Server
//
// The application runs two HTTP servers:
//
//  1. Main Server (default port 8080): POST /, /healthz, /livez, /readyz,
//     /version
//  2. Metrics Server (default port 9090, optional): /metrics, /healthz
//
// # Environment Variables
//
//   - PORT: main HTTP server port (default: 8080)
//   - METRICS_PORT: metrics server port (default: 9090)
//   - METRICS_ENABLED: enable metrics server (default: true)
//   - TRANSCODE_MODE: pipe or staged (default: pipe)
//   - ENCODER_PATH: encoder executable (default: ffmpeg)
//   - ENCODE_TIMEOUT: per-job deadline (default: 2m)
//   - ENCODER_WORKERS: concurrent encoder processes (default: from CPU count)
//   - TEMP_DIR: staged-mode temp directory (default: OS temp dir)
//   - MEMORY_LIMIT, MEMORY_RATIO: container limit used to set GOMEMLIMIT
//   - LOG_LEVEL: debug, info, warn or error
//   - LOG_HEALTH_CHECKS: include probes in the access log (default: true)
//
// # Graceful Shutdown
//
// On SIGINT or SIGTERM the server stops accepting requests and waits up to
// 30 seconds for in-flight conversions, then kills any encoder still running
// and stops the metrics server. Temp files of killed jobs are removed on
// their normal exit path.
package main
