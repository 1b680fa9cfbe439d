// Package handlers provides the HTTP handlers for the voice transcoder.
//
// It includes handlers for:
//   - POST /: convert an inline-audio JSON payload to Ogg/Opus
//   - Health, liveness and readiness probes
//   - Build and version information
//   - Prometheus metrics
//
// A conversion moves through received, extracting, transcoding and
// streaming before it completes or fails. Errors raised before the first
// audio byte become a status code and a short text body; later errors only
// end the stream early.
package handlers
