// Package middleware provides HTTP middleware for the transcoding service.
//
// It includes:
//   - Request logging in W3C Extended Log Format
//   - Prometheus request metrics
//   - Panic recovery that never appends an error body to a started stream
package middleware
