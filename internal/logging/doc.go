// Package logging provides a simple leveled logging interface for the
// voice transcoder service.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information (pipeline state transitions)
//   - INFO: General operational messages
//   - WARN: Warning conditions (cleanup failures, degraded encoder)
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable, or
// forced to debug with DEBUG=true. Request-scoped messages should go through
// a Logger created with With so every line carries the job identifier.
package logging
