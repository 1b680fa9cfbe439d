package streaming

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"
	"time"

	"voice-transcoder/internal/logging"
)

// Sentinel errors for streaming operations.
var (
	// ErrWriteTimeout indicates that a write exceeded WriteTimeout or the
	// stream sat idle longer than IdleTimeout.
	ErrWriteTimeout = errors.New("write timeout exceeded")

	// ErrClientGone indicates that the client disconnected before the stream
	// completed. This is detected via the request context being canceled.
	ErrClientGone = errors.New("client disconnected")

	// ErrStreamCanceled indicates that the writer was closed while a write
	// was still pending.
	ErrStreamCanceled = errors.New("stream canceled")
)

// TimeoutWriterConfig configures the timeout writer behavior
type TimeoutWriterConfig struct {
	// WriteTimeout bounds a single chunk write to the client
	WriteTimeout time.Duration
	// IdleTimeout is the maximum time between successful writes
	IdleTimeout time.Duration
	// MaxDuration is the absolute maximum streaming duration (0 = unlimited)
	MaxDuration time.Duration
	// ChunkSize is the size of chunks to write (0 = write as received)
	ChunkSize int
	// OnProgress is called after each megabyte written
	OnProgress func(bytesWritten int64, duration time.Duration)
}

// DefaultTimeoutWriterConfig returns defaults sized for voice notes, which
// are small and should reach the client as soon as the encoder emits pages.
func DefaultTimeoutWriterConfig() TimeoutWriterConfig {
	return TimeoutWriterConfig{
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  30 * time.Second,
		MaxDuration:  0,
		ChunkSize:    32 * 1024,
	}
}

// TimeoutWriter wraps an http.ResponseWriter with per-write deadlines, an
// idle watchdog and flushing after every chunk.
type TimeoutWriter struct {
	w      http.ResponseWriter
	rc     *http.ResponseController
	ctx    context.Context
	cancel context.CancelCauseFunc
	config TimeoutWriterConfig

	mu           sync.Mutex
	startTime    time.Time
	lastWrite    time.Time
	bytesWritten int64
	closed       bool
	deadlines    bool
}

// NewTimeoutWriter creates a new timeout-protected writer. ctx should be the
// request context so a disconnect stops the stream.
func NewTimeoutWriter(ctx context.Context, w http.ResponseWriter, config TimeoutWriterConfig) *TimeoutWriter {
	writerCtx, cancel := context.WithCancelCause(ctx)
	now := time.Now()

	tw := &TimeoutWriter{
		w:         w,
		rc:        http.NewResponseController(w),
		ctx:       writerCtx,
		cancel:    cancel,
		config:    config,
		startTime: now,
		lastWrite: now,
		deadlines: config.WriteTimeout > 0,
	}

	go tw.idleChecker()

	return tw
}

// Write implements io.Writer.
func (tw *TimeoutWriter) Write(p []byte) (int, error) {
	tw.mu.Lock()
	closed := tw.closed
	tw.mu.Unlock()
	if closed {
		return 0, ErrStreamCanceled
	}

	if tw.config.MaxDuration > 0 && time.Since(tw.startTime) > tw.config.MaxDuration {
		return 0, ErrWriteTimeout
	}

	chunkSize := tw.config.ChunkSize
	if chunkSize <= 0 {
		chunkSize = len(p)
	}

	written := 0
	for len(p) > 0 {
		if err := tw.ctx.Err(); err != nil {
			return written, tw.contextError()
		}

		n := min(chunkSize, len(p))
		m, err := tw.writeChunk(p[:n])
		written += m
		if err != nil {
			return written, err
		}
		p = p[n:]
	}

	return written, nil
}

func (tw *TimeoutWriter) writeChunk(p []byte) (int, error) {
	tw.mu.Lock()
	useDeadline := tw.deadlines
	tw.mu.Unlock()

	if useDeadline {
		if err := tw.rc.SetWriteDeadline(time.Now().Add(tw.config.WriteTimeout)); err != nil {
			// Recorders and some wrappers cannot set deadlines; the idle
			// watchdog still bounds the stream.
			if !errors.Is(err, http.ErrNotSupported) {
				logging.Debug("failed to set write deadline: %v", err)
			}
			tw.mu.Lock()
			tw.deadlines = false
			tw.mu.Unlock()
		}
	}

	n, err := tw.w.Write(p)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return n, ErrWriteTimeout
		}
		if tw.ctx.Err() != nil {
			return n, tw.contextError()
		}
		return n, err
	}

	if ferr := tw.rc.Flush(); ferr != nil && !errors.Is(ferr, http.ErrNotSupported) {
		return n, ferr
	}

	tw.mu.Lock()
	before := tw.bytesWritten
	tw.bytesWritten += int64(n)
	after := tw.bytesWritten
	tw.lastWrite = time.Now()
	tw.mu.Unlock()

	if tw.config.OnProgress != nil && before/(1<<20) != after/(1<<20) {
		tw.config.OnProgress(after, time.Since(tw.startTime))
	}

	return n, nil
}

// idleChecker cancels the stream when no write succeeds for IdleTimeout.
func (tw *TimeoutWriter) idleChecker() {
	if tw.config.IdleTimeout <= 0 {
		return
	}

	ticker := time.NewTicker(tw.config.IdleTimeout / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			tw.mu.Lock()
			idle := time.Since(tw.lastWrite)
			tw.mu.Unlock()

			if idle > tw.config.IdleTimeout {
				logging.Warn("Stream idle timeout exceeded: %v", idle)
				tw.cancel(ErrWriteTimeout)
				return
			}

		case <-tw.ctx.Done():
			return
		}
	}
}

// contextError maps the cancellation cause to a sentinel.
func (tw *TimeoutWriter) contextError() error {
	switch cause := context.Cause(tw.ctx); {
	case errors.Is(cause, ErrWriteTimeout):
		return ErrWriteTimeout
	case errors.Is(cause, ErrStreamCanceled):
		return ErrStreamCanceled
	default:
		return ErrClientGone
	}
}

// Close stops the idle watchdog. Further writes fail with ErrStreamCanceled.
func (tw *TimeoutWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.closed {
		return nil
	}

	tw.closed = true
	tw.cancel(ErrStreamCanceled)

	if tw.deadlines {
		// Clear the deadline so the connection can be reused.
		_ = tw.rc.SetWriteDeadline(time.Time{})
	}

	return nil
}

// Stats returns streaming statistics
func (tw *TimeoutWriter) Stats() (bytesWritten int64, duration time.Duration) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.bytesWritten, time.Since(tw.startTime)
}
