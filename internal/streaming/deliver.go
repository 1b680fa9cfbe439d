package streaming

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"voice-transcoder/internal/logging"
)

// Termination reasons, used as metric labels.
const (
	ReasonClientGone   = "client_gone"
	ReasonWriteTimeout = "write_timeout"
	ReasonSource       = "encoder"
	ReasonIO           = "io"
)

// ErrStreamTerminated matches every *TerminatedError.
var ErrStreamTerminated = errors.New("stream terminated after headers")

// TerminatedError reports a failure after the status line was sent. No
// further status can be written; the connection simply ends.
type TerminatedError struct {
	Reason  string
	Written int64
	Err     error
}

func (e *TerminatedError) Error() string {
	return fmt.Sprintf("stream terminated after %d bytes (%s): %v", e.Written, e.Reason, e.Err)
}

func (e *TerminatedError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrStreamTerminated) hold.
func (e *TerminatedError) Is(target error) bool {
	return target == ErrStreamTerminated
}

// Source is an encoded byte stream ready to be sent. Close releases whatever
// produced it and may report a failure only visible once the stream ended.
type Source interface {
	io.Reader
	ContentType() string
	// Size returns the byte length, or -1 when unknown.
	Size() int64
	Close() error
}

// Deliver writes src as a 200 response. Headers are set before the first body
// byte; src is always closed, on success and on failure. Any error returned
// is a *TerminatedError because the status has already been committed.
func Deliver(ctx context.Context, w http.ResponseWriter, src Source, config TimeoutWriterConfig) (written int64, err error) {
	tracked := &trackedReader{r: src}

	defer func() {
		closeErr := src.Close()
		if err == nil && closeErr != nil {
			err = &TerminatedError{Reason: ReasonSource, Written: written, Err: closeErr}
		}
	}()

	h := w.Header()
	h.Set("Content-Type", src.ContentType())
	h.Set("X-Content-Type-Options", "nosniff")
	if size := src.Size(); size >= 0 {
		h.Set("Content-Length", strconv.FormatInt(size, 10))
	}
	w.WriteHeader(http.StatusOK)

	tw := NewTimeoutWriter(ctx, w, config)
	defer func() {
		if cerr := tw.Close(); cerr != nil {
			logging.Warn("Failed to close timeout writer: %v", cerr)
		}
	}()

	_, copyErr := io.Copy(tw, tracked)

	written, duration := tw.Stats()
	logging.Debug("Stream finished: %d bytes in %v", written, duration)

	if copyErr != nil {
		return written, &TerminatedError{
			Reason:  terminationReason(copyErr, tracked.err),
			Written: written,
			Err:     copyErr,
		}
	}
	return written, nil
}

func terminationReason(copyErr, readErr error) string {
	switch {
	case readErr != nil && errors.Is(copyErr, readErr):
		return ReasonSource
	case errors.Is(copyErr, ErrWriteTimeout):
		return ReasonWriteTimeout
	case errors.Is(copyErr, ErrClientGone), errors.Is(copyErr, ErrStreamCanceled):
		return ReasonClientGone
	default:
		return ReasonIO
	}
}

// trackedReader remembers the last non-EOF read error so a failed copy can
// be attributed to the source or the client.
type trackedReader struct {
	r   io.Reader
	err error
}

func (t *trackedReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF {
		t.err = err
	}
	return n, err
}
