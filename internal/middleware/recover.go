package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"voice-transcoder/internal/logging"
	"voice-transcoder/internal/metrics"
)

// headerTracker records whether the response has been committed.
type headerTracker struct {
	http.ResponseWriter
	committed bool
}

func (t *headerTracker) WriteHeader(code int) {
	t.committed = true
	t.ResponseWriter.WriteHeader(code)
}

func (t *headerTracker) Write(b []byte) (int, error) {
	t.committed = true
	return t.ResponseWriter.Write(b)
}

func (t *headerTracker) Flush() {
	t.committed = true
	if f, ok := t.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (t *headerTracker) Unwrap() http.ResponseWriter {
	return t.ResponseWriter
}

// Recover turns a handler panic into a 500 when nothing has been sent yet.
// Once audio bytes are out the connection is aborted instead, so the client
// sees a truncated stream rather than an error body appended to it.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tracked := &headerTracker{ResponseWriter: w}

		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(rec)
			}

			metrics.HTTPPanicsTotal.Inc()
			logging.Error("panic serving %s %s: %v\n%s", r.Method, sanitizeLogField(r.URL.Path), rec, debug.Stack())

			if tracked.committed {
				panic(http.ErrAbortHandler)
			}
			http.Error(w, "Server Error", http.StatusInternalServerError)
		}()

		next.ServeHTTP(tracked, r)
	})
}
