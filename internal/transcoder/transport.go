package transcoder

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"voice-transcoder/internal/payload"
)

// Mode selects the transport. It is a deployment decision, not a request
// parameter.
type Mode string

const (
	ModePipe   Mode = "pipe"
	ModeStaged Mode = "staged"
)

// ParseMode validates a TRANSCODE_MODE value.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModePipe:
		return ModePipe, nil
	case ModeStaged:
		return ModeStaged, nil
	default:
		return "", fmt.Errorf("unknown transcode mode %q (want pipe or staged)", s)
	}
}

// Transport turns raw PCM into an encoded byte stream for one job.
type Transport interface {
	Mode() Mode
	ContentType() string
	// Encode runs the job. On error the transport has already released every
	// resource it acquired; on success the returned Output owns them.
	Encode(ctx context.Context, job *EncodeJob, audio *payload.RawAudio) (*Output, error)
}

// Output is an encoded byte stream. Close must be called exactly once the
// caller stops reading; it finalizes the job and reports failures that were
// only observable after the stream ended.
type Output struct {
	Job *EncodeJob

	r           io.Reader
	contentType string
	size        int64
	eof         bool

	finalize func(drained bool) error
	once     sync.Once
	err      error
}

// Read implements io.Reader.
func (o *Output) Read(p []byte) (int, error) {
	n, err := o.r.Read(p)
	if err == io.EOF {
		o.eof = true
	}
	return n, err
}

// ContentType returns the media type of the encoded stream.
func (o *Output) ContentType() string {
	return o.contentType
}

// Size returns the byte length, or -1 when it is not known in advance.
func (o *Output) Size() int64 {
	return o.size
}

// Close finalizes the job. Subsequent calls return the first result.
func (o *Output) Close() error {
	o.once.Do(func() {
		if o.finalize != nil {
			o.err = o.finalize(o.eof)
		}
	})
	return o.err
}

// wrapFinalize chains an extra step after the existing finalizer.
func (o *Output) wrapFinalize(after func()) {
	inner := o.finalize
	o.finalize = func(drained bool) error {
		var err error
		if inner != nil {
			err = inner(drained)
		}
		after()
		return err
	}
}
