package handlers

import (
	"time"

	"voice-transcoder/internal/memory"
	"voice-transcoder/internal/payload"
	"voice-transcoder/internal/startup"
	"voice-transcoder/internal/streaming"
	"voice-transcoder/internal/transcoder"
)

// Handlers holds the dependencies shared by every HTTP handler.
type Handlers struct {
	transcoder   *transcoder.Transcoder
	maxBodyBytes int64
	streamConfig streaming.TimeoutWriterConfig
	startTime    time.Time
	encoder      *encoderProbe
	memory       *memory.Monitor
}

// New creates the handler set for trans. mon may be nil.
func New(trans *transcoder.Transcoder, mon *memory.Monitor, config *startup.Config) *Handlers {
	maxBody := payload.MaxBodyBytes
	if config != nil && config.MaxBodyBytes > 0 {
		maxBody = config.MaxBodyBytes
	}

	return &Handlers{
		transcoder:   trans,
		maxBodyBytes: maxBody,
		streamConfig: streaming.DefaultTimeoutWriterConfig(),
		startTime:    time.Now(),
		encoder:      newEncoderProbe(trans, encoderProbeTTL),
		memory:       mon,
	}
}
