package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"voice-transcoder/internal/logging"
	"voice-transcoder/internal/metrics"
	"voice-transcoder/internal/middleware"
	"voice-transcoder/internal/payload"
	"voice-transcoder/internal/streaming"
	"voice-transcoder/internal/transcoder"
)

// Response bodies for failures reported before any audio is sent.
const (
	msgInvalidPayload   = "Invalid JSON structure"
	msgBodyTooLarge     = "Request body too large"
	msgConversionFailed = "Conversion Failed"
)

// phase is the position of a conversion request in its lifecycle.
type phase int

const (
	phaseReceived phase = iota
	phaseExtracting
	phaseTranscoding
	phaseStreaming
	phaseCompleted
	phaseFailed
)

func (p phase) String() string {
	switch p {
	case phaseReceived:
		return "received"
	case phaseExtracting:
		return "extracting"
	case phaseTranscoding:
		return "transcoding"
	case phaseStreaming:
		return "streaming"
	case phaseCompleted:
		return "completed"
	case phaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// conversion tracks one POST / request.
type conversion struct {
	log   logging.Logger
	phase phase
	start time.Time
}

func (c *conversion) advance(next phase) {
	c.log.Debug("%s -> %s", c.phase, next)
	c.phase = next
}

// Convert accepts a generateContent-style JSON body and responds with the
// first candidate's inline PCM encoded as Ogg/Opus.
// POST /
func (h *Handlers) Convert(w http.ResponseWriter, r *http.Request) {
	c := &conversion{
		log:   logging.With("remote", r.RemoteAddr),
		phase: phaseReceived,
		start: time.Now(),
	}
	ctx := r.Context()

	if h.memory != nil {
		if err := h.memory.Wait(ctx); err != nil {
			h.fail(ctx, w, c, err)
			return
		}
	}

	c.advance(phaseExtracting)
	body := http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	audio, err := payload.ExtractBody(body, h.maxBodyBytes)
	if err != nil {
		h.fail(ctx, w, c, err)
		return
	}
	metrics.InputAudioSeconds.Observe(audio.Duration().Seconds())
	c.log.Debug("extracted %d bytes of PCM (%v)", audio.Len(), audio.Duration())

	c.advance(phaseTranscoding)
	out, err := h.transcoder.Convert(ctx, audio)
	if err != nil {
		h.fail(ctx, w, c, err)
		return
	}
	c.log = c.log.With("job", out.Job.ID)
	middleware.SetJob(ctx, out.Job.ID)

	c.advance(phaseStreaming)
	written, err := streaming.Deliver(ctx, w, out, h.streamConfig)
	if err != nil {
		c.advance(phaseFailed)
		reason := streaming.ReasonIO
		var te *streaming.TerminatedError
		if errors.As(err, &te) {
			reason = te.Reason
		}
		metrics.StreamTerminationsTotal.WithLabelValues(reason).Inc()
		recordOutcome(ctx, "stream_terminated")
		metrics.OutputBytesTotal.WithLabelValues(string(out.Job.Mode)).Add(float64(written))

		if reason == streaming.ReasonClientGone {
			c.log.Info("Client went away after %d bytes", written)
		} else {
			c.log.Error("Stream terminated after %d bytes: %v", written, err)
		}
		return
	}

	c.advance(phaseCompleted)
	recordOutcome(ctx, "completed")
	metrics.OutputBytesTotal.WithLabelValues(string(out.Job.Mode)).Add(float64(written))
	c.log.Info("Converted %v of audio to %d bytes in %v", audio.Duration(), written, time.Since(c.start))
}

// fail reports an error raised before any body byte was written.
func (h *Handlers) fail(ctx context.Context, w http.ResponseWriter, c *conversion, err error) {
	failedIn := c.phase
	c.advance(phaseFailed)

	switch {
	case errors.Is(err, payload.ErrBodyTooLarge):
		recordOutcome(ctx, "too_large")
		c.log.Warn("Rejected request: %v", err)
		http.Error(w, msgBodyTooLarge, http.StatusRequestEntityTooLarge)

	case errors.Is(err, payload.ErrMalformedPayload):
		recordOutcome(ctx, "malformed")
		c.log.Warn("Invalid JSON structure received: %v", err)
		http.Error(w, msgInvalidPayload, http.StatusBadRequest)

	case ctx.Err() != nil:
		// The client is gone; nobody is left to read a status.
		recordOutcome(ctx, "canceled")
		c.log.Info("Request canceled during %s: %v", failedIn, err)

	default:
		recordOutcome(ctx, "encoder_failed")
		c.log.Error("Conversion failed during %s: %v", failedIn, err)
		var exitErr *transcoder.ExitError
		if errors.As(err, &exitErr) {
			c.log.Debug("encoder exit code %d", exitErr.Code)
		}
		http.Error(w, msgConversionFailed, http.StatusInternalServerError)
	}
}

// recordOutcome counts how a conversion ended and reports it to the access log.
func recordOutcome(ctx context.Context, outcome string) {
	metrics.ConversionsTotal.WithLabelValues(outcome).Inc()
	middleware.SetOutcome(ctx, outcome)
}
