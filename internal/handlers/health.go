package handlers

import (
	"context"
	"net/http"
	"runtime"
	"sync"
	"time"

	"voice-transcoder/internal/startup"
	"voice-transcoder/internal/transcoder"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

// encoderProbeTTL limits how often readiness probes spawn the encoder.
const encoderProbeTTL = 30 * time.Second

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Ready   bool   `json:"ready"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`

	// Transcoder info
	Mode         string                  `json:"mode"`
	ActiveJobs   int                     `json:"activeJobs"`
	EncoderSlots int                     `json:"encoderSlots"`
	Encoder      *transcoder.EncoderInfo `json:"encoder,omitempty"`
	EncoderError string                  `json:"encoderError,omitempty"`

	// System info
	MemoryPaused bool   `json:"memoryPaused"`
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// encoderProbe caches the result of Transcoder.CheckEncoder.
type encoderProbe struct {
	trans *transcoder.Transcoder
	ttl   time.Duration

	mu      sync.Mutex
	checked time.Time
	info    *transcoder.EncoderInfo
	err     error
}

func newEncoderProbe(trans *transcoder.Transcoder, ttl time.Duration) *encoderProbe {
	return &encoderProbe{trans: trans, ttl: ttl}
}

// status returns the cached probe result, refreshing it once the TTL expires.
// A result cut short by the caller's context is returned but not cached.
func (p *encoderProbe) status(ctx context.Context) (*transcoder.EncoderInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.checked.IsZero() && time.Since(p.checked) < p.ttl {
		return p.info, p.err
	}

	info, err := p.trans.CheckEncoder(ctx)
	if err != nil && ctx.Err() != nil {
		return nil, err
	}
	p.info, p.err = info, err
	p.checked = time.Now()
	return p.info, p.err
}

// ready reports whether conversions can currently succeed.
func (p *encoderProbe) ready(ctx context.Context) bool {
	info, err := p.status(ctx)
	return err == nil && info != nil && info.Opus
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	info, err := h.encoder.status(r.Context())
	ready := err == nil && info != nil && info.Opus

	response := HealthResponse{
		Ready:        ready,
		Version:      startup.Version,
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		Mode:         string(h.transcoder.Mode()),
		ActiveJobs:   h.transcoder.Active(),
		EncoderSlots: h.transcoder.Slots(),
		Encoder:      info,
		MemoryPaused: h.memory != nil && h.memory.Paused(),
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}
	if err != nil {
		response.EncoderError = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	if ready {
		response.Status = statusHealthy
		w.WriteHeader(http.StatusOK)
	} else {
		response.Status = statusDegraded
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	writeJSON(w, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 only when the encoder is usable
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if h.encoder.ready(r.Context()) {
		writeJSONStatus(w, http.StatusOK, "ready")
		return
	}
	writeJSONStatus(w, http.StatusServiceUnavailable, "not_ready")
}
