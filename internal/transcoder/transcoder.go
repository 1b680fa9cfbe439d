package transcoder

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"voice-transcoder/internal/logging"
	"voice-transcoder/internal/metrics"
	"voice-transcoder/internal/payload"
	"voice-transcoder/internal/workers"

	"golang.org/x/sync/semaphore"
)

// DefaultEncoder is the executable looked up on PATH when none is configured.
const DefaultEncoder = "ffmpeg"

// DefaultTimeout bounds a single job, including the time a pipe-mode client
// spends reading the stream.
const DefaultTimeout = 2 * time.Minute

// errClosed is returned by Convert once Cleanup has run.
var errClosed = fmt.Errorf("%w: transcoder is shutting down", ErrCanceled)

// Config configures a Transcoder.
type Config struct {
	Mode        Mode
	EncoderPath string
	TempDir     string
	// Timeout is the per-job deadline. Zero uses DefaultTimeout; negative
	// disables it.
	Timeout time.Duration
	// MaxConcurrent caps running encoder processes. Zero derives the value
	// from the CPU count.
	MaxConcurrent int
	// StderrLimit bounds the retained diagnostic tail per job.
	StderrLimit int
}

// Transcoder converts RawAudio to Ogg/Opus with one encoder process per call.
type Transcoder struct {
	transport   Transport
	encoder     string
	timeout     time.Duration
	stderrLimit int

	slots     *semaphore.Weighted
	slotCount int

	jobs   map[string]*EncodeJob
	jobsMu sync.Mutex
	closed bool
}

// New creates a Transcoder for the configured transport.
func New(cfg Config) (*Transcoder, error) {
	encoder := cfg.EncoderPath
	if encoder == "" {
		encoder = DefaultEncoder
	}

	var transport Transport
	switch cfg.Mode {
	case ModePipe, "":
		transport = NewPipeTransport(encoder)
	case ModeStaged:
		transport = NewStagedTransport(encoder, cfg.TempDir)
	default:
		return nil, fmt.Errorf("unknown transcode mode %q", cfg.Mode)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	slots := cfg.MaxConcurrent
	if slots <= 0 {
		slots = workers.ForMixed(0)
	}

	return &Transcoder{
		transport:   transport,
		encoder:     encoder,
		timeout:     timeout,
		stderrLimit: cfg.StderrLimit,
		slots:       semaphore.NewWeighted(int64(slots)),
		slotCount:   slots,
		jobs:        make(map[string]*EncodeJob),
	}, nil
}

// Mode returns the configured transport mode.
func (t *Transcoder) Mode() Mode {
	return t.transport.Mode()
}

// ContentType returns the media type of converted output.
func (t *Transcoder) ContentType() string {
	return t.transport.ContentType()
}

// Encoder returns the configured encoder executable.
func (t *Transcoder) Encoder() string {
	return t.encoder
}

// Slots returns the maximum number of concurrent encoder processes.
func (t *Transcoder) Slots() int {
	return t.slotCount
}

// Timeout returns the per-job deadline, or a non-positive value if disabled.
func (t *Transcoder) Timeout() time.Duration {
	return t.timeout
}

// Active returns the number of jobs that have not reached a terminal state.
func (t *Transcoder) Active() int {
	t.jobsMu.Lock()
	defer t.jobsMu.Unlock()
	return len(t.jobs)
}

// Convert encodes audio. It blocks until an encoder slot is free or ctx is
// done. On success the caller must Close the returned Output; until then the
// job may still hold a process (pipe mode) or temp files (staged mode).
func (t *Transcoder) Convert(ctx context.Context, audio *payload.RawAudio) (*Output, error) {
	if audio == nil || audio.Len() == 0 {
		return nil, fmt.Errorf("%w: no audio to encode", ErrEncoderIO)
	}

	waitStart := time.Now()
	if err := t.slots.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: waiting for encoder slot: %w", ErrCanceled, err)
	}
	metrics.EncoderSlotWait.Observe(time.Since(waitStart).Seconds())

	var jobCtx context.Context
	var cancel context.CancelFunc
	if t.timeout > 0 {
		jobCtx, cancel = context.WithTimeout(ctx, t.timeout)
	} else {
		jobCtx, cancel = context.WithCancel(ctx)
	}

	job := newJob(t.transport.Mode(), t.stderrLimit)
	job.onExit = t.jobEnded
	job.cancel = cancel
	if !t.register(job) {
		cancel()
		t.slots.Release(1)
		return nil, errClosed
	}
	job.log.Debug("converting %d bytes (%v of audio)", audio.Len(), audio.Duration())

	out, err := t.transport.Encode(jobCtx, job, audio)
	if err != nil {
		cancel()
		if !job.State().Terminal() {
			_ = job.fail(err)
		}
		return nil, err
	}

	out.wrapFinalize(cancel)
	return out, nil
}

// jobEnded runs exactly once per job when it reaches a terminal state.
func (t *Transcoder) jobEnded(job *EncodeJob) {
	t.unregister(job)
	t.slots.Release(1)

	status := job.statusLabel()
	mode := string(job.Mode)
	metrics.EncoderJobsTotal.WithLabelValues(mode, status).Inc()
	if d := job.Duration(); d > 0 {
		metrics.EncoderJobDuration.WithLabelValues(mode).Observe(d.Seconds())
	}

	switch status {
	case "succeeded":
		job.log.Debug("encoder finished in %v", job.Duration())
	case "canceled":
		job.log.Info("encoder stopped: %v", job.Err())
	default:
		job.log.Error("encoder %s: %v", status, job.Err())
		if tail := strings.TrimSpace(job.Stderr()); tail != "" {
			job.log.Error("encoder stderr: %s", tail)
		}
	}
}

func (t *Transcoder) register(job *EncodeJob) bool {
	t.jobsMu.Lock()
	defer t.jobsMu.Unlock()

	if t.closed {
		return false
	}
	t.jobs[job.ID] = job
	metrics.EncoderJobsInProgress.Inc()
	return true
}

func (t *Transcoder) unregister(job *EncodeJob) {
	t.jobsMu.Lock()
	defer t.jobsMu.Unlock()

	if _, ok := t.jobs[job.ID]; !ok {
		return
	}
	delete(t.jobs, job.ID)
	metrics.EncoderJobsInProgress.Dec()
}

// Cleanup refuses new jobs and kills every registered encoder, including
// jobs that have not started their process yet. Killed jobs still release
// their temp files through their normal exit path.
func (t *Transcoder) Cleanup() {
	t.jobsMu.Lock()
	t.closed = true
	live := make([]*EncodeJob, 0, len(t.jobs))
	for _, job := range t.jobs {
		live = append(live, job)
	}
	t.jobsMu.Unlock()

	for _, job := range live {
		logging.Info("Killing encoder process for job %s", job.ID)
		job.kill()
	}
}

// EncoderInfo describes the resolved encoder executable.
type EncoderInfo struct {
	Path    string `json:"path"`
	Version string `json:"version"`
	Opus    bool   `json:"opus"`
}

// CheckEncoder verifies the encoder resolves and supports Opus output.
func (t *Transcoder) CheckEncoder(ctx context.Context) (*EncoderInfo, error) {
	info, err := probeEncoder(ctx, t.encoder)
	if err != nil {
		metrics.EncoderAvailable.Set(0)
		return nil, err
	}
	metrics.EncoderAvailable.Set(1)
	return info, nil
}

func probeEncoder(ctx context.Context, encoder string) (*EncoderInfo, error) {
	path, err := exec.LookPath(encoder)
	if err != nil {
		return nil, fmt.Errorf("%w: %s not found: %w", ErrEncoderSpawnFailed, encoder, err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	version, err := exec.CommandContext(ctx, path, "-hide_banner", "-version").Output()
	if err != nil {
		return nil, fmt.Errorf("failed to get encoder version: %w", err)
	}

	info := &EncoderInfo{Path: path}
	if line, _, _ := strings.Cut(string(version), "\n"); line != "" {
		info.Version = strings.TrimSpace(line)
	}

	encoders, err := exec.CommandContext(ctx, path, "-hide_banner", "-encoders").Output()
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("failed to list encoders: %w", err)
		}
	}
	info.Opus = strings.Contains(string(encoders), opusCodec)

	return info, nil
}
