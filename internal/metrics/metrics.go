package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voice_transcoder_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voice_transcoder_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "voice_transcoder_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	HTTPPanicsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "voice_transcoder_http_panics_total",
			Help: "Total number of handler panics recovered by middleware",
		},
	)
)

// Conversion (request supervisor) metrics
var (
	ConversionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voice_transcoder_conversions_total",
			Help: "Total number of conversion requests by outcome",
		},
		[]string{"outcome"},
	)

	InputAudioSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "voice_transcoder_input_audio_seconds",
			Help:    "Duration of decoded input PCM in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
	)

	OutputBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voice_transcoder_output_bytes_total",
			Help: "Total number of encoded bytes written to clients",
		},
		[]string{"mode"},
	)

	StreamTerminationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voice_transcoder_stream_terminations_total",
			Help: "Responses terminated after headers were sent",
		},
		[]string{"reason"},
	)
)

// Encoder metrics
var (
	EncoderJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voice_transcoder_encoder_jobs_total",
			Help: "Total number of encoder jobs by terminal state",
		},
		[]string{"mode", "status"},
	)

	EncoderJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voice_transcoder_encoder_job_duration_seconds",
			Help:    "Encoder job duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"mode"},
	)

	EncoderJobsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "voice_transcoder_encoder_jobs_in_progress",
			Help: "Number of encoder processes currently running",
		},
	)

	EncoderSlotWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "voice_transcoder_encoder_slot_wait_seconds",
			Help:    "Time spent waiting for an encoder slot",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10, 30},
		},
	)

	EncoderAvailable = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "voice_transcoder_encoder_available",
			Help: "Whether the encoder executable resolved at the last check (1 = yes)",
		},
	)
)

// Temp artifact metrics
var (
	TempArtifactsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voice_transcoder_temp_artifacts_created_total",
			Help: "Total number of temp artifact paths reserved",
		},
		[]string{"kind"},
	)

	TempArtifactsRemoved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voice_transcoder_temp_artifacts_removed_total",
			Help: "Total number of temp artifact removals by result",
		},
		[]string{"kind", "result"},
	)

	TempArtifactsSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "voice_transcoder_temp_artifacts_swept_total",
			Help: "Stale temp artifacts removed at startup",
		},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "voice_transcoder_memory_usage_ratio",
			Help: "Go heap allocation as a fraction of the memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "voice_transcoder_memory_paused",
			Help: "Whether new conversions are held back by memory pressure (1 = yes)",
		},
	)

	MemoryPressureEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "voice_transcoder_memory_pressure_events_total",
			Help: "Number of times memory usage crossed the critical mark",
		},
	)

	MemoryAdmissionWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "voice_transcoder_memory_admission_wait_seconds",
			Help:    "Time requests spent waiting for memory pressure to clear",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 10, 30},
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "voice_transcoder_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version", "mode"},
	)
)
