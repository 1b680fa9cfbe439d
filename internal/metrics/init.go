package metrics

// Label values shared with the transcoder and handlers packages.
var (
	Modes          = []string{"pipe", "staged"}
	JobStatuses    = []string{"succeeded", "failed", "spawn_error", "timeout", "canceled"}
	Outcomes       = []string{"completed", "malformed", "too_large", "encoder_failed", "canceled", "stream_terminated"}
	ArtifactKinds  = []string{"input", "output"}
	StreamReasons  = []string{"client_gone", "write_timeout", "encoder", "io"}
	removalResults = []string{"ok", "error"}
)

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, mode := range Modes {
		for _, status := range JobStatuses {
			EncoderJobsTotal.WithLabelValues(mode, status)
		}
		EncoderJobDuration.WithLabelValues(mode)
		OutputBytesTotal.WithLabelValues(mode)
	}

	for _, outcome := range Outcomes {
		ConversionsTotal.WithLabelValues(outcome)
	}

	for _, kind := range ArtifactKinds {
		TempArtifactsCreated.WithLabelValues(kind)
		for _, result := range removalResults {
			TempArtifactsRemoved.WithLabelValues(kind, result)
		}
	}

	for _, reason := range StreamReasons {
		StreamTerminationsTotal.WithLabelValues(reason)
	}
}
