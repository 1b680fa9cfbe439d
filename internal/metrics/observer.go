package metrics

import "voice-transcoder/internal/filesystem"

// filesystemObserver implements filesystem.Observer using the Prometheus
// metrics declared in this package.
type filesystemObserver struct{}

// NewFilesystemObserver creates an observer that records temp artifact
// metrics into the counters declared in metrics.go.
func NewFilesystemObserver() filesystem.Observer {
	return &filesystemObserver{}
}

func (o *filesystemObserver) ObserveCreated(kind string) {
	TempArtifactsCreated.WithLabelValues(kind).Inc()
}

func (o *filesystemObserver) ObserveRemoved(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	TempArtifactsRemoved.WithLabelValues(kind, result).Inc()
}

func (o *filesystemObserver) ObserveSwept(count int) {
	TempArtifactsSwept.Add(float64(count))
}
