package filesystem

// Observer records temp artifact lifecycle events. Implementations are
// provided by the metrics package to break the import cycle between
// filesystem and metrics.
type Observer interface {
	// ObserveCreated records that an artifact path was handed to a job.
	// kind is the artifact prefix: "input" or "output".
	ObserveCreated(kind string)

	// ObserveRemoved records a completed removal, successful or not.
	ObserveRemoved(kind string, err error)

	// ObserveSwept records stale artifacts deleted by Sweep.
	ObserveSwept(count int)
}

// defaultObserver is the package-level observer set at startup.
// If nil, metric recording is silently skipped (safe for tests).
var defaultObserver Observer

// SetObserver sets the package-level metrics observer.
// Call this once at startup after creating the observer implementation.
func SetObserver(o Observer) {
	defaultObserver = o
}

func observeCreated(kind string) {
	if defaultObserver != nil {
		defaultObserver.ObserveCreated(kind)
	}
}

func observeRemoved(kind string, err error) {
	if defaultObserver != nil {
		defaultObserver.ObserveRemoved(kind, err)
	}
}

func observeSwept(count int) {
	if defaultObserver != nil && count > 0 {
		defaultObserver.ObserveSwept(count)
	}
}
