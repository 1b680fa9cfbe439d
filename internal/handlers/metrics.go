package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsHandler returns the Prometheus metrics handler. Each scrape first
// refreshes the encoder availability gauge through the cached encoder probe.
func (h *Handlers) MetricsHandler() http.Handler {
	exporter := promhttp.InstrumentMetricHandler(
		prometheus.DefaultRegisterer,
		promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{}),
	)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.encoder.status(r.Context())
		exporter.ServeHTTP(w, r)
	})
}
