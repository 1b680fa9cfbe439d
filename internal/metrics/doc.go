// Package metrics provides Prometheus instrumentation for the voice transcoder.
//
// All metrics are prefixed with "voice_transcoder_" and registered on the
// default registry via promauto. Mount promhttp.Handler() to expose them:
//
//	mux.Handle("/metrics", promhttp.Handler())
//
// # Metric Groups
//
//   - HTTP: request totals, latency, in-flight requests, recovered panics
//   - Conversion: per-request outcome, decoded input length, bytes written,
//     streams terminated after headers
//   - Encoder: job totals by mode and terminal state, duration, running
//     processes, time spent waiting for a concurrency slot, availability
//   - Temp artifacts: paths reserved, removals (ok/error), startup sweeps
//
// # Prometheus Queries
//
// Conversion failure ratio:
//
//	sum(rate(voice_transcoder_conversions_total{outcome!="completed"}[5m])) /
//	sum(rate(voice_transcoder_conversions_total[5m]))
//
// Leaked artifact detector (should stay flat):
//
//	sum(voice_transcoder_temp_artifacts_created_total) -
//	sum(voice_transcoder_temp_artifacts_removed_total)
//
// P95 encoder latency by mode:
//
//	histogram_quantile(0.95, sum(rate(voice_transcoder_encoder_job_duration_seconds_bucket[5m])) by (le, mode))
package metrics
