// Package metrics records per-invocation and per-batch Prometheus metrics.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "repeat"

// Result label values.
const (
	ResultPass = "pass"
	ResultFail = "fail"
)

// Recorder owns a private registry so concurrent batches and tests do not
// share global state. A nil *Recorder discards everything.
type Recorder struct {
	registry *prometheus.Registry

	invocations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	batchFailed *prometheus.GaugeVec
	spawnErrors *prometheus.CounterVec
}

// NewRecorder creates a Recorder with all collectors registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "invocations_total",
			Help:      "Count of completed invocations by result",
		}, []string{"mode", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "invocation_duration_seconds",
			Help:      "Wall time of each invocation",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"mode"}),
		batchFailed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "batch_failed",
			Help:      "Failed invocations in the most recent batch",
		}, []string{"mode"}),
		spawnErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "spawn_errors_total",
			Help:      "Count of invocations whose process could not be started",
		}, []string{"mode"}),
	}
	r.registry.MustRegister(r.invocations, r.duration, r.batchFailed, r.spawnErrors)
	return r
}

// Registry exposes the underlying registry, e.g. for an HTTP handler.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// RecordInvocation counts one completed invocation.
func (r *Recorder) RecordInvocation(mode string, failed bool, seconds float64) {
	if r == nil {
		return
	}
	result := ResultPass
	if failed {
		result = ResultFail
	}
	r.invocations.WithLabelValues(mode, result).Inc()
	r.duration.WithLabelValues(mode).Observe(seconds)
}

// RecordSpawnError counts an invocation that never started.
func (r *Recorder) RecordSpawnError(mode string) {
	if r == nil {
		return
	}
	r.spawnErrors.WithLabelValues(mode).Inc()
}

// RecordBatch sets the failed gauge for a finished batch.
func (r *Recorder) RecordBatch(mode string, failed int) {
	if r == nil {
		return
	}
	r.batchFailed.WithLabelValues(mode).Set(float64(failed))
}

// WriteTextfile writes all metrics in the text exposition format to path,
// suitable for the node exporter textfile collector. An empty path is a no-op.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("writing metrics %s: %w", path, err)
	}
	return nil
}
