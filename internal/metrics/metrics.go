// Package metrics exports Prometheus metrics for question runs and loaded datasets.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "haloqa"

// Metrics holds the haloqa collectors and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	QuestionRuns     *prometheus.CounterVec
	QuestionDuration *prometheus.HistogramVec
	DatasetRows      *prometheus.GaugeVec
	Reloads          *prometheus.CounterVec
}

// New registers the collectors in a fresh registry, alongside the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		QuestionRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "question_runs_total",
			Help:      "Question runs by question id and outcome",
		}, []string{"question", "outcome"}),
		QuestionDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "question_duration_seconds",
			Help:      "Time to compute one question",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}, []string{"question"}),
		DatasetRows: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_rows",
			Help:      "Rows in the currently served snapshot, per dataset",
		}, []string{"dataset"}),
		Reloads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_reloads_total",
			Help:      "Snapshot reloads by result",
		}, []string{"result"}),
	}
}

// ObserveRun records one question run.
func (m *Metrics) ObserveRun(id, outcome string, elapsed time.Duration) {
	m.QuestionRuns.WithLabelValues(id, outcome).Inc()
	m.QuestionDuration.WithLabelValues(id).Observe(elapsed.Seconds())
}

// SetDatasetRows replaces the per-dataset row gauges.
func (m *Metrics) SetDatasetRows(counts map[string]int) {
	m.DatasetRows.Reset()
	for name, n := range counts {
		m.DatasetRows.WithLabelValues(name).Set(float64(n))
	}
}

// ObserveReload counts a reload attempt.
func (m *Metrics) ObserveReload(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Reloads.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry for inspection.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}
