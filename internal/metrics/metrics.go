// Package metrics provides Prometheus metrics for the grading service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "grading"

// Metrics holds the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	modelCalls       *prometheus.CounterVec
	modelLatency     *prometheus.HistogramVec
	gradings         *prometheus.CounterVec
	gradingLatency   prometheus.Histogram
	batchTasks       *prometheus.CounterVec
	calibrationRows  prometheus.Counter
	persistenceFails *prometheus.CounterVec
}

// New registers all collectors on a private registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		modelCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "calls_total",
			Help:      "Model grading calls by model and outcome.",
		}, []string{"model", "outcome"}),
		modelLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "call_duration_seconds",
			Help:      "Latency of one model grading call including retries.",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 40, 60, 90, 120, 180},
		}, []string{"model"}),
		gradings: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ensemble",
			Name:      "gradings_total",
			Help:      "Ensemble gradings by result.",
		}, []string{"result"}),
		gradingLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ensemble",
			Name:      "grading_duration_seconds",
			Help:      "Wall time of one ensemble grading.",
			Buckets:   []float64{5, 10, 20, 40, 60, 90, 120, 180, 300},
		}),
		batchTasks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "tasks_total",
			Help:      "Batch task transitions by status.",
		}, []string{"status"}),
		calibrationRows: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "calibration",
			Name:      "rows_updated_total",
			Help:      "Calibration rows written by recalibration runs.",
		}),
		persistenceFails: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "write_failures_total",
			Help:      "Best-effort ledger writes that failed.",
		}, []string{"operation"}),
	}
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveModelCall records one model call
func (m *Metrics) ObserveModelCall(model string, succeeded bool, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if !succeeded {
		outcome = "failure"
	}
	m.modelCalls.WithLabelValues(model, outcome).Inc()
	m.modelLatency.WithLabelValues(model).Observe(d.Seconds())
}

// ObserveGrading records one ensemble run
func (m *Metrics) ObserveGrading(succeeded bool, d time.Duration) {
	if m == nil {
		return
	}
	result := "graded"
	if !succeeded {
		result = "all_failed"
	}
	m.gradings.WithLabelValues(result).Inc()
	m.gradingLatency.Observe(d.Seconds())
}

// IncBatchTask counts a task status transition
func (m *Metrics) IncBatchTask(status string) {
	if m == nil {
		return
	}
	m.batchTasks.WithLabelValues(status).Inc()
}

// AddCalibrationRows counts rows written by a recalibration
func (m *Metrics) AddCalibrationRows(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.calibrationRows.Add(float64(n))
}

// IncPersistenceFailure counts a swallowed ledger error
func (m *Metrics) IncPersistenceFailure(operation string) {
	if m == nil {
		return
	}
	m.persistenceFails.WithLabelValues(operation).Inc()
}
