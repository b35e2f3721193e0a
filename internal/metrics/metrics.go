// Package metrics defines the Prometheus metrics exposed by the prediction
// service: request counts, latency, log-write health, drift scores, and
// telemetry export health.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Prediction metrics
	PredictionsTotal   prometheus.Counter   // Total predictions served
	ValidationFailures prometheus.Counter   // Requests rejected on validation
	PredictionLatency  prometheus.Histogram // End-to-end prediction latency
	PredictionScores   prometheus.Histogram // Distribution of predicted quality scores

	// Inference log metrics
	LogWriteFailures prometheus.Counter // Appends dropped after retry

	// Drift metrics
	DriftChecksTotal prometheus.Counter // Drift checks performed
	DriftShare       prometheus.Gauge   // Share of drifted features (0 to 1)
	DriftedFeatures  prometheus.Gauge   // Number of currently drifted features

	// Telemetry export metrics
	TelemetryExported prometheus.Counter // Points delivered to the external sink
	TelemetryDropped  prometheus.Counter // Points dropped on buffer overflow or export failure

	// System metrics
	ErrorsTotal prometheus.Counter // Total internal errors
}

// New creates and registers all metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry, which keeps tests
// isolated from the global Prometheus state.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		PredictionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Total number of predictions served",
		}),
		ValidationFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "validation_failures_total",
			Help: "Total number of requests rejected during input validation",
		}),
		PredictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "prediction_latency_seconds",
			Help:    "Prediction request latency in seconds (end-to-end)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		PredictionScores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "prediction_scores",
			Help:    "Distribution of predicted wine quality scores",
			Buckets: prometheus.LinearBuckets(3, 0.5, 13),
		}),
		LogWriteFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "log_write_failures_total",
			Help: "Total number of inference log appends dropped after retry",
		}),
		DriftChecksTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "drift_checks_total",
			Help: "Total number of drift checks performed",
		}),
		DriftShare: factory.NewGauge(prometheus.GaugeOpts{
			Name: "data_drift_score",
			Help: "Share of drifted features from the last drift check (0 to 1)",
		}),
		DriftedFeatures: factory.NewGauge(prometheus.GaugeOpts{
			Name: "drifted_features",
			Help: "Number of features marked drifted by the last drift check",
		}),
		TelemetryExported: factory.NewCounter(prometheus.CounterOpts{
			Name: "telemetry_exported_total",
			Help: "Total number of telemetry points delivered to the external sink",
		}),
		TelemetryDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "telemetry_dropped_total",
			Help: "Total number of telemetry points dropped",
		}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors encountered",
		}),
	}
}

// RecordDriftReport updates the drift gauges from a completed check.
func (m *Metrics) RecordDriftReport(driftShare float64, driftedFeatures int) {
	m.DriftChecksTotal.Inc()
	m.DriftShare.Set(driftShare)
	m.DriftedFeatures.Set(float64(driftedFeatures))
}
