package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewWithRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewWithRegistry(registry)

	m.PredictionsTotal.Inc()
	m.PredictionsTotal.Inc()
	if got := testutil.ToFloat64(m.PredictionsTotal); got != 2 {
		t.Errorf("expected 2 predictions, got %f", got)
	}

	m.ValidationFailures.Inc()
	if got := testutil.ToFloat64(m.ValidationFailures); got != 1 {
		t.Errorf("expected 1 validation failure, got %f", got)
	}
}

func TestRecordDriftReport(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.RecordDriftReport(0.27, 3)
	m.RecordDriftReport(0.0, 0)

	if got := testutil.ToFloat64(m.DriftChecksTotal); got != 2 {
		t.Errorf("expected 2 drift checks, got %f", got)
	}
	if got := testutil.ToFloat64(m.DriftShare); got != 0.0 {
		t.Errorf("expected drift share gauge at last value 0.0, got %f", got)
	}
	if got := testutil.ToFloat64(m.DriftedFeatures); got != 0 {
		t.Errorf("expected 0 drifted features, got %f", got)
	}
}

func TestWrapper_NilSafe(t *testing.T) {
	var w *Wrapper

	// None of these may panic without backing metrics.
	w.PredictionsInc()
	w.ValidationFailuresInc()
	w.LatencyObserve(0.01)
	w.ScoreObserve(5.5)
	w.LogWriteFailuresInc()
	w.TelemetryExportedAdd(3)
	w.TelemetryDroppedInc()
	w.ErrorsInc()
}

func TestWrapper_Forwards(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())
	w := NewWrapper(m)

	w.PredictionsInc()
	w.TelemetryExportedAdd(5)

	if got := testutil.ToFloat64(m.PredictionsTotal); got != 1 {
		t.Errorf("expected 1 prediction, got %f", got)
	}
	if got := testutil.ToFloat64(m.TelemetryExported); got != 5 {
		t.Errorf("expected 5 exported points, got %f", got)
	}
}
