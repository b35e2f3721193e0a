package metrics

// Recorder is the narrow interface the serving and telemetry layers depend
// on. Keeping it here avoids an import cycle and lets tests drop in a mock.
type Recorder interface {
	PredictionsInc()
	ValidationFailuresInc()
	LatencyObserve(float64)
	ScoreObserve(float64)
	LogWriteFailuresInc()
	TelemetryExportedAdd(float64)
	TelemetryDroppedInc()
	ErrorsInc()
}

// Wrapper adapts Metrics to Recorder. A nil *Wrapper is safe to call, so
// callers never need to branch on whether metrics are wired.
type Wrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *Wrapper {
	return &Wrapper{m: m}
}

func (w *Wrapper) PredictionsInc() {
	if w == nil {
		return
	}
	w.m.PredictionsTotal.Inc()
}

func (w *Wrapper) ValidationFailuresInc() {
	if w == nil {
		return
	}
	w.m.ValidationFailures.Inc()
}

func (w *Wrapper) LatencyObserve(v float64) {
	if w == nil {
		return
	}
	w.m.PredictionLatency.Observe(v)
}

func (w *Wrapper) ScoreObserve(v float64) {
	if w == nil {
		return
	}
	w.m.PredictionScores.Observe(v)
}

func (w *Wrapper) LogWriteFailuresInc() {
	if w == nil {
		return
	}
	w.m.LogWriteFailures.Inc()
}

func (w *Wrapper) TelemetryExportedAdd(v float64) {
	if w == nil {
		return
	}
	w.m.TelemetryExported.Add(v)
}

func (w *Wrapper) TelemetryDroppedInc() {
	if w == nil {
		return
	}
	w.m.TelemetryDropped.Inc()
}

func (w *Wrapper) ErrorsInc() {
	if w == nil {
		return
	}
	w.m.ErrorsTotal.Inc()
}
