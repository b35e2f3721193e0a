// Package serving implements the prediction request pipeline: validate the
// raw input, run the model, append to the inference log, and emit telemetry.
// Only validation and prediction can fail the request; log and telemetry
// trouble degrade observability, never the response.
package serving

import (
	"fmt"
	"math"
	"strings"
	"time"

	"winequality-api/internal/metrics"
	"winequality-api/internal/model"
	"winequality-api/internal/storage"
	"winequality-api/internal/telemetry"

	"github.com/rs/zerolog/log"
)

// ValidationError reports bad or missing input features. Request-scoped and
// user-visible; never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid input: field %q %s", e.Field, e.Reason)
}

// PredictionResult is the outcome of one served prediction.
type PredictionResult struct {
	Input            model.FeatureVector `json:"input"`
	PredictedQuality float64             `json:"predicted_quality"`
	Timestamp        time.Time           `json:"timestamp"`
}

// AppendWriter is the slice of the inference log the service needs.
type AppendWriter interface {
	Append(storage.InferenceRecord) error
}

// Publisher receives each result for live streaming; implementations must not
// block.
type Publisher interface {
	Publish(PredictionResult)
}

// Service handles prediction requests. Safe for concurrent use: the model
// store is read-only and the log serializes its own appends.
type Service struct {
	store   *model.Store
	logs    AppendWriter
	rec     metrics.Recorder
	emitter *telemetry.Exporter
	hub     Publisher
}

// New wires the prediction service. logs, rec, emitter, and hub may each be
// nil; the corresponding side effect is skipped.
func New(store *model.Store, logs AppendWriter, rec metrics.Recorder, emitter *telemetry.Exporter, hub Publisher) *Service {
	return &Service{store: store, logs: logs, rec: rec, emitter: emitter, hub: hub}
}

// HandlePredict validates the raw request body, predicts, appends one log
// entry, and emits telemetry. On validation failure nothing is logged or
// predicted.
func (s *Service) HandlePredict(raw map[string]interface{}) (PredictionResult, error) {
	start := time.Now()

	vector, err := ValidateFeatures(raw)
	if err != nil {
		if s.rec != nil {
			s.rec.ValidationFailuresInc()
		}
		return PredictionResult{}, err
	}

	result := PredictionResult{
		Input:            vector,
		PredictedQuality: s.store.Predict(vector),
		Timestamp:        time.Now(),
	}

	s.appendLog(result)

	if s.rec != nil {
		s.rec.PredictionsInc()
		s.rec.ScoreObserve(result.PredictedQuality)
		s.rec.LatencyObserve(time.Since(start).Seconds())
	}
	if s.emitter != nil {
		s.emitter.Counter("predictions", 1)
		s.emitter.Gauge("prediction_latency_ms", float64(time.Since(start).Milliseconds()))
	}
	if s.hub != nil {
		s.hub.Publish(result)
	}

	return result, nil
}

// appendLog writes the inference record with a single retry. Failures degrade
// to a warning; the prediction response is already correct without the log.
func (s *Service) appendLog(result PredictionResult) {
	if s.logs == nil {
		return
	}

	record := storage.InferenceRecord{
		Features:         result.Input,
		PredictedQuality: result.PredictedQuality,
		Timestamp:        result.Timestamp,
	}

	err := s.logs.Append(record)
	if err != nil {
		err = s.logs.Append(record)
	}
	if err != nil {
		log.Warn().Err(err).Msg("inference log append dropped after retry")
		if s.rec != nil {
			s.rec.LogWriteFailuresInc()
		}
	}
}

// ValidateFeatures checks that every required feature is present with a
// finite numeric value. Feature names are accepted both in CSV form
// ("fixed acidity") and underscore form ("fixed_acidity").
func ValidateFeatures(raw map[string]interface{}) (model.FeatureVector, error) {
	normalized := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		name := strings.ReplaceAll(k, "_", " ")
		if _, dup := normalized[name]; dup {
			// Both spellings of the same feature in one payload is
			// ambiguous, not a tolerable alias.
			return nil, &ValidationError{Field: name, Reason: "appears more than once"}
		}
		normalized[name] = v
	}

	vector := make(model.FeatureVector, len(model.FeatureNames))
	for _, name := range model.FeatureNames {
		v, ok := normalized[name]
		if !ok {
			return nil, &ValidationError{Field: name, Reason: "is missing"}
		}

		f, ok := toFloat(v)
		if !ok {
			return nil, &ValidationError{Field: name, Reason: "is not a number"}
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, &ValidationError{Field: name, Reason: "is not finite"}
		}

		vector[name] = f
	}

	return vector, nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
