// Package model implements the model store: a serialized ElasticNet regression
// model bundled with its fitted preprocessor (Yeo-Johnson power transform
// followed by standardization). The artifact is loaded exactly once at process
// start and is read-only afterwards, so Predict needs no locking.
package model

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

// FeatureNames lists the wine-quality input features in artifact order.
// The names match the training data CSV header.
var FeatureNames = []string{
	"fixed acidity",
	"volatile acidity",
	"citric acid",
	"residual sugar",
	"chlorides",
	"free sulfur dioxide",
	"total sulfur dioxide",
	"density",
	"pH",
	"sulphates",
	"alcohol",
}

// FeatureVector is an ordered set of feature values keyed by feature name.
type FeatureVector map[string]float64

// LoadError indicates the model artifact is missing or incompatible with the
// expected feature schema. It is fatal at startup: the process must not serve.
type LoadError struct {
	Path   string
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("model load %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("model load %s: %s", e.Path, e.Reason)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Artifact is the on-disk JSON form of the trained model plus its fitted
// preprocessor parameters.
type Artifact struct {
	Version      string    `json:"version"`
	TrainedAt    time.Time `json:"trained_at"`
	Features     []string  `json:"features"`
	PowerLambdas []float64 `json:"power_lambdas"`
	ScalerMeans  []float64 `json:"scaler_means"`
	ScalerStds   []float64 `json:"scaler_stds"`
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
	OutputMin    float64   `json:"output_min"`
	OutputMax    float64   `json:"output_max"`
}

// Store holds the loaded model. Immutable after Load.
type Store struct {
	artifact Artifact
	index    map[string]int
}

// Load reads and validates the model artifact. Any schema disagreement with
// the expected feature set returns a *LoadError.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Reason: "read artifact", Err: err}
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, &LoadError{Path: path, Reason: "parse artifact", Err: err}
	}

	if err := validateArtifact(&a); err != nil {
		return nil, &LoadError{Path: path, Reason: "schema validation", Err: err}
	}

	index := make(map[string]int, len(a.Features))
	for i, name := range a.Features {
		index[name] = i
	}

	log.Info().
		Str("path", path).
		Str("version", a.Version).
		Time("trained_at", a.TrainedAt).
		Int("features", len(a.Features)).
		Msg("model artifact loaded")

	return &Store{artifact: a, index: index}, nil
}

func validateArtifact(a *Artifact) error {
	if len(a.Features) != len(FeatureNames) {
		return fmt.Errorf("expected %d features, artifact has %d", len(FeatureNames), len(a.Features))
	}
	for i, name := range a.Features {
		if name != FeatureNames[i] {
			return fmt.Errorf("feature %d: expected %q, artifact has %q", i, FeatureNames[i], name)
		}
	}

	n := len(a.Features)
	if len(a.PowerLambdas) != n || len(a.ScalerMeans) != n || len(a.ScalerStds) != n || len(a.Coefficients) != n {
		return fmt.Errorf("parameter arrays must all have %d entries (lambdas=%d means=%d stds=%d coefs=%d)",
			n, len(a.PowerLambdas), len(a.ScalerMeans), len(a.ScalerStds), len(a.Coefficients))
	}

	for i := 0; i < n; i++ {
		for _, v := range []float64{a.PowerLambdas[i], a.ScalerMeans[i], a.ScalerStds[i], a.Coefficients[i]} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("feature %q: non-finite parameter", a.Features[i])
			}
		}
		if a.ScalerStds[i] <= 0 {
			return fmt.Errorf("feature %q: scaler std must be positive, got %f", a.Features[i], a.ScalerStds[i])
		}
	}

	if math.IsNaN(a.Intercept) || math.IsInf(a.Intercept, 0) {
		return fmt.Errorf("non-finite intercept")
	}
	if a.OutputMax <= a.OutputMin {
		return fmt.Errorf("output range [%f, %f] is empty", a.OutputMin, a.OutputMax)
	}

	return nil
}

// Version returns the artifact version string.
func (s *Store) Version() string { return s.artifact.Version }

// TrainedAt returns when the model was trained.
func (s *Store) TrainedAt() time.Time { return s.artifact.TrainedAt }

// OutputRange returns the model's known prediction bounds.
func (s *Store) OutputRange() (float64, float64) {
	return s.artifact.OutputMin, s.artifact.OutputMax
}

// Predict transforms a validated feature vector through the fitted
// preprocessor and applies the linear model. Pure and side-effect free; the
// caller is responsible for validating that all features are present.
func (s *Store) Predict(v FeatureVector) float64 {
	a := &s.artifact

	sum := a.Intercept
	for i, name := range a.Features {
		x := yeoJohnson(v[name], a.PowerLambdas[i])
		x = (x - a.ScalerMeans[i]) / a.ScalerStds[i]
		sum += x * a.Coefficients[i]
	}

	// Wine quality scores live on a fixed scale; clamp like the training
	// targets were bounded.
	if sum < a.OutputMin {
		return a.OutputMin
	}
	if sum > a.OutputMax {
		return a.OutputMax
	}
	return sum
}

// yeoJohnson applies the Yeo-Johnson power transform with a fitted lambda.
func yeoJohnson(x, lambda float64) float64 {
	switch {
	case x >= 0 && lambda != 0:
		return (math.Pow(x+1, lambda) - 1) / lambda
	case x >= 0:
		return math.Log1p(x)
	case lambda != 2:
		return -(math.Pow(-x+1, 2-lambda) - 1) / (2 - lambda)
	default:
		return -math.Log1p(-x)
	}
}
