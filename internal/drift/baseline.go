package drift

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"winequality-api/internal/model"

	"github.com/rs/zerolog/log"
)

// ConfigurationError indicates a required monitoring resource (the baseline
// snapshot) is missing or unreadable. It is surfaced on the operation that
// needed it and does not take down the prediction path.
type ConfigurationError struct {
	Resource string
	Err      error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("drift configuration: %s: %v", e.Resource, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Baseline is the immutable training-data snapshot used as the
// drift-comparison reference. Loaded once, never mutated.
type Baseline struct {
	samples map[string][]float64
	rows    int
}

// LoadBaseline reads the training CSV snapshot. The file carries the feature
// columns plus a trailing target column ("quality"), which is ignored here.
func LoadBaseline(path string) (*Baseline, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ConfigurationError{Resource: path, Err: err}
	}
	defer f.Close()

	b, err := readBaseline(f)
	if err != nil {
		return nil, &ConfigurationError{Resource: path, Err: err}
	}

	log.Info().Str("path", path).Int("rows", b.rows).Msg("baseline dataset loaded")
	return b, nil
}

func readBaseline(r io.Reader) (*Baseline, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	// Map schema features to their column positions; extra columns such as
	// the target are simply not tracked.
	cols := make(map[int]string)
	for i, name := range header {
		for _, feature := range model.FeatureNames {
			if name == feature {
				cols[i] = feature
			}
		}
	}
	if len(cols) != len(model.FeatureNames) {
		return nil, fmt.Errorf("baseline has %d of %d expected feature columns", len(cols), len(model.FeatureNames))
	}

	samples := make(map[string][]float64, len(model.FeatureNames))
	rows := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", rows+1, err)
		}

		for i, feature := range cols {
			v, err := strconv.ParseFloat(row[i], 64)
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", rows+1, feature, err)
			}
			samples[feature] = append(samples[feature], v)
		}
		rows++
	}

	if rows == 0 {
		return nil, fmt.Errorf("baseline is empty")
	}

	return &Baseline{samples: samples, rows: rows}, nil
}

// Samples returns the baseline values for a feature.
func (b *Baseline) Samples(feature string) []float64 {
	return b.samples[feature]
}

// Rows returns the number of baseline observations.
func (b *Baseline) Rows() int { return b.rows }
