// Package drift compares recent live inference traffic against the training
// baseline distribution and reports per-feature divergence.
package drift

import (
	"fmt"
	"math"
	"sort"
	"time"

	"winequality-api/internal/model"
	"winequality-api/internal/storage"

	"github.com/rs/zerolog/log"
)

// Statistic identifies a distributional-distance measure. Both choices are
// zero for identical distributions and grow with divergence.
type Statistic string

const (
	PopulationStabilityIndex Statistic = "psi"
	KolmogorovSmirnov        Statistic = "ks"
)

const psiBins = 10

// FeatureDrift is the per-feature portion of a drift report.
type FeatureDrift struct {
	Statistic Statistic `json:"statistic"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	Drifted   bool      `json:"drifted"`
}

// Report is the result of one drift check. Built fresh per invocation and not
// persisted here.
type Report struct {
	Features             map[string]FeatureDrift `json:"features"`
	OverallDriftDetected bool                    `json:"overall_drift_detected"`
	DriftShare           float64                 `json:"drift_share"`
	SampleCount          int                     `json:"sample_count"`
	InsufficientData     bool                    `json:"insufficient_data"`
	GeneratedAt          time.Time               `json:"generated_at"`
}

// RecentReader supplies the live sample window, usually the inference log.
type RecentReader interface {
	Recent(n int) ([]storage.InferenceRecord, error)
}

// Config parameterizes the checker; the statistic and thresholds are policy,
// not fixed.
type Config struct {
	Statistic  Statistic
	Threshold  float64
	Thresholds map[string]float64
	Window     int
	MinSamples int
}

// Checker computes drift reports on demand. The baseline is cached for the
// process lifetime; the log is re-read on every check.
type Checker struct {
	baseline *Baseline
	logs     RecentReader
	cfg      Config
}

// NewChecker creates a drift checker over a loaded baseline and the
// inference log.
func NewChecker(baseline *Baseline, logs RecentReader, cfg Config) (*Checker, error) {
	if baseline == nil {
		return nil, &ConfigurationError{Resource: "baseline", Err: fmt.Errorf("not loaded")}
	}
	if cfg.Window <= 0 {
		cfg.Window = 1000
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = 30
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 0.2
	}
	if cfg.Statistic == "" {
		cfg.Statistic = PopulationStabilityIndex
	}
	return &Checker{baseline: baseline, logs: logs, cfg: cfg}, nil
}

func (c *Checker) threshold(feature string) float64 {
	if t, exists := c.cfg.Thresholds[feature]; exists {
		return t
	}
	return c.cfg.Threshold
}

// Check loads the recent log window and scores every feature against the
// baseline. A window smaller than the configured minimum yields a report
// flagged insufficient-data instead of statistics computed on noise.
func (c *Checker) Check() (*Report, error) {
	records, err := c.logs.Recent(c.cfg.Window)
	if err != nil {
		return nil, fmt.Errorf("read inference window: %w", err)
	}

	report := &Report{
		Features:    make(map[string]FeatureDrift),
		SampleCount: len(records),
		GeneratedAt: time.Now(),
	}

	if len(records) < c.cfg.MinSamples {
		report.InsufficientData = true
		log.Debug().
			Int("samples", len(records)).
			Int("min_samples", c.cfg.MinSamples).
			Msg("drift check skipped, window too small")
		return report, nil
	}

	drifted := 0
	for _, feature := range model.FeatureNames {
		current := make([]float64, 0, len(records))
		for _, r := range records {
			current = append(current, r.Features[feature])
		}

		value := c.score(c.baseline.Samples(feature), current)
		threshold := c.threshold(feature)

		fd := FeatureDrift{
			Statistic: c.cfg.Statistic,
			Value:     value,
			Threshold: threshold,
			Drifted:   value > threshold,
		}
		if fd.Drifted {
			drifted++
			log.Warn().
				Str("feature", feature).
				Str("statistic", string(fd.Statistic)).
				Float64("value", value).
				Float64("threshold", threshold).
				Msg("feature drift detected")
		}
		report.Features[feature] = fd
	}

	report.OverallDriftDetected = drifted > 0
	report.DriftShare = float64(drifted) / float64(len(model.FeatureNames))
	return report, nil
}

func (c *Checker) score(baseline, current []float64) float64 {
	switch c.cfg.Statistic {
	case KolmogorovSmirnov:
		return ksStatistic(baseline, current)
	default:
		return psi(baseline, current)
	}
}

// psi computes the population stability index between two samples over a
// shared equal-width binning. Bins empty on either side contribute via a
// small floor probability rather than being skipped, so mass moving into
// previously unpopulated regions still registers.
func psi(baseline, current []float64) float64 {
	if len(baseline) == 0 || len(current) == 0 {
		return 0
	}

	minVal := math.Min(minOf(baseline), minOf(current))
	maxVal := math.Max(maxOf(baseline), maxOf(current))
	if maxVal == minVal {
		return 0
	}

	binWidth := (maxVal - minVal) / psiBins
	baselineBins := binCounts(baseline, minVal, binWidth)
	currentBins := binCounts(current, minVal, binWidth)

	const floor = 1e-4
	score := 0.0
	for i := 0; i < psiBins; i++ {
		p := math.Max(float64(baselineBins[i])/float64(len(baseline)), floor)
		q := math.Max(float64(currentBins[i])/float64(len(current)), floor)
		score += (q - p) * math.Log(q/p)
	}

	return score
}

// ksStatistic computes the two-sample Kolmogorov-Smirnov statistic: the
// maximum distance between the empirical CDFs.
func ksStatistic(baseline, current []float64) float64 {
	if len(baseline) == 0 || len(current) == 0 {
		return 0
	}

	a := append([]float64(nil), baseline...)
	b := append([]float64(nil), current...)
	sort.Float64s(a)
	sort.Float64s(b)

	maxDiff := 0.0
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case b[j] < a[i]:
			j++
		default:
			// Values tied across the samples must advance both CDFs
			// together; consume the full run on each side before comparing.
			v := a[i]
			for i < len(a) && a[i] == v {
				i++
			}
			for j < len(b) && b[j] == v {
				j++
			}
		}
		diff := math.Abs(float64(i)/float64(len(a)) - float64(j)/float64(len(b)))
		if diff > maxDiff {
			maxDiff = diff
		}
	}

	return maxDiff
}

func binCounts(samples []float64, minVal, binWidth float64) [psiBins]int {
	var bins [psiBins]int
	for _, s := range samples {
		bin := int((s - minVal) / binWidth)
		if bin >= psiBins {
			bin = psiBins - 1
		}
		if bin < 0 {
			bin = 0
		}
		bins[bin]++
	}
	return bins
}

func minOf(s []float64) float64 {
	m := s[0]
	for _, v := range s {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(s []float64) float64 {
	m := s[0]
	for _, v := range s {
		if v > m {
			m = v
		}
	}
	return m
}
