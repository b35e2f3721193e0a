package drift

import (
	"math"
	"math/rand"
	"strings"
	"testing"
	"time"

	"winequality-api/internal/model"
	"winequality-api/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	records []storage.InferenceRecord
	err     error
}

func (f *fakeReader) Recent(n int) ([]storage.InferenceRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.records) > n {
		return f.records[len(f.records)-n:], nil
	}
	return f.records, nil
}

// gaussianBaseline builds a baseline where every feature is N(mean, 1).
func gaussianBaseline(rng *rand.Rand, rows int, mean float64) *Baseline {
	samples := make(map[string][]float64, len(model.FeatureNames))
	for _, name := range model.FeatureNames {
		vals := make([]float64, rows)
		for i := range vals {
			vals[i] = mean + rng.NormFloat64()
		}
		samples[name] = vals
	}
	return &Baseline{samples: samples, rows: rows}
}

// recordsAround generates inference records with every feature N(mean, 1)
// except the overrides.
func recordsAround(rng *rand.Rand, n int, mean float64, overrides map[string]float64) []storage.InferenceRecord {
	records := make([]storage.InferenceRecord, n)
	for i := range records {
		features := make(model.FeatureVector, len(model.FeatureNames))
		for _, name := range model.FeatureNames {
			m := mean
			if o, ok := overrides[name]; ok {
				m = o
			}
			features[name] = m + rng.NormFloat64()
		}
		records[i] = storage.InferenceRecord{Features: features, PredictedQuality: 5, Timestamp: time.Now()}
	}
	return records
}

func TestCheck_IdenticalDistributions(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	baseline := gaussianBaseline(rng, 500, 10)
	reader := &fakeReader{records: recordsAround(rng, 200, 10, nil)}

	checker, err := NewChecker(baseline, reader, Config{Threshold: 0.2, MinSamples: 30, Window: 1000})
	require.NoError(t, err)

	report, err := checker.Check()
	require.NoError(t, err)

	assert.False(t, report.InsufficientData)
	assert.False(t, report.OverallDriftDetected, "same distribution must not drift")
	assert.Zero(t, report.DriftShare)
	for name, fd := range report.Features {
		assert.False(t, fd.Drifted, "feature %s flagged on identical distributions", name)
	}
}

func TestCheck_InsufficientData(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	baseline := gaussianBaseline(rng, 100, 10)
	reader := &fakeReader{records: recordsAround(rng, 5, 10, nil)}

	checker, err := NewChecker(baseline, reader, Config{MinSamples: 30})
	require.NoError(t, err)

	report, err := checker.Check()
	require.NoError(t, err, "small windows must not raise")

	assert.True(t, report.InsufficientData)
	assert.False(t, report.OverallDriftDetected)
	assert.Equal(t, 5, report.SampleCount)
	assert.Empty(t, report.Features)
}

func TestCheck_ShiftedAlcohol(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	baseline := gaussianBaseline(rng, 500, 10)

	// Live traffic shifted from N(10,1) to N(14,1) on alcohol only.
	reader := &fakeReader{records: recordsAround(rng, 100, 10, map[string]float64{"alcohol": 14})}

	for _, statistic := range []Statistic{PopulationStabilityIndex, KolmogorovSmirnov} {
		t.Run(string(statistic), func(t *testing.T) {
			checker, err := NewChecker(baseline, reader, Config{Statistic: statistic, Threshold: 0.2, MinSamples: 30, Window: 1000})
			require.NoError(t, err)

			report, err := checker.Check()
			require.NoError(t, err)

			assert.True(t, report.Features["alcohol"].Drifted, "shifted alcohol must drift")
			assert.True(t, report.OverallDriftDetected)
			assert.False(t, report.Features["pH"].Drifted, "unshifted feature must stay stable")
		})
	}
}

func TestCheck_PerFeatureThreshold(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	baseline := gaussianBaseline(rng, 500, 10)
	reader := &fakeReader{records: recordsAround(rng, 100, 10, nil)}

	// An absurdly low override flags even sampling noise.
	checker, err := NewChecker(baseline, reader, Config{
		Threshold:  0.2,
		Thresholds: map[string]float64{"pH": 1e-9},
		MinSamples: 30,
	})
	require.NoError(t, err)

	report, err := checker.Check()
	require.NoError(t, err)

	assert.True(t, report.Features["pH"].Drifted)
	assert.InDelta(t, 1e-9, report.Features["pH"].Threshold, 1e-12)
	assert.Equal(t, 0.2, report.Features["alcohol"].Threshold)
}

func TestPSI(t *testing.T) {
	rng := rand.New(rand.NewSource(5))

	a := make([]float64, 1000)
	for i := range a {
		a[i] = 10 + rng.NormFloat64()
	}

	t.Run("identical is zero", func(t *testing.T) {
		assert.InDelta(t, 0, psi(a, a), 1e-9)
	})

	t.Run("symmetric", func(t *testing.T) {
		b := make([]float64, 1000)
		for i := range b {
			b[i] = 12 + rng.NormFloat64()
		}
		assert.InDelta(t, psi(a, b), psi(b, a), 1e-9)
	})

	t.Run("grows with divergence", func(t *testing.T) {
		small := make([]float64, 1000)
		large := make([]float64, 1000)
		for i := range small {
			small[i] = 10.5 + rng.NormFloat64()
			large[i] = 14 + rng.NormFloat64()
		}
		assert.Greater(t, psi(a, large), psi(a, small))
	})

	t.Run("empty samples", func(t *testing.T) {
		assert.Zero(t, psi(nil, a))
		assert.Zero(t, psi(a, nil))
	})
}

func TestKSStatistic(t *testing.T) {
	a := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	t.Run("identical is zero", func(t *testing.T) {
		assert.InDelta(t, 0, ksStatistic(a, a), 1e-9)
	})

	t.Run("disjoint is one", func(t *testing.T) {
		b := []float64{101, 102, 103, 104, 105}
		assert.InDelta(t, 1.0, ksStatistic(a, b), 1e-9)
	})

	t.Run("symmetric", func(t *testing.T) {
		b := []float64{2, 4, 6, 8, 10, 12}
		assert.InDelta(t, ksStatistic(a, b), ksStatistic(b, a), 1e-9)
	})

	t.Run("tied values", func(t *testing.T) {
		// CDFs diverge most at 4: F_a(4)=1.0 vs F_b(4)=0.5.
		x := []float64{1, 2, 3, 4}
		y := []float64{2, 3, 5, 6}
		assert.InDelta(t, 0.5, ksStatistic(x, y), 1e-9)
		assert.InDelta(t, 0.5, ksStatistic(y, x), 1e-9)
	})

	t.Run("repeated values", func(t *testing.T) {
		x := []float64{1, 1, 2}
		y := []float64{1, 2, 2}
		assert.InDelta(t, 1.0/3.0, ksStatistic(x, y), 1e-9)
		assert.InDelta(t, 1.0/3.0, ksStatistic(y, x), 1e-9)
	})
}

func TestLoadBaseline(t *testing.T) {
	header := strings.Join(model.FeatureNames, ",") + ",quality"
	csv := header + "\n" +
		"7.4,0.7,0.0,1.9,0.076,11.0,34.0,0.9978,3.51,0.56,9.4,5\n" +
		"7.8,0.88,0.0,2.6,0.098,25.0,67.0,0.9968,3.2,0.68,9.8,5\n"

	b, err := readBaseline(strings.NewReader(csv))
	require.NoError(t, err)

	assert.Equal(t, 2, b.Rows())
	assert.Equal(t, []float64{9.4, 9.8}, b.Samples("alcohol"))
	assert.Equal(t, []float64{7.4, 7.8}, b.Samples("fixed acidity"))
	assert.Nil(t, b.Samples("quality"), "target column must be ignored")
}

func TestLoadBaseline_Missing(t *testing.T) {
	_, err := LoadBaseline("/nonexistent/data.csv")
	require.Error(t, err)

	var cerr *ConfigurationError
	assert.ErrorAs(t, err, &cerr)
}

func TestReadBaseline_MissingColumns(t *testing.T) {
	csv := "alcohol,quality\n9.4,5\n"
	_, err := readBaseline(strings.NewReader(csv))
	assert.Error(t, err)
}

func TestReadBaseline_Empty(t *testing.T) {
	header := strings.Join(model.FeatureNames, ",") + ",quality"
	_, err := readBaseline(strings.NewReader(header + "\n"))
	assert.Error(t, err)
}

func TestCheck_StatisticIsFinite(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	baseline := gaussianBaseline(rng, 100, 10)
	reader := &fakeReader{records: recordsAround(rng, 50, 10, map[string]float64{"alcohol": 50})}

	checker, err := NewChecker(baseline, reader, Config{MinSamples: 30})
	require.NoError(t, err)

	report, err := checker.Check()
	require.NoError(t, err)

	for name, fd := range report.Features {
		assert.False(t, math.IsNaN(fd.Value) || math.IsInf(fd.Value, 0), "feature %s produced non-finite statistic", name)
	}
}
