package cfg

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load consults so tests see only what they
// set themselves.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_FILE", "LISTEN_PORT", "METRICS_PORT", "MODEL_PATH", "BASELINE_PATH",
		"DATA_PATH", "REPORTS_DIR", "DRIFT_STATISTIC", "DRIFT_THRESHOLD",
		"DRIFT_THRESHOLDS", "DRIFT_WINDOW", "MIN_SAMPLES", "OTLP_ENDPOINT",
		"GRAFANA_USER", "GRAFANA_TOKEN", "TELEMETRY_BUFFER", "EXPORT_INTERVAL",
		"READ_TIMEOUT", "WRITE_TIMEOUT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, s.ListenPort)
	assert.Equal(t, 9090, s.MetricsPort)
	assert.Equal(t, "artifacts/model_trainer/model.json", s.ModelPath)
	assert.Equal(t, "artifacts/data_ingestion/data.csv", s.BaselinePath)
	assert.Equal(t, "psi", s.DriftStatistic)
	assert.Equal(t, 0.2, s.DriftThreshold)
	assert.Equal(t, 1000, s.DriftWindow)
	assert.Equal(t, 30, s.MinSamples)
	assert.Equal(t, 256, s.TelemetryBuffer)
	assert.Equal(t, 5*time.Second, s.ExportInterval)
	assert.Empty(t, s.TelemetryEndpoint)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LISTEN_PORT", "9000")
	t.Setenv("DRIFT_STATISTIC", "ks")
	t.Setenv("DRIFT_THRESHOLD", "0.1")
	t.Setenv("DRIFT_THRESHOLDS", "alcohol=0.05, pH=0.35")
	t.Setenv("OTLP_ENDPOINT", "https://otlp.example.com")
	t.Setenv("GRAFANA_USER", "123456")
	t.Setenv("GRAFANA_TOKEN", "glc_secret")

	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, s.ListenPort)
	assert.Equal(t, "ks", s.DriftStatistic)
	assert.Equal(t, 0.1, s.DriftThreshold)
	assert.Equal(t, 0.05, s.DriftThresholds["alcohol"])
	assert.Equal(t, 0.35, s.DriftThresholds["pH"])
	assert.Equal(t, "https://otlp.example.com", s.TelemetryEndpoint)
	assert.Equal(t, "123456", s.TelemetryUser)
	assert.Equal(t, "glc_secret", s.TelemetryToken)
}

func TestLoad_YAML(t *testing.T) {
	clearEnv(t)

	yaml := `
server:
  listenPort: 8181
  metricsPort: 9191
  readTimeout: "20s"
  writeTimeout: "40s"
model:
  path: "models/wine.json"
drift:
  baselinePath: "data/train.csv"
  statistic: "ks"
  threshold: 0.15
  thresholds:
    alcohol: 0.05
  window: 500
  minSamples: 50
telemetry:
  endpoint: "https://otlp.example.com"
  buffer: 128
  exportInterval: "10s"
system:
  dataPath: "data/predictions"
  reportsDir: "reports"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("CONFIG_FILE", path)

	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8181, s.ListenPort)
	assert.Equal(t, 9191, s.MetricsPort)
	assert.Equal(t, "models/wine.json", s.ModelPath)
	assert.Equal(t, "data/train.csv", s.BaselinePath)
	assert.Equal(t, "ks", s.DriftStatistic)
	assert.Equal(t, 0.15, s.DriftThreshold)
	assert.Equal(t, 0.05, s.DriftThresholds["alcohol"])
	assert.Equal(t, 500, s.DriftWindow)
	assert.Equal(t, 50, s.MinSamples)
	assert.Equal(t, 128, s.TelemetryBuffer)
	assert.Equal(t, 10*time.Second, s.ExportInterval)
	assert.Equal(t, 20*time.Second, s.ReadTimeout)
	assert.Equal(t, 40*time.Second, s.WriteTimeout)
}

func TestLoad_EnvBeatsYAML(t *testing.T) {
	clearEnv(t)

	yaml := `
server:
  listenPort: 8181
model:
  path: "models/wine.json"
drift:
  baselinePath: "data/train.csv"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("LISTEN_PORT", "8282")
	t.Setenv("MODEL_PATH", "override/model.json")

	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8282, s.ListenPort)
	assert.Equal(t, "override/model.json", s.ModelPath)
	assert.Equal(t, "data/train.csv", s.BaselinePath)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", "/nonexistent/config.yaml")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_ValidationFailures(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"low listen port", "LISTEN_PORT", "80"},
		{"metrics port collision", "METRICS_PORT", "8080"},
		{"unknown statistic", "DRIFT_STATISTIC", "wasserstein"},
		{"threshold above one", "DRIFT_THRESHOLD", "1.5"},
		{"bad per-feature threshold", "DRIFT_THRESHOLDS", "alcohol=2.0"},
		{"tiny window", "DRIFT_WINDOW", "5"},
		{"min samples above window", "MIN_SAMPLES", "5000"},
		{"oversized buffer", "TELEMETRY_BUFFER", "100000"},
		{"export interval too short", "EXPORT_INTERVAL", "10ms"},
		{"read timeout too long", "READ_TIMEOUT", "5m"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tc.key, tc.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestParseThresholds(t *testing.T) {
	out := parseThresholds("alcohol=0.1,pH=0.3, density = 0.25")
	assert.Equal(t, 0.1, out["alcohol"])
	assert.Equal(t, 0.3, out["pH"])
	assert.Equal(t, 0.25, out["density"])

	assert.Empty(t, parseThresholds(""))
	assert.Empty(t, parseThresholds("garbage"))
}
