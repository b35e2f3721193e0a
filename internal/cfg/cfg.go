package cfg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Settings struct {
	ListenPort  int
	MetricsPort int

	ModelPath    string
	BaselinePath string
	DataPath     string
	ReportsDir   string

	DriftStatistic  string
	DriftThreshold  float64
	DriftThresholds map[string]float64
	DriftWindow     int
	MinSamples      int

	TelemetryEndpoint string
	TelemetryUser     string
	TelemetryToken    string
	TelemetryBuffer   int
	ExportInterval    time.Duration

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type ConfigFile struct {
	Server struct {
		ListenPort   int    `yaml:"listenPort"`
		MetricsPort  int    `yaml:"metricsPort"`
		ReadTimeout  string `yaml:"readTimeout"`
		WriteTimeout string `yaml:"writeTimeout"`
	} `yaml:"server"`

	Model struct {
		Path string `yaml:"path"`
	} `yaml:"model"`

	Drift struct {
		BaselinePath string             `yaml:"baselinePath"`
		Statistic    string             `yaml:"statistic"`
		Threshold    float64            `yaml:"threshold"`
		Thresholds   map[string]float64 `yaml:"thresholds"`
		Window       int                `yaml:"window"`
		MinSamples   int                `yaml:"minSamples"`
	} `yaml:"drift"`

	Telemetry struct {
		Endpoint       string `yaml:"endpoint"`
		Buffer         int    `yaml:"buffer"`
		ExportInterval string `yaml:"exportInterval"`
	} `yaml:"telemetry"`

	System struct {
		DataPath   string `yaml:"dataPath"`
		ReportsDir string `yaml:"reportsDir"`
	} `yaml:"system"`
}

func Load() (Settings, error) {
	// .env is optional; deployments usually set env vars directly
	_ = godotenv.Load()

	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromYAML(configPath)
	}

	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	readTimeout, err := time.ParseDuration(config.Server.ReadTimeout)
	if err != nil {
		readTimeout = 15 * time.Second
	}

	writeTimeout, err := time.ParseDuration(config.Server.WriteTimeout)
	if err != nil {
		writeTimeout = 30 * time.Second
	}

	exportInterval, err := time.ParseDuration(config.Telemetry.ExportInterval)
	if err != nil {
		exportInterval = 5 * time.Second
	}

	settings := Settings{
		ListenPort:        getIntFromEnvOrConfig("LISTEN_PORT", config.Server.ListenPort),
		MetricsPort:       getIntFromEnvOrConfig("METRICS_PORT", config.Server.MetricsPort),
		ModelPath:         getEnvOrDefault("MODEL_PATH", config.Model.Path),
		BaselinePath:      getEnvOrDefault("BASELINE_PATH", config.Drift.BaselinePath),
		DataPath:          getEnvOrDefault("DATA_PATH", config.System.DataPath),
		ReportsDir:        getEnvOrDefault("REPORTS_DIR", config.System.ReportsDir),
		DriftStatistic:    getEnvOrDefault("DRIFT_STATISTIC", config.Drift.Statistic),
		DriftThreshold:    getFloatFromEnvOrConfig("DRIFT_THRESHOLD", config.Drift.Threshold),
		DriftThresholds:   config.Drift.Thresholds,
		DriftWindow:       getIntFromEnvOrConfig("DRIFT_WINDOW", config.Drift.Window),
		MinSamples:        getIntFromEnvOrConfig("MIN_SAMPLES", config.Drift.MinSamples),
		TelemetryEndpoint: getEnvOrDefault("OTLP_ENDPOINT", config.Telemetry.Endpoint),
		TelemetryUser:     os.Getenv("GRAFANA_USER"),
		TelemetryToken:    os.Getenv("GRAFANA_TOKEN"),
		TelemetryBuffer:   getIntFromEnvOrConfig("TELEMETRY_BUFFER", config.Telemetry.Buffer),
		ExportInterval:    exportInterval,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
	}

	applyDefaults(&settings)

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		ListenPort:        getIntOrDefault("LISTEN_PORT", 8080),
		MetricsPort:       getIntOrDefault("METRICS_PORT", 9090),
		ModelPath:         getEnvOrDefault("MODEL_PATH", "artifacts/model_trainer/model.json"),
		BaselinePath:      getEnvOrDefault("BASELINE_PATH", "artifacts/data_ingestion/data.csv"),
		DataPath:          getEnvOrDefault("DATA_PATH", "artifacts/predictions"),
		ReportsDir:        getEnvOrDefault("REPORTS_DIR", "artifacts/reports"),
		DriftStatistic:    getEnvOrDefault("DRIFT_STATISTIC", "psi"),
		DriftThreshold:    getFloatOrDefault("DRIFT_THRESHOLD", 0.2),
		DriftThresholds:   parseThresholds(os.Getenv("DRIFT_THRESHOLDS")),
		DriftWindow:       getIntOrDefault("DRIFT_WINDOW", 1000),
		MinSamples:        getIntOrDefault("MIN_SAMPLES", 30),
		TelemetryEndpoint: os.Getenv("OTLP_ENDPOINT"),
		TelemetryUser:     os.Getenv("GRAFANA_USER"),
		TelemetryToken:    os.Getenv("GRAFANA_TOKEN"),
		TelemetryBuffer:   getIntOrDefault("TELEMETRY_BUFFER", 256),
		ExportInterval:    getDurationOrDefault("EXPORT_INTERVAL", 5*time.Second),
		ReadTimeout:       getDurationOrDefault("READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      getDurationOrDefault("WRITE_TIMEOUT", 30*time.Second),
	}

	applyDefaults(&settings)

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func applyDefaults(s *Settings) {
	if s.ListenPort == 0 {
		s.ListenPort = 8080
	}
	if s.MetricsPort == 0 {
		s.MetricsPort = 9090
	}
	if s.DriftStatistic == "" {
		s.DriftStatistic = "psi"
	}
	if s.DriftThreshold == 0 {
		s.DriftThreshold = 0.2
	}
	if s.DriftWindow == 0 {
		s.DriftWindow = 1000
	}
	if s.MinSamples == 0 {
		s.MinSamples = 30
	}
	if s.TelemetryBuffer == 0 {
		s.TelemetryBuffer = 256
	}
	if s.ExportInterval == 0 {
		s.ExportInterval = 5 * time.Second
	}
	if s.DriftThresholds == nil {
		s.DriftThresholds = make(map[string]float64)
	}
}

// parseThresholds parses "feature=0.1,other=0.3" style overrides from env.
func parseThresholds(v string) map[string]float64 {
	out := make(map[string]float64)
	if v == "" {
		return out
	}
	for _, pair := range strings.Split(v, ",") {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64); err == nil {
			out[strings.TrimSpace(parts[0])] = f
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	return configValue
}

func getFloatFromEnvOrConfig(key string, configValue float64) float64 {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseFloat(env, 64); err == nil {
			return val
		}
	}
	return configValue
}

// validateSettings performs validation of configuration values
func validateSettings(settings *Settings) error {
	if settings.ModelPath == "" {
		return fmt.Errorf("model path cannot be empty")
	}
	if settings.BaselinePath == "" {
		return fmt.Errorf("baseline path cannot be empty")
	}

	if settings.ListenPort < 1024 || settings.ListenPort > 65535 {
		return fmt.Errorf("listen port must be between 1024 and 65535, got %d", settings.ListenPort)
	}
	if settings.MetricsPort < 1024 || settings.MetricsPort > 65535 {
		return fmt.Errorf("metrics port must be between 1024 and 65535, got %d", settings.MetricsPort)
	}
	if settings.ListenPort == settings.MetricsPort {
		return fmt.Errorf("listen port and metrics port must differ, both are %d", settings.ListenPort)
	}

	switch settings.DriftStatistic {
	case "psi", "ks":
	default:
		return fmt.Errorf("drift statistic must be psi or ks, got %q", settings.DriftStatistic)
	}

	if settings.DriftThreshold <= 0 || settings.DriftThreshold > 1.0 {
		return fmt.Errorf("drift threshold must be between 0 and 1, got %f", settings.DriftThreshold)
	}
	for feature, t := range settings.DriftThresholds {
		if t <= 0 || t > 1.0 {
			return fmt.Errorf("feature %s: drift threshold must be between 0 and 1, got %f", feature, t)
		}
	}

	if settings.DriftWindow < 10 || settings.DriftWindow > 100000 {
		return fmt.Errorf("drift window must be between 10 and 100000, got %d", settings.DriftWindow)
	}
	if settings.MinSamples < 2 || settings.MinSamples > settings.DriftWindow {
		return fmt.Errorf("min samples must be between 2 and the drift window (%d), got %d", settings.DriftWindow, settings.MinSamples)
	}

	if settings.TelemetryBuffer < 1 || settings.TelemetryBuffer > 65536 {
		return fmt.Errorf("telemetry buffer must be between 1 and 65536, got %d", settings.TelemetryBuffer)
	}
	if settings.ExportInterval < time.Second || settings.ExportInterval > 10*time.Minute {
		return fmt.Errorf("export interval must be between 1s and 10m, got %v", settings.ExportInterval)
	}

	if settings.ReadTimeout < time.Second || settings.ReadTimeout > time.Minute {
		return fmt.Errorf("read timeout must be between 1s and 1m, got %v", settings.ReadTimeout)
	}
	if settings.WriteTimeout < time.Second || settings.WriteTimeout > time.Minute {
		return fmt.Errorf("write timeout must be between 1s and 1m, got %v", settings.WriteTimeout)
	}

	return nil
}
