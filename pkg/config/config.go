// Package config loads and validates runner configuration from YAML
// files with environment-variable overrides. CLI flags are applied on
// top of the loaded config by the caller and always win.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the top-level runner configuration.
type Config struct {
	Index     IndexConfig     `yaml:"index"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Feedback  FeedbackConfig  `yaml:"feedback"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// IndexConfig locates the pre-built index.
type IndexConfig struct {
	Dir string `yaml:"dir"`
}

// RetrievalConfig controls smoothing and result depth.
type RetrievalConfig struct {
	SmoothingMethod string `yaml:"smoothingMethod"`
	SmoothingParam  string `yaml:"smoothingParam"`
	TopK            int    `yaml:"topK"`
	RunTag          string `yaml:"runTag"`
	Workers         int    `yaml:"workers"`
	Strict          bool   `yaml:"strict"`
	MaxQueries      int    `yaml:"maxQueries"`
}

// FeedbackConfig controls pseudo-relevance feedback expansion.
type FeedbackConfig struct {
	Enabled bool `yaml:"enabled"`
	Docs    int  `yaml:"docs"`
	Terms   int  `yaml:"terms"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server for long batch
// jobs. Disabled by default.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies
// environment-variable overrides. Missing values keep their defaults.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// defaultConfig returns the baseline-run defaults.
func defaultConfig() *Config {
	return &Config{
		Retrieval: RetrievalConfig{
			SmoothingMethod: "dirichlet",
			SmoothingParam:  "auto",
			TopK:            1000,
			RunTag:          "indri",
			Workers:         1,
		},
		Feedback: FeedbackConfig{
			Enabled: false,
			Docs:    10,
			Terms:   10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads QLRUN_* environment variables and overrides
// the corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("QLRUN_INDEX_DIR"); v != "" {
		cfg.Index.Dir = v
	}
	if v := os.Getenv("QLRUN_SMOOTHING_METHOD"); v != "" {
		cfg.Retrieval.SmoothingMethod = v
	}
	if v := os.Getenv("QLRUN_SMOOTHING_PARAM"); v != "" {
		cfg.Retrieval.SmoothingParam = v
	}
	if v := os.Getenv("QLRUN_TOP_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil {
			cfg.Retrieval.TopK = k
		}
	}
	if v := os.Getenv("QLRUN_RUN_TAG"); v != "" {
		cfg.Retrieval.RunTag = v
	}
	if v := os.Getenv("QLRUN_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Retrieval.Workers = n
		}
	}
	if v := os.Getenv("QLRUN_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("QLRUN_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("QLRUN_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}
