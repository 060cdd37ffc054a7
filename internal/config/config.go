package config

import (
	"errors"
	"io/fs"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DetectorSetting toggles one detector and optionally overrides its severity.
type DetectorSetting struct {
	Enabled  *bool  `yaml:"enabled"`
	Severity string `yaml:"severity"`
}

type Scan struct {
	Include            []string                   `yaml:"include"`
	Exclude            []string                   `yaml:"exclude"`
	Languages          []string                   `yaml:"languages"` // empty means auto-detect all
	MinConfidence      float64                    `yaml:"min_confidence"`
	Detectors          map[string]DetectorSetting `yaml:"detectors"`
	MaxFileSizeBytes   int64                      `yaml:"max_file_size_bytes"`
	TimeoutSeconds     int                        `yaml:"timeout_seconds"`      // 0 disables the global timeout
	FileTimeoutSeconds int                        `yaml:"file_timeout_seconds"` // 0 disables the per-file timeout
	Threads            int                        `yaml:"threads"`
	Redact             bool                       `yaml:"redact"`
	UseGitignore       bool                       `yaml:"use_gitignore"`
}

type Risk struct {
	Weights     map[string]float64 `yaml:"weights"`
	ContextTags []string           `yaml:"context_tags"`
	Multiplier  float64            `yaml:"multiplier"`
	// Severity for a dependency with no version pin at all.
	UnpinnedSeverity string `yaml:"unpinned_severity"`
}

type Logger struct {
	Level           string `yaml:"level"`
	JSONFormat      bool   `yaml:"json_format"`
	DisableTime     bool   `yaml:"disable_time"`
	IncludeLocation bool   `yaml:"include_location"`
}

type History struct {
	DBPath string `yaml:"db_path"`
	// Record saves every scan into DBPath.
	Record bool `yaml:"record"`
}

type Config struct {
	Scan    Scan    `yaml:"scan"`
	Risk    Risk    `yaml:"risk"`
	Logger  Logger  `yaml:"logger"`
	History History `yaml:"history"`
}

// Default returns the documented defaults.
func Default() *Config {
	cfg := &Config{
		Scan: Scan{
			MinConfidence:    0.5,
			MaxFileSizeBytes: 2 << 20,
			Threads:          runtime.NumCPU(),
			UseGitignore:     true,
			Detectors:        map[string]DetectorSetting{},
		},
		Risk: Risk{
			Weights: map[string]float64{
				"critical": 10,
				"high":     5,
				"medium":   2,
				"low":      0.5,
				"info":     0,
			},
			ContextTags:      []string{"production", "main-branch"},
			Multiplier:       1.5,
			UnpinnedSeverity: "high",
		},
		Logger: Logger{
			Level:       "info",
			DisableTime: true,
		},
	}
	cfg.History.DBPath = "disruptiq.db"
	return cfg
}

// LoadConfig reads path on top of the defaults. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	cfg := Default()

	// 2. Load YAML config
	if path != "" {
		file, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(file, cfg); err != nil {
				return nil, err
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, err
		}
	}

	// 3. Override with Environment Variables if present
	if v := os.Getenv("DISRUPTIQ_MIN_CONFIDENCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Scan.MinConfidence = f
		}
	}
	if v := os.Getenv("DISRUPTIQ_THREADS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Scan.Threads = n
		}
	}
	if v := os.Getenv("DISRUPTIQ_REDACT"); v != "" {
		cfg.Scan.Redact = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("DISRUPTIQ_DB"); v != "" {
		cfg.History.DBPath = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
