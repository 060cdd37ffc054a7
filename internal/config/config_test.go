package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scanerr "disruptiq/internal/errors"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 0.5, cfg.Scan.MinConfidence)
	assert.Equal(t, 10.0, cfg.Risk.Weights["critical"])
	assert.Equal(t, 1.5, cfg.Risk.Multiplier)
	assert.Greater(t, cfg.Scan.Threads, 0)
}

func TestLoadConfig_YAMLAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
scan:
  min_confidence: 0.7
  exclude: ["**/vendor/**"]
  detectors:
    http_call_v1:
      enabled: false
    local_ip_v1:
      severity: high
risk:
  unpinned_severity: medium
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0644))
	t.Setenv("DISRUPTIQ_THREADS", "3")
	t.Setenv("DISRUPTIQ_REDACT", "true")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	t.Run("yaml values", func(t *testing.T) {
		assert.Equal(t, 0.7, cfg.Scan.MinConfidence)
		assert.Equal(t, []string{"**/vendor/**"}, cfg.Scan.Exclude)
		require.NotNil(t, cfg.Scan.Detectors["http_call_v1"].Enabled)
		assert.False(t, *cfg.Scan.Detectors["http_call_v1"].Enabled)
		assert.Equal(t, "high", cfg.Scan.Detectors["local_ip_v1"].Severity)
		assert.Equal(t, "medium", cfg.Risk.UnpinnedSeverity)
	})

	t.Run("defaults survive partial yaml", func(t *testing.T) {
		assert.Equal(t, 5.0, cfg.Risk.Weights["high"])
	})

	t.Run("env overrides", func(t *testing.T) {
		assert.Equal(t, 3, cfg.Scan.Threads)
		assert.True(t, cfg.Scan.Redact)
	})
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		mut   func(c *Config)
		field string
	}{
		{"confidence above one", func(c *Config) { c.Scan.MinConfidence = 1.2 }, "scan.min_confidence"},
		{"bad severity override", func(c *Config) {
			c.Scan.Detectors["x_v1"] = DetectorSetting{Severity: "urgent"}
		}, "scan.detectors.x_v1.severity"},
		{"bad glob", func(c *Config) { c.Scan.Include = []string{"[a-"} }, "scan.include/exclude"},
		{"negative weight", func(c *Config) { c.Risk.Weights["low"] = -1 }, "risk.weights.low"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mut(cfg)
			err := cfg.Validate()
			var cfgErr *scanerr.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}
