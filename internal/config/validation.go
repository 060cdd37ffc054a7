package config

import (
	"fmt"
	"runtime"

	"github.com/bmatcuk/doublestar/v4"

	scanerr "disruptiq/internal/errors"
	"disruptiq/internal/signal"
)

// Validate checks the config and fills zero values that have a safe default.
func (c *Config) Validate() error {
	if c.Scan.MinConfidence < 0 || c.Scan.MinConfidence > 1 {
		return scanerr.NewConfigError("scan.min_confidence", fmt.Sprintf("must be within [0,1], got %v", c.Scan.MinConfidence))
	}
	if c.Scan.Threads <= 0 {
		c.Scan.Threads = runtime.NumCPU()
	}
	if c.Scan.MaxFileSizeBytes < 0 {
		return scanerr.NewConfigError("scan.max_file_size_bytes", "must not be negative")
	}
	if c.Scan.TimeoutSeconds < 0 || c.Scan.FileTimeoutSeconds < 0 {
		return scanerr.NewConfigError("scan.timeout_seconds", "must not be negative")
	}
	for _, pattern := range append(append([]string{}, c.Scan.Include...), c.Scan.Exclude...) {
		if !doublestar.ValidatePattern(pattern) {
			return scanerr.NewConfigError("scan.include/exclude", fmt.Sprintf("bad glob %q", pattern))
		}
	}
	for id, d := range c.Scan.Detectors {
		if d.Severity == "" {
			continue
		}
		if _, ok := signal.ParseSeverity(d.Severity); !ok {
			return scanerr.NewConfigError("scan.detectors."+id+".severity", fmt.Sprintf("unknown severity %q", d.Severity))
		}
	}
	for sev, w := range c.Risk.Weights {
		if _, ok := signal.ParseSeverity(sev); !ok {
			return scanerr.NewConfigError("risk.weights", fmt.Sprintf("unknown severity %q", sev))
		}
		if w < 0 {
			return scanerr.NewConfigError("risk.weights."+sev, "must not be negative")
		}
	}
	if c.Risk.Multiplier <= 0 {
		c.Risk.Multiplier = 1
	}
	if c.Risk.UnpinnedSeverity != "" {
		if _, ok := signal.ParseSeverity(c.Risk.UnpinnedSeverity); !ok {
			return scanerr.NewConfigError("risk.unpinned_severity", fmt.Sprintf("unknown severity %q", c.Risk.UnpinnedSeverity))
		}
	}
	return nil
}
