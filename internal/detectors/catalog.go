package detectors

import (
	"disruptiq/internal/config"
	"disruptiq/internal/detector"
	"disruptiq/internal/signal"
)

// Options tunes the built-in catalog.
type Options struct {
	// UnpinnedSeverity applies to dependencies without any version pin.
	UnpinnedSeverity signal.Severity
	Dampener         *detector.Dampener
}

// Default returns the built-in detectors in registration order.
func Default(opts Options) []detector.Detector {
	if !opts.UnpinnedSeverity.Valid() {
		opts.UnpinnedSeverity = signal.SeverityHigh
	}
	if opts.Dampener == nil {
		opts.Dampener = detector.DefaultDampener()
	}

	out := newPatternDetectors(NetworkSpecs(), opts.Dampener)
	out = append(out,
		NewSecretDetector(opts.Dampener),
		NewEntropyDetector(opts.Dampener),
		NewObfuscatedCodeDetector(opts.Dampener),
		NewFileStructureDetector(opts.Dampener),
		NewGoStructural(opts.Dampener),
		NewPythonStructural(opts.Dampener),
		NewRequirementsDetector(opts.UnpinnedSeverity),
		NewPackageJSONDetector(opts.UnpinnedSeverity),
		NewGoModDetector(),
		NewDockerfileDetector(),
		NewWorkflowDetector(),
		NewObfuscationDetector(),
	)
	return out
}

// NewDefaultRegistry registers the built-in catalog into a fresh registry.
func NewDefaultRegistry(settings detector.Settings, opts Options) *detector.Registry {
	reg := detector.NewRegistry(settings)
	reg.MustRegister(Default(opts)...)
	return reg
}

// SettingsFromConfig converts the scan.detectors section. Validation has
// already rejected unknown severities; any that slip through are ignored.
func SettingsFromConfig(in map[string]config.DetectorSetting) detector.Settings {
	out := make(detector.Settings, len(in))
	for id, cs := range in {
		var s detector.Setting
		if cs.Enabled != nil {
			enabled := *cs.Enabled
			s.Enabled = &enabled
		}
		if sev, ok := signal.ParseSeverity(cs.Severity); ok {
			s.Severity = &sev
		}
		out[id] = s
	}
	return out
}

// OptionsFromConfig reads catalog options from the risk section.
func OptionsFromConfig(cfg *config.Config) Options {
	sev, _ := signal.ParseSeverity(cfg.Risk.UnpinnedSeverity)
	return Options{UnpinnedSeverity: sev}
}
