package scorer

import (
	"math"

	"disruptiq/internal/config"
	"disruptiq/internal/signal"
)

// Risk assessments, from worst to best.
const (
	AssessmentCritical = "CRITICAL"
	AssessmentHigh     = "HIGH"
	AssessmentMedium   = "MEDIUM"
	AssessmentLow      = "LOW"
	AssessmentClean    = "CLEAN"
)

// Policy holds the weighting rules applied to a signal set.
type Policy struct {
	Weights       map[signal.Severity]float64
	ContextTags   []string
	Multiplier    float64
	MinConfidence float64
}

// DefaultPolicy mirrors config.Default.
func DefaultPolicy() Policy {
	return FromConfig(config.Default().Risk, config.Default().Scan.MinConfidence)
}

// FromConfig converts the risk section into a Policy.
func FromConfig(risk config.Risk, minConfidence float64) Policy {
	weights := make(map[signal.Severity]float64, len(risk.Weights))
	for raw, w := range risk.Weights {
		if sev, ok := signal.ParseSeverity(raw); ok {
			weights[sev] = w
		}
	}
	multiplier := risk.Multiplier
	if multiplier <= 0 {
		multiplier = 1
	}
	return Policy{
		Weights:       weights,
		ContextTags:   append([]string(nil), risk.ContextTags...),
		Multiplier:    multiplier,
		MinConfidence: minConfidence,
	}
}

// OverrideFunc resolves a configured severity for a detector id.
type OverrideFunc func(detectorID string) (signal.Severity, bool)

type Scorer struct {
	policy    Policy
	overrides OverrideFunc
}

// New builds a scorer. overrides may be nil.
func New(policy Policy, overrides OverrideFunc) *Scorer {
	return &Scorer{policy: policy, overrides: overrides}
}

func (s *Scorer) Policy() Policy {
	return s.policy
}

// Normalize returns a normalized copy of signals. Applying it twice yields
// the same result as applying it once.
func (s *Scorer) Normalize(signals []signal.Signal) []signal.Signal {
	out := make([]signal.Signal, len(signals))
	for i, sig := range signals {
		sig.Confidence = ClampConfidence(sig.Confidence)
		if !signal.IsDiagnostic(sig.Type) && s.overrides != nil {
			if sev, ok := s.overrides(sig.DetectorID); ok {
				sig.Severity = sev
			}
		}
		if !sig.Severity.Valid() {
			sig.Severity = signal.SeverityInfo
		}
		sig.Tags = signal.NormalizeTags(sig.Tags)
		out[i] = sig
	}
	return out
}

// Filter drops signals below the policy's minimum confidence. Diagnostics
// always pass.
func (s *Scorer) Filter(signals []signal.Signal) []signal.Signal {
	out := make([]signal.Signal, 0, len(signals))
	for _, sig := range signals {
		if signal.IsDiagnostic(sig.Type) || sig.Confidence >= s.policy.MinConfidence {
			out = append(out, sig)
		}
	}
	return out
}

// Result is the aggregate risk of a signal set.
type Result struct {
	Counts     map[signal.Severity]int
	Base       float64
	Multiplier float64
	RiskScore  float64
}

// Score computes the weighted risk score. It reads signals only.
func (s *Scorer) Score(signals []signal.Signal) Result {
	counts := make(map[signal.Severity]int, len(signal.Severities))
	for _, sev := range signal.Severities {
		counts[sev] = 0
	}
	contextual := false
	for i := range signals {
		counts[signals[i].Severity]++
		if !contextual && s.hasContextTag(&signals[i]) {
			contextual = true
		}
	}

	var base float64
	for _, sev := range signal.Severities {
		base += s.policy.Weights[sev] * float64(counts[sev])
	}
	multiplier := 1.0
	if contextual {
		multiplier = s.policy.Multiplier
	}
	return Result{
		Counts:     counts,
		Base:       base,
		Multiplier: multiplier,
		RiskScore:  round2(base * multiplier),
	}
}

func (s *Scorer) hasContextTag(sig *signal.Signal) bool {
	for _, tag := range s.policy.ContextTags {
		if sig.HasTag(tag) {
			return true
		}
	}
	return false
}

// Assess maps a score result to a coarse assessment.
func Assess(r Result) string {
	switch {
	case r.Counts[signal.SeverityCritical] > 0 || r.Counts[signal.SeverityHigh] >= 3:
		return AssessmentCritical
	case r.Counts[signal.SeverityHigh] >= 1:
		return AssessmentHigh
	case r.Counts[signal.SeverityMedium] >= 3 || r.RiskScore > 5:
		return AssessmentMedium
	case r.Counts[signal.SeverityLow] > 0:
		return AssessmentLow
	default:
		return AssessmentClean
	}
}

// ClampConfidence forces v into [0,1]. NaN becomes 0.
func ClampConfidence(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return clamp(v, 0, 1)
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
