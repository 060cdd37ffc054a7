package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/owenrumney/go-sarif/v2/sarif"

	"disruptiq/internal/signal"
)

const informationURI = "https://github.com/disruptiq/disruptiq"

// SARIFWriter emits SARIF 2.1.0 with one rule per detector.
type SARIFWriter struct{}

func (SARIFWriter) Write(w io.Writer, r *Report) error {
	report, err := sarif.New(sarif.Version210)
	if err != nil {
		return fmt.Errorf("failed to create SARIF report: %w", err)
	}

	run := sarif.NewRunWithInformationURI("disruptiq", informationURI)

	rules := make(map[string]signal.Severity)
	for _, s := range r.Signals {
		if cur, ok := rules[s.DetectorID]; !ok || s.Severity.Rank() > cur.Rank() {
			rules[s.DetectorID] = s.Severity
		}
	}
	ruleIDs := make([]string, 0, len(rules))
	for id := range rules {
		ruleIDs = append(ruleIDs, id)
	}
	sort.Strings(ruleIDs)
	for _, id := range ruleIDs {
		run.AddRule(id).
			WithDescription(id).
			WithDefaultConfiguration(&sarif.ReportingConfiguration{
				Level: SARIFLevel(rules[id]),
			})
	}

	for _, s := range r.Signals {
		region := sarif.NewRegion().WithStartLine(s.Line)
		if s.Column > 0 {
			region = region.WithStartColumn(s.Column)
		}
		location := sarif.NewLocation().WithPhysicalLocation(
			sarif.NewPhysicalLocation().
				WithArtifactLocation(sarif.NewArtifactLocation().WithUri(s.File)).
				WithRegion(region),
		)
		message := s.Detail
		if message == "" {
			message = s.Type
		}
		result := sarif.NewRuleResult(s.DetectorID).
			WithMessage(sarif.NewTextMessage(message)).
			WithLevel(SARIFLevel(s.Severity)).
			WithLocations([]*sarif.Location{location})
		run.AddResult(result)
	}
	report.AddRun(run)

	return report.PrettyWrite(w)
}

// SARIFLevel maps a severity to a SARIF result level.
func SARIFLevel(sev signal.Severity) string {
	switch sev {
	case signal.SeverityCritical, signal.SeverityHigh:
		return "error"
	case signal.SeverityMedium:
		return "warning"
	case signal.SeverityLow:
		return "note"
	default:
		return "none"
	}
}
