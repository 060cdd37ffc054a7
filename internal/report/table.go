package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"disruptiq/internal/signal"
)

var severityColors = map[signal.Severity]color.Attribute{
	signal.SeverityCritical: color.FgHiRed,
	signal.SeverityHigh:     color.FgRed,
	signal.SeverityMedium:   color.FgYellow,
	signal.SeverityLow:      color.FgCyan,
	signal.SeverityInfo:     color.FgHiBlack,
}

// TableWriter renders a terminal table followed by the summary.
type TableWriter struct {
	NoColor bool
}

func (t TableWriter) paint(sev signal.Severity) string {
	label := fmt.Sprintf("%-8s", strings.ToUpper(string(sev)))
	attr, ok := severityColors[sev]
	if !ok {
		return label
	}
	c := color.New(attr)
	if t.NoColor {
		c.DisableColor()
	}
	return c.Sprint(label)
}

func (t TableWriter) Write(w io.Writer, r *Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEVERITY\tTYPE\tLOCATION\tCONF\tDETAIL")
	for _, s := range r.Signals {
		fmt.Fprintf(tw, "%s\t%s\t%s:%d\t%.2f\t%s\n",
			t.paint(s.Severity), s.Type, s.File, s.Line, s.Confidence, oneLine(s.Detail))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	sum := r.Summary
	fmt.Fprintf(w, "\nFiles scanned: %d, skipped: %d, incomplete: %d\n", sum.FilesScanned, sum.FilesSkipped, sum.FilesIncomplete)
	fmt.Fprintf(w, "Findings: %d", sum.Findings)
	for _, sev := range signal.Severities {
		if n := sum.SeverityBreakdown[string(sev)]; n > 0 {
			fmt.Fprintf(w, "  %s=%d", sev, n)
		}
	}
	fmt.Fprintf(w, "\nRisk score: %.2f (%s)\n", sum.RiskScore, sum.RiskAssessment)
	if !sum.Complete {
		fmt.Fprintf(w, "Scan incomplete: %d file(s) incomplete\n", sum.FilesIncomplete)
	}
	if sum.DetectorsFailed > 0 || sum.FilesSkipped > 0 {
		fmt.Fprintf(w, "Failures: %d detector(s) failed, %d file(s) skipped\n", sum.DetectorsFailed, sum.FilesSkipped)
	}
	return nil
}

func oneLine(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if r := []rune(s); len(r) > 100 {
		s = string(r[:97]) + "..."
	}
	return s
}
