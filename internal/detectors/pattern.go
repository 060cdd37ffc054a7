package detectors

import (
	"fmt"
	"iter"
	"regexp"

	"disruptiq/internal/detector"
	"disruptiq/internal/language"
	"disruptiq/internal/signal"
)

// PatternRule is one regex of a pattern detector. Group selects the capture
// used as evidence; 0 means the whole match.
type PatternRule struct {
	Regex  *regexp.Regexp
	Group  int
	Detail string // fmt template receiving the evidence
	// Severity overrides PatternSpec.Severity when set.
	Severity signal.Severity
}

// PatternSpec declares a table-driven regex detector.
type PatternSpec struct {
	ID          string
	Type        string
	Languages   []language.Language
	Severity    signal.Severity
	Confidence  float64
	Tags        []string
	Remediation string
	Rules       []PatternRule
	// Accept filters candidate evidence; nil accepts everything.
	Accept func(evidence string) bool
}

// PatternDetector runs a PatternSpec against raw text.
type PatternDetector struct {
	spec     PatternSpec
	dampener *detector.Dampener
}

func NewPatternDetector(spec PatternSpec, dampener *detector.Dampener) *PatternDetector {
	return &PatternDetector{spec: spec, dampener: dampener}
}

func (p *PatternDetector) ID() string                       { return p.spec.ID }
func (p *PatternDetector) Kind() detector.Kind              { return detector.KindPattern }
func (p *PatternDetector) Languages() []language.Language   { return p.spec.Languages }
func (p *PatternDetector) DefaultSeverity() signal.Severity { return p.spec.Severity }

func (p *PatternDetector) Match(f *detector.File) iter.Seq[detector.Match] {
	return func(yield func(detector.Match) bool) {
		for _, rule := range p.spec.Rules {
			for _, loc := range rule.Regex.FindAllStringSubmatchIndex(f.Content, -1) {
				start, end := groupSpan(loc, rule.Group)
				if start < 0 || end <= start {
					continue
				}
				evidence := f.Content[start:end]
				if p.spec.Accept != nil && !p.spec.Accept(evidence) {
					continue
				}
				m := detector.Match{
					Type:        p.spec.Type,
					Offset:      start,
					Length:      end - start,
					Severity:    rule.Severity,
					Confidence:  p.spec.Confidence,
					Detail:      fmt.Sprintf(rule.Detail, evidence),
					Evidence:    evidence,
					Value:       evidence,
					Tags:        append([]string(nil), p.spec.Tags...),
					Remediation: p.spec.Remediation,
				}
				line, _ := f.Lines.Position(start)
				p.dampener.Dampen(f, line, &m)
				if !yield(m) {
					return
				}
			}
		}
	}
}

// groupSpan picks the span of capture group g, falling back to the whole match
// when the group did not participate.
func groupSpan(loc []int, g int) (int, int) {
	if g > 0 && 2*g+1 < len(loc) && loc[2*g] >= 0 {
		return loc[2*g], loc[2*g+1]
	}
	return loc[0], loc[1]
}
