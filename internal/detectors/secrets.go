package detectors

import (
	"fmt"
	"iter"
	"regexp"
	"strings"

	"disruptiq/internal/detector"
	"disruptiq/internal/language"
	"disruptiq/internal/signal"
)

type secretPattern struct {
	name       string
	regex      *regexp.Regexp
	group      int
	severity   signal.Severity
	confidence float64
}

// Ordered from most to least specific; a span claimed by an earlier pattern
// is not reported again by a later one.
var secretPatterns = []secretPattern{
	{name: "aws_access_key_id", regex: re(`\b((?:AKIA|ASIA)[0-9A-Z]{16})\b`), group: 1, severity: signal.SeverityCritical, confidence: 0.95},
	{name: "aws_secret_access_key", regex: re(`(?i)aws_?secret_?access_?key["']?\s*[=:]\s*["']?([A-Za-z0-9/+=]{40})\b`), group: 1, severity: signal.SeverityCritical, confidence: 0.95},
	{name: "private_key", regex: re(`-----BEGIN (?:RSA |EC |DSA |OPENSSH |PGP |ENCRYPTED )?PRIVATE KEY(?: BLOCK)?-----`), severity: signal.SeverityCritical, confidence: 0.95},
	{name: "github_token", regex: re(`\b(gh[pousr]_[A-Za-z0-9]{36,})\b`), group: 1, severity: signal.SeverityCritical, confidence: 0.95},
	{name: "stripe_live_key", regex: re(`\b((?:sk|rk)_live_[A-Za-z0-9]{24,})\b`), group: 1, severity: signal.SeverityCritical, confidence: 0.95},
	{name: "slack_token", regex: re(`\b(xox[abposr]-[A-Za-z0-9-]{10,})\b`), group: 1, severity: signal.SeverityHigh, confidence: 0.9},
	{name: "google_api_key", regex: re(`\b(AIza[0-9A-Za-z_\-]{35})`), group: 1, severity: signal.SeverityHigh, confidence: 0.9},
	{name: "jwt", regex: re(`\b(eyJ[A-Za-z0-9_-]{8,}\.eyJ[A-Za-z0-9_-]{8,}\.[A-Za-z0-9_-]{8,})`), group: 1, severity: signal.SeverityHigh, confidence: 0.85},
	{name: "dsn_credentials", regex: re(`\b[a-z][a-z0-9+.-]*://[^\s:/@'"]+:([^\s@/'"]{3,})@`), group: 1, severity: signal.SeverityHigh, confidence: 0.85},
	{name: "api_key_assignment", regex: re(`(?i)\b(?:api[_-]?key|apikey|secret[_-]?key|access[_-]?token|auth[_-]?token|bearer[_-]?token|client[_-]?secret|private[_-]?token)["']?\s*[=:]\s*["']([A-Za-z0-9_\-./+=]{16,})["']`), group: 1, severity: signal.SeverityHigh, confidence: 0.8},
	{name: "password_assignment", regex: re(`(?i)\b(?:password|passwd|pwd|db[_-]?pass(?:word)?)["']?\s*[=:]\s*["']([^"'\s]{8,})["']`), group: 1, severity: signal.SeverityHigh, confidence: 0.7},
}

var secretAllowlist = []*regexp.Regexp{
	re(`(?i)example\.(?:com|org|net)`),
	re(`(?i)your[_-]?(?:domain|key|token|secret|password)`),
	re(`(?i)placeholder`),
	re(`(?i)sample[_-]?data`),
	re(`(?i)test[_-]?key`),
	re(`(?i)dummy`),
	re(`(?i)change[_-]?me`),
	re(`(?i)replace[_-]?with`),
	re(`(?i)x{3,}`),
	re(`\*{3,}`),
	re(`^\$\{?[A-Za-z_][A-Za-z0-9_]*\}?$`),
	re(`^<[^>]+>$`),
	re(`\{\{.*\}\}`),
}

// Allowlisted reports whether value is a documented placeholder.
func Allowlisted(value string) bool {
	for _, a := range secretAllowlist {
		if a.MatchString(value) {
			return true
		}
	}
	return false
}

// SecretDetector finds credentials and API tokens.
type SecretDetector struct {
	dampener *detector.Dampener
}

func NewSecretDetector(dampener *detector.Dampener) *SecretDetector {
	return &SecretDetector{dampener: dampener}
}

func (d *SecretDetector) ID() string                       { return "secret_v1" }
func (d *SecretDetector) Kind() detector.Kind              { return detector.KindPattern }
func (d *SecretDetector) Languages() []language.Language   { return []language.Language{language.All} }
func (d *SecretDetector) DefaultSeverity() signal.Severity { return signal.SeverityHigh }

func (d *SecretDetector) Match(f *detector.File) iter.Seq[detector.Match] {
	return func(yield func(detector.Match) bool) {
		var claimed [][2]int
		overlaps := func(start, end int) bool {
			for _, c := range claimed {
				if start < c[1] && c[0] < end {
					return true
				}
			}
			return false
		}

		for _, p := range secretPatterns {
			for _, loc := range p.regex.FindAllStringSubmatchIndex(f.Content, -1) {
				start, end := groupSpan(loc, p.group)
				if overlaps(start, end) {
					continue
				}
				value := f.Content[start:end]
				if Allowlisted(value) || Allowlisted(f.Content[loc[0]:loc[1]]) {
					continue
				}
				claimed = append(claimed, [2]int{start, end})

				m := detector.Match{
					Type:        signal.TypeSecret,
					Offset:      start,
					Length:      end - start,
					Severity:    p.severity,
					Confidence:  p.confidence,
					Detail:      fmt.Sprintf("Potential %s found", strings.ReplaceAll(p.name, "_", " ")),
					Evidence:    value,
					Value:       value,
					Tags:        []string{"secret", p.name},
					Remediation: "Remove the secret from source and rotate it.",
				}
				line, _ := f.Lines.Position(start)
				d.dampener.Dampen(f, line, &m)
				if !yield(m) {
					return
				}
			}
		}
	}
}
