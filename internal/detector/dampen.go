package detector

import (
	"path"
	"strings"

	"disruptiq/internal/language"
)

// DampenRule lowers confidence for a context that is known to produce
// false positives.
type DampenRule struct {
	Name   string
	Factor float64
	Match  func(f *File, line int) bool
}

// Dampener applies an explicit allowlist of dampening rules.
type Dampener struct {
	Rules []DampenRule
}

// DefaultDampener knows comments, test paths and fixture/example paths.
func DefaultDampener() *Dampener {
	return &Dampener{Rules: []DampenRule{
		{Name: "comment", Factor: 0.5, Match: func(f *File, line int) bool {
			return IsCommentLine(f.Language, f.Lines.Line(line))
		}},
		{Name: "test_path", Factor: 0.7, Match: func(f *File, _ int) bool {
			return IsTestPath(f.Path)
		}},
		{Name: "fixture_path", Factor: 0.6, Match: func(f *File, _ int) bool {
			return IsFixturePath(f.Path)
		}},
	}}
}

// Apply returns the combined factor and the names of the rules that fired.
func (d *Dampener) Apply(f *File, line int) (float64, []string) {
	factor := 1.0
	var reasons []string
	if d == nil {
		return factor, nil
	}
	for _, r := range d.Rules {
		if r.Match(f, line) {
			factor *= r.Factor
			reasons = append(reasons, r.Name)
		}
	}
	return factor, reasons
}

// Dampen lowers m's confidence in place and tags the applied rules.
func (d *Dampener) Dampen(f *File, line int, m *Match) {
	factor, reasons := d.Apply(f, line)
	if len(reasons) == 0 {
		return
	}
	m.Confidence *= factor
	for _, r := range reasons {
		m.Tags = append(m.Tags, "dampened:"+r)
	}
}

// IsCommentLine is a per-language heuristic on one trimmed line.
func IsCommentLine(lang language.Language, raw string) bool {
	line := strings.TrimSpace(raw)
	if line == "" {
		return false
	}
	switch lang {
	case language.Python, language.Ruby, language.Shell, language.YAML, language.Requirements,
		language.Dockerfile, language.GitHubWorkflow, language.Env, language.TOML, language.Terraform:
		return strings.HasPrefix(line, "#")
	case language.SQL:
		return strings.HasPrefix(line, "--")
	case language.HTML, language.XML:
		return strings.HasPrefix(line, "<!--")
	case language.Go, language.JavaScript, language.TypeScript, language.Java, language.Rust,
		language.CSharp, language.PHP:
		return strings.HasPrefix(line, "//") || strings.HasPrefix(line, "/*") || strings.HasPrefix(line, "*")
	}
	return false
}

// IsTestPath matches test files and test directories.
func IsTestPath(p string) bool {
	p = "/" + strings.ToLower(p)
	base := path.Base(p)
	if strings.Contains(base, "_test.") || strings.HasPrefix(base, "test_") || strings.Contains(base, ".test.") || strings.Contains(base, ".spec.") {
		return true
	}
	for _, dir := range []string{"/test/", "/tests/", "/__tests__/", "/spec/"} {
		if strings.Contains(p, dir) {
			return true
		}
	}
	return false
}

// IsFixturePath matches fixture, sample and example trees.
func IsFixturePath(p string) bool {
	p = "/" + strings.ToLower(p)
	for _, dir := range []string{"/fixtures/", "/fixture/", "/testdata/", "/examples/", "/example/", "/samples/", "/sample/"} {
		if strings.Contains(p, dir) {
			return true
		}
	}
	return false
}
