package detectors

import (
	"fmt"
	"iter"
	"math"
	"regexp"

	"disruptiq/internal/detector"
	"disruptiq/internal/language"
	"disruptiq/internal/signal"
)

const (
	DefaultEntropyThreshold = 4.5
	DefaultEntropyMinLength = 20
)

var (
	quotedLiteralRe = regexp.MustCompile(`"([^"\\\s]+)"|'([^'\\\s]+)'|` + "`([^`\\s]+)`")
	bareTokenRe     = regexp.MustCompile(`[A-Za-z0-9+/_\-]+=*`)
)

// Entropy returns the Shannon entropy of s in bits per byte. Strings shorter
// than two bytes have no meaningful entropy and report ok=false.
func Entropy(s string) (float64, bool) {
	if len(s) < 2 {
		return 0, false
	}
	var freq [256]int
	for i := 0; i < len(s); i++ {
		freq[s[i]]++
	}
	n := float64(len(s))
	var h float64
	for _, c := range freq {
		if c == 0 {
			continue
		}
		p := float64(c) / n
		h -= p * math.Log2(p)
	}
	return h, true
}

// EntropyDetector flags random looking literals and tokens.
type EntropyDetector struct {
	Threshold float64
	MinLength int
	dampener  *detector.Dampener
}

func NewEntropyDetector(dampener *detector.Dampener) *EntropyDetector {
	return &EntropyDetector{
		Threshold: DefaultEntropyThreshold,
		MinLength: DefaultEntropyMinLength,
		dampener:  dampener,
	}
}

func (d *EntropyDetector) ID() string          { return "entropy_v1" }
func (d *EntropyDetector) Kind() detector.Kind { return detector.KindStatistical }
func (d *EntropyDetector) Languages() []language.Language {
	return withConfig(codeLanguages)
}
func (d *EntropyDetector) DefaultSeverity() signal.Severity { return signal.SeverityMedium }

func (d *EntropyDetector) Match(f *detector.File) iter.Seq[detector.Match] {
	return func(yield func(detector.Match) bool) {
		var literals [][2]int
		for _, loc := range quotedLiteralRe.FindAllStringSubmatchIndex(f.Content, -1) {
			start, end := firstGroup(loc)
			literals = append(literals, [2]int{loc[0], loc[1]})
			if m, ok := d.evaluate(f, start, end); ok && !yield(m) {
				return
			}
		}

		j := 0
		for _, loc := range bareTokenRe.FindAllStringIndex(f.Content, -1) {
			for j < len(literals) && literals[j][1] <= loc[0] {
				j++
			}
			if j < len(literals) && loc[0] >= literals[j][0] {
				continue
			}
			if m, ok := d.evaluate(f, loc[0], loc[1]); ok && !yield(m) {
				return
			}
		}
	}
}

func (d *EntropyDetector) evaluate(f *detector.File, start, end int) (detector.Match, bool) {
	if end-start < d.MinLength {
		return detector.Match{}, false
	}
	value := f.Content[start:end]
	e, ok := Entropy(value)
	if !ok || e <= d.Threshold {
		return detector.Match{}, false
	}
	m := detector.Match{
		Type:        signal.TypeHighEntropy,
		Offset:      start,
		Length:      end - start,
		Confidence:  math.Min(1, e/6),
		Detail:      fmt.Sprintf("High entropy string (%.2f bits)", e),
		Evidence:    value,
		Value:       value,
		Tags:        []string{"entropy", "secret-candidate"},
		Remediation: "Verify this value is not a credential.",
	}
	line, _ := f.Lines.Position(start)
	d.dampener.Dampen(f, line, &m)
	return m, true
}

func firstGroup(loc []int) (int, int) {
	for g := 1; 2*g+1 < len(loc); g++ {
		if loc[2*g] >= 0 {
			return loc[2*g], loc[2*g+1]
		}
	}
	return loc[0], loc[1]
}
