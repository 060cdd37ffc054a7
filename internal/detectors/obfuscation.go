package detectors

import (
	"fmt"
	"iter"
	"strings"

	"disruptiq/internal/detector"
	"disruptiq/internal/language"
	"disruptiq/internal/signal"
)

// Thresholds for the file structure detector.
const (
	MinifiedMaxLines  = 10
	MinifiedMinChars  = 5000
	LongLineThreshold = 1000
)

// ObfuscationSpec returns the decoder chain and packed identifier patterns
// for source files.
func ObfuscationSpec() PatternSpec {
	return PatternSpec{
		ID:          "obfuscated_code_v1",
		Type:        signal.TypeObfuscatedCode,
		Languages:   []language.Language{language.JavaScript, language.TypeScript, language.Python, language.PHP, language.HTML},
		Severity:    signal.SeverityHigh,
		Confidence:  0.8,
		Tags:        []string{"obfuscation"},
		Remediation: "Decode the payload and review what it executes.",
		Rules: []PatternRule{
			{Regex: re(`\beval\s*\(\s*atob\s*\(`), Detail: "Base64 decoded payload passed to eval: %s"},
			{Regex: re(`\b(?:exec|eval)\s*\(\s*(?:base64\.b64decode|codecs\.decode|zlib\.decompress|marshal\.loads|bytes\.fromhex)\s*\(`), Detail: "Decoded payload passed to %s"},
			{Regex: re(`\beval\s*\(\s*(?:base64_decode|gzinflate|str_rot13)\s*\(`), Detail: "Decoded payload passed to %s"},
			{Regex: re(`String\.fromCharCode\s*\([^)\n]{20,}\)`), Detail: "String assembled from character codes: %s"},
			{Regex: re(`\bnew\s+Function\s*\(`), Detail: "Function constructed from a string: %s"},
			{Regex: re(`\b_0x[0-9a-fA-F]{4,}\b`), Detail: "Packer generated identifier %s"},
			{Regex: re(`(?:\\x[0-9a-fA-F]{2}){8,}`), Detail: "Escape sequence run %s", Severity: signal.SeverityMedium},
			{Regex: re(`(?:\\u[0-9a-fA-F]{4}){6,}`), Detail: "Escape sequence run %s", Severity: signal.SeverityMedium},
		},
	}
}

// NewObfuscatedCodeDetector builds the source obfuscation pattern detector.
func NewObfuscatedCodeDetector(dampener *detector.Dampener) detector.Detector {
	return NewPatternDetector(ObfuscationSpec(), dampener)
}

// FileStructureDetector flags minified files and extremely long lines.
type FileStructureDetector struct {
	MaxLines int
	MinChars int
	LongLine int
	dampener *detector.Dampener
}

func NewFileStructureDetector(dampener *detector.Dampener) *FileStructureDetector {
	return &FileStructureDetector{
		MaxLines: MinifiedMaxLines,
		MinChars: MinifiedMinChars,
		LongLine: LongLineThreshold,
		dampener: dampener,
	}
}

func (d *FileStructureDetector) ID() string          { return "file_structure_v1" }
func (d *FileStructureDetector) Kind() detector.Kind { return detector.KindStatistical }
func (d *FileStructureDetector) Languages() []language.Language {
	return []language.Language{language.JavaScript, language.TypeScript, language.Python, language.PHP, language.HTML}
}
func (d *FileStructureDetector) DefaultSeverity() signal.Severity { return signal.SeverityMedium }

func (d *FileStructureDetector) Match(f *detector.File) iter.Seq[detector.Match] {
	return func(yield func(detector.Match) bool) {
		if f.Content == "" {
			return
		}
		lines := strings.Split(strings.TrimSuffix(f.Content, "\n"), "\n")
		var total, longest, longestAt, offset int
		for _, l := range lines {
			n := len([]rune(l))
			total += n
			if n > longest {
				longest, longestAt = n, offset
			}
			offset += len(l) + 1
		}
		avg := float64(total) / float64(len(lines))

		if len(lines) < d.MaxLines && total > d.MinChars {
			m := detector.Match{
				Type:        signal.TypeObfuscatedCode,
				Severity:    signal.SeverityHigh,
				Confidence:  0.9,
				Detail:      fmt.Sprintf("File appears minified: %d lines, %d characters", len(lines), total),
				Evidence:    fmt.Sprintf("%d lines, %d chars, avg %.1f chars/line", len(lines), total, avg),
				Tags:        []string{"obfuscation", "minified"},
				Remediation: "Commit the unminified source and build artifacts separately.",
			}
			d.dampener.Dampen(f, 1, &m)
			if !yield(m) {
				return
			}
		}

		if longest > d.LongLine {
			m := detector.Match{
				Type:        signal.TypeObfuscatedCode,
				Offset:      longestAt,
				Confidence:  0.8,
				Detail:      fmt.Sprintf("Extremely long line of %d characters", longest),
				Evidence:    fmt.Sprintf("max line length %d, avg %.1f", longest, avg),
				Tags:        []string{"obfuscation", "long-line"},
				Remediation: "Review the line for packed or generated code.",
			}
			line, _ := f.Lines.Position(longestAt)
			d.dampener.Dampen(f, line, &m)
			yield(m)
		}
	}
}
