package report

import (
	"sort"
	"strings"

	scanerr "disruptiq/internal/errors"
	"disruptiq/internal/scorer"
	"disruptiq/internal/signal"
)

// ScannerVersion is stamped into every report.
const ScannerVersion = "0.3.0"

type Metadata struct {
	Root            string   `json:"root"`
	ScanDate        string   `json:"scan_date"`
	CommitHash      string   `json:"commit_hash,omitempty"`
	Branch          string   `json:"branch,omitempty"`
	ScannerVersion  string   `json:"scanner_version"`
	DetectorsLoaded []string `json:"detectors_loaded"`
}

type Summary struct {
	FilesScanned      int            `json:"files_scanned"`
	FilesSkipped      int            `json:"files_skipped"`
	Findings          int            `json:"findings"`
	SeverityBreakdown map[string]int `json:"severity_breakdown"`
	CategoryBreakdown map[string]int `json:"category_breakdown"`
	AverageConfidence float64        `json:"average_confidence"`
	RiskScore         float64        `json:"risk_score"`
	Complete          bool           `json:"complete"`
	DetectorsFailed   int            `json:"detectors_failed"`
	FilesIncomplete   int            `json:"files_incomplete"`
	RiskAssessment    string         `json:"-"`
}

// Report is the immutable result of one scan.
type Report struct {
	Metadata      Metadata
	Signals       []signal.Signal
	Relationships []signal.Relationship
	Diagnostics   []signal.Diagnostic
	Summary       Summary
}

// Stats carries walk and dispatch counters from the engine.
type Stats struct {
	FilesScanned    int
	FilesSkipped    int
	FilesIncomplete int
	Complete        bool
}

type Aggregator struct {
	scorer  *scorer.Scorer
	redact  bool
	secrets []string
}

func NewAggregator(sc *scorer.Scorer, redact bool) *Aggregator {
	if sc == nil {
		sc = scorer.New(scorer.DefaultPolicy(), nil)
	}
	return &Aggregator{scorer: sc, redact: redact}
}

// WithSecrets adds values to mask on top of those found in the signals passed
// to Build. The engine uses it for secrets whose signals were filtered out.
func (a *Aggregator) WithSecrets(values []string) *Aggregator {
	a.secrets = append(a.secrets, values...)
	return a
}

// Build sorts signals, checks relationship endpoints and computes the summary.
// Inputs are copied; the returned report shares no slices with them.
func (a *Aggregator) Build(meta Metadata, signals []signal.Signal, rels []signal.Relationship, diags []signal.Diagnostic, stats Stats) (*Report, error) {
	sigs := append([]signal.Signal(nil), signals...)
	SortSignals(sigs)

	ids := make(map[string]bool, len(sigs))
	for _, s := range sigs {
		ids[s.ID] = true
	}
	relsCopy := append([]signal.Relationship(nil), rels...)
	for _, r := range relsCopy {
		if !ids[r.From] {
			return nil, scanerr.NewIntegrityError(r.From, r.To, r.From)
		}
		if !ids[r.To] {
			return nil, scanerr.NewIntegrityError(r.From, r.To, r.To)
		}
	}

	if a.redact {
		red := NewRedactor(append(SecretValues(sigs), a.secrets...))
		for i := range sigs {
			red.Apply(&sigs[i])
		}
	}

	summary := Summary{
		FilesScanned:      stats.FilesScanned,
		FilesSkipped:      stats.FilesSkipped,
		FilesIncomplete:   stats.FilesIncomplete,
		Complete:          stats.Complete,
		Findings:          len(sigs),
		SeverityBreakdown: make(map[string]int, len(signal.Severities)),
		CategoryBreakdown: make(map[string]int),
	}
	for _, sev := range signal.Severities {
		summary.SeverityBreakdown[string(sev)] = 0
	}
	failed := make(map[string]bool)
	var confidence float64
	for _, s := range sigs {
		summary.SeverityBreakdown[string(s.Severity)]++
		summary.CategoryBreakdown[s.Type]++
		confidence += s.Confidence
		switch s.Type {
		case signal.TypeDetectorError:
			failed[s.DetectorID] = true
		case signal.TypeScanIncomplete:
			summary.Complete = false
		}
	}
	summary.DetectorsFailed = len(failed)
	if len(sigs) > 0 {
		summary.AverageConfidence = round3(confidence / float64(len(sigs)))
	}

	result := a.scorer.Score(sigs)
	summary.RiskScore = result.RiskScore
	summary.RiskAssessment = scorer.Assess(result)

	meta.DetectorsLoaded = append([]string(nil), meta.DetectorsLoaded...)
	sort.Strings(meta.DetectorsLoaded)
	if meta.ScannerVersion == "" {
		meta.ScannerVersion = ScannerVersion
	}

	return &Report{
		Metadata:      meta,
		Signals:       sigs,
		Relationships: relsCopy,
		Diagnostics:   append([]signal.Diagnostic(nil), diags...),
		Summary:       summary,
	}, nil
}

// SortSignals orders by (file, line, column, detector_id, id).
func SortSignals(sigs []signal.Signal) {
	sort.SliceStable(sigs, func(i, j int) bool {
		a, b := sigs[i], sigs[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		if a.DetectorID != b.DetectorID {
			return a.DetectorID < b.DetectorID
		}
		return a.ID < b.ID
	})
}

// FailOn reports whether any signal reaches min. Diagnostics never trip it.
func FailOn(r *Report, min signal.Severity) bool {
	if r == nil || !min.Valid() {
		return false
	}
	for _, s := range r.Signals {
		if signal.IsDiagnostic(s.Type) {
			continue
		}
		if s.Severity.AtLeast(min) {
			return true
		}
	}
	return false
}

// Mask keeps a 4 character prefix and suffix. Values of 8 characters or
// fewer are masked entirely.
func Mask(value string) string {
	r := []rune(value)
	if len(r) <= 8 {
		return strings.Repeat("*", len(r))
	}
	return string(r[:4]) + strings.Repeat("*", len(r)-8) + string(r[len(r)-4:])
}

// SecretValues returns the distinct raw values carried by secret and high
// entropy signals.
func SecretValues(sigs []signal.Signal) []string {
	var out []string
	for _, s := range sigs {
		if s.Type != signal.TypeSecret && s.Type != signal.TypeHighEntropy {
			continue
		}
		v := s.Value
		if v == "" {
			v = s.Evidence
		}
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Redactor masks a fixed set of secret values in every text field of a
// signal, whichever detector produced it.
type Redactor struct {
	values []string
}

func NewRedactor(values []string) *Redactor {
	seen := make(map[string]bool, len(values))
	uniq := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		uniq = append(uniq, v)
	}
	// Longer values first so a value nested in another cannot unmask it.
	sort.Slice(uniq, func(i, j int) bool {
		if len(uniq[i]) != len(uniq[j]) {
			return len(uniq[i]) > len(uniq[j])
		}
		return uniq[i] < uniq[j]
	})
	return &Redactor{values: uniq}
}

func (r *Redactor) mask(text string) string {
	for _, v := range r.values {
		if strings.Contains(text, v) {
			text = strings.ReplaceAll(text, v, Mask(v))
		}
	}
	return text
}

// Apply rewrites evidence, detail, context and value in place.
func (r *Redactor) Apply(s *signal.Signal) {
	if len(r.values) == 0 {
		return
	}
	s.Evidence = r.mask(s.Evidence)
	s.Detail = r.mask(s.Detail)
	s.Context.Snippet = r.mask(s.Context.Snippet)
	s.Context.Pre = r.mask(s.Context.Pre)
	s.Context.Post = r.mask(s.Context.Post)
	s.Value = r.mask(s.Value)
}

func round3(v float64) float64 {
	return float64(int64(v*1000+0.5)) / 1000
}
