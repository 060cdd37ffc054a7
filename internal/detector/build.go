package detector

import (
	"disruptiq/internal/signal"
)

// ToSignal completes a detector match into a Signal anchored in f.
func (f *File) ToSignal(d Detector, m Match) signal.Signal {
	line, col := m.Line, m.Column
	offset, length := m.Offset, m.Length
	if line <= 0 {
		line, col = f.Lines.Position(m.Offset)
	} else if offset == 0 && length == 0 {
		offset = f.Lines.LineOffset(line)
		length = len(f.Lines.Line(line))
	}

	severity := m.Severity
	if severity == "" {
		severity = d.DefaultSeverity()
	}

	evidence := m.Evidence
	if evidence == "" && length > 0 && offset >= 0 && offset+length <= len(f.Content) {
		evidence = f.Content[offset : offset+length]
	}

	return signal.Signal{
		ID:          signal.BuildStableID(f.Path, line, d.ID(), evidence),
		Type:        m.Type,
		DetectorID:  d.ID(),
		File:        f.Path,
		Line:        line,
		Column:      col,
		Severity:    severity,
		Confidence:  m.Confidence,
		Detail:      m.Detail,
		Evidence:    evidence,
		Context:     f.Lines.Context(line),
		Tags:        signal.NormalizeTags(m.Tags),
		Remediation: m.Remediation,
		Offset:      offset,
		Length:      length,
		Value:       m.Value,
	}
}

// Diagnostic builds an info signal describing a problem with the scan itself.
func Diagnostic(typ, detectorID, file, detail string) signal.Signal {
	line := 1
	return signal.Signal{
		ID:         signal.BuildStableID(file, line, detectorID, typ+":"+detail),
		Type:       typ,
		DetectorID: detectorID,
		File:       file,
		Line:       line,
		Severity:   signal.SeverityInfo,
		Confidence: 1,
		Detail:     detail,
		Evidence:   detail,
		Tags:       []string{"diagnostic"},
	}
}
