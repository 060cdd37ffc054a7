package report

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"disruptiq/internal/signal"
)

//go:embed report.schema.json
var reportSchemaJSON []byte

const reportSchemaURL = "https://disruptiq.dev/schemas/report.schema.json"

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(reportSchemaURL, bytes.NewReader(reportSchemaJSON)); err != nil {
			schemaErr = err
			return
		}
		compiledSchema, schemaErr = compiler.Compile(reportSchemaURL)
	})
	return compiledSchema, schemaErr
}

// Finding is the canonical JSON shape of a signal.
type Finding struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	DetectorID  string         `json:"detector_id"`
	File        string         `json:"file"`
	Line        int            `json:"line"`
	Column      int            `json:"column,omitempty"`
	Severity    string         `json:"severity"`
	Confidence  float64        `json:"confidence"`
	Detail      string         `json:"detail,omitempty"`
	Evidence    []string       `json:"evidence"`
	Context     signal.Context `json:"context"`
	Tags        []string       `json:"tags,omitempty"`
	Remediation string         `json:"remediation,omitempty"`
}

// Document is the canonical JSON report.
type Document struct {
	Repo           string                `json:"repo"`
	Metadata       Metadata              `json:"metadata"`
	Summary        Summary               `json:"summary"`
	Findings       []Finding             `json:"findings"`
	Relationships  []signal.Relationship `json:"relationships"`
	Diagnostics    []signal.Diagnostic   `json:"diagnostics"`
	RiskAssessment string                `json:"risk_assessment"`
}

// NewDocument converts r into its canonical JSON shape.
func NewDocument(r *Report) Document {
	doc := Document{
		Repo:           filepath.Base(r.Metadata.Root),
		Metadata:       r.Metadata,
		Summary:        r.Summary,
		Findings:       make([]Finding, 0, len(r.Signals)),
		Relationships:  append([]signal.Relationship{}, r.Relationships...),
		Diagnostics:    append([]signal.Diagnostic{}, r.Diagnostics...),
		RiskAssessment: r.Summary.RiskAssessment,
	}
	if doc.Metadata.DetectorsLoaded == nil {
		doc.Metadata.DetectorsLoaded = []string{}
	}
	for _, s := range r.Signals {
		evidence := []string{}
		if s.Evidence != "" {
			evidence = append(evidence, s.Evidence)
		}
		doc.Findings = append(doc.Findings, Finding{
			ID:          s.ID,
			Type:        s.Type,
			DetectorID:  s.DetectorID,
			File:        s.File,
			Line:        s.Line,
			Column:      s.Column,
			Severity:    string(s.Severity),
			Confidence:  s.Confidence,
			Detail:      s.Detail,
			Evidence:    evidence,
			Context:     s.Context,
			Tags:        s.Tags,
			Remediation: s.Remediation,
		})
	}
	return doc
}

// JSONWriter writes the canonical document after validating it against the
// embedded schema.
type JSONWriter struct{}

func (JSONWriter) Write(w io.Writer, r *Report) error {
	raw, err := json.MarshalIndent(NewDocument(r), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := ValidateJSON(raw); err != nil {
		return err
	}
	raw = append(raw, '\n')
	_, err = w.Write(raw)
	return err
}

// ValidateJSON checks a serialized report against the embedded schema.
func ValidateJSON(raw []byte) error {
	schema, err := loadSchema()
	if err != nil {
		return fmt.Errorf("failed to compile report schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("failed to normalize report for schema validation: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("report schema validation failed: %w", err)
	}
	return nil
}
