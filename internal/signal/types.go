package signal

import (
	"sort"
	"strings"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Severities lists every bucket from most to least severe.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo}

// Rank orders severities so that critical > high > medium > low > info.
// Unknown values rank below info.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	case SeverityInfo:
		return 0
	default:
		return -1
	}
}

func (s Severity) Valid() bool {
	return s.Rank() >= 0
}

// AtLeast reports whether s is as severe as min or more.
func (s Severity) AtLeast(min Severity) bool {
	return s.Rank() >= min.Rank()
}

// ParseSeverity accepts any case and surrounding spaces.
func ParseSeverity(raw string) (Severity, bool) {
	s := Severity(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", false
	}
	return s, true
}

// Signal types shared between detectors and the linker.
const (
	TypeSecret            = "secret"
	TypeHardcodedURL      = "hardcoded_url"
	TypeLocalIP           = "local_ip"
	TypeHTTPCall          = "http_call"
	TypePortExposure      = "port_exposure"
	TypeDatabaseConn      = "database_connection"
	TypeHighEntropy       = "high_entropy_string"
	TypeUnpinnedVersion   = "unpinned_version"
	TypeGitDependency     = "git_dependency"
	TypePostinstall       = "postinstall_script"
	TypeObfuscatedCode    = "obfuscated_code"
	TypeUnpinnedBaseImage = "unpinned_base_image"
	TypeContainerRisk     = "container_risk"
	TypeUnpinnedCIAction  = "unpinned_ci_action"
	TypeLocalReplace      = "local_replace"
	TypeCommandExec       = "command_execution"
	TypeInsecureTLS       = "insecure_tls"
	TypeWebSocket         = "websocket"
	TypeCORSWildcard      = "cors_wildcard"
	TypeCloudSDK          = "cloud_sdk"
	TypeRawSocket         = "raw_socket"

	// Diagnostic signal types recorded by the engine itself.
	TypeParseFailure   = "parse_failure"
	TypeDetectorError  = "detector_error"
	TypeScanIncomplete = "scan_incomplete"
)

// IsDiagnostic reports whether a type describes the scan rather than the code.
func IsDiagnostic(typ string) bool {
	switch typ {
	case TypeParseFailure, TypeDetectorError, TypeScanIncomplete:
		return true
	}
	return false
}

type Context struct {
	Snippet string `json:"snippet"`
	Pre     string `json:"pre,omitempty"`
	Post    string `json:"post,omitempty"`
}

// Signal is one detection event.
type Signal struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	DetectorID  string   `json:"detector_id"`
	File        string   `json:"file"`
	Line        int      `json:"line"`
	Column      int      `json:"column,omitempty"`
	Severity    Severity `json:"severity"`
	Confidence  float64  `json:"confidence"`
	Detail      string   `json:"detail"`
	Evidence    string   `json:"evidence"`
	Context     Context  `json:"context"`
	Tags        []string `json:"tags,omitempty"`
	Remediation string   `json:"remediation,omitempty"`

	// Byte range inside the decoded file content.
	Offset int `json:"-"`
	Length int `json:"-"`
	// Normalized literal the match refers to. Never serialized.
	Value string `json:"-"`
}

// HasTag reports whether the signal carries tag.
func (s *Signal) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// End returns the exclusive end of the signal's byte range.
func (s *Signal) End() int {
	return s.Offset + s.Length
}

// Relationship is a directed edge between two signal ids.
type Relationship struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// Diagnostic records a soft failure that did not produce a signal.
type Diagnostic struct {
	File    string `json:"file"`
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// NormalizeTags returns a sorted copy of tags without blanks or duplicates.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}
