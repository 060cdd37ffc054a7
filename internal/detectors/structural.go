package detectors

import (
	"fmt"
	"iter"
	"regexp"
	"strings"

	"disruptiq/internal/detector"
	"disruptiq/internal/language"
	"disruptiq/internal/signal"
	"disruptiq/internal/syntax"
)

// ParseFailureDetail is the detail of the info match emitted when a tree
// could not be used.
const ParseFailureDetail = "parse failed, falling back to heuristic"

// StructuralQuery is a tree-sitter query and the handler turning each of its
// matches into zero or one Match.
type StructuralQuery struct {
	Pattern string
	Handle  func(t *syntax.Tree, captures map[string]syntax.Capture) (detector.Match, bool)
}

// StructuralDetector walks syntax trees of one language. Fallback rules run
// on the raw text when the tree is missing or contains errors.
type StructuralDetector struct {
	id       string
	lang     language.Language
	queries  []StructuralQuery
	fallback []fallbackRule
	dampener *detector.Dampener
}

type fallbackRule struct {
	regex    *regexp.Regexp
	typ      string
	severity signal.Severity
	detail   string
}

func (d *StructuralDetector) ID() string                       { return d.id }
func (d *StructuralDetector) Kind() detector.Kind              { return detector.KindStructural }
func (d *StructuralDetector) Languages() []language.Language   { return []language.Language{d.lang} }
func (d *StructuralDetector) DefaultSeverity() signal.Severity { return signal.SeverityMedium }

func (d *StructuralDetector) Match(f *detector.File) iter.Seq[detector.Match] {
	return func(yield func(detector.Match) bool) {
		if f.Tree == nil || f.Tree.HasErrors {
			if !yield(detector.Match{
				Type:       signal.TypeParseFailure,
				Line:       1,
				Severity:   signal.SeverityInfo,
				Confidence: 1,
				Detail:     ParseFailureDetail,
				Evidence:   ParseFailureDetail,
				Tags:       []string{"diagnostic"},
			}) {
				return
			}
			d.heuristic(f, yield)
			return
		}

		for _, q := range d.queries {
			matches, err := f.Tree.Query(q.Pattern)
			if err != nil {
				panic(fmt.Sprintf("%s: invalid query: %v", d.id, err))
			}
			for _, caps := range matches {
				byName := make(map[string]syntax.Capture, len(caps))
				for _, c := range caps {
					byName[c.Name] = c
				}
				m, ok := q.Handle(f.Tree, byName)
				if !ok {
					continue
				}
				line, _ := f.Lines.Position(m.Offset)
				d.dampener.Dampen(f, line, &m)
				if !yield(m) {
					return
				}
			}
		}
	}
}

func (d *StructuralDetector) heuristic(f *detector.File, yield func(detector.Match) bool) {
	for _, r := range d.fallback {
		for _, loc := range r.regex.FindAllStringIndex(f.Content, -1) {
			evidence := f.Content[loc[0]:loc[1]]
			m := detector.Match{
				Type:       r.typ,
				Offset:     loc[0],
				Length:     loc[1] - loc[0],
				Severity:   r.severity,
				Confidence: 0.6,
				Detail:     r.detail,
				Evidence:   evidence,
				Tags:       []string{"heuristic"},
			}
			line, _ := f.Lines.Position(loc[0])
			d.dampener.Dampen(f, line, &m)
			if !yield(m) {
				return
			}
		}
	}
}

func nodeMatch(t *syntax.Tree, c syntax.Capture) detector.Match {
	return detector.Match{
		Offset:   int(c.Node.StartByte()),
		Length:   int(c.Node.EndByte() - c.Node.StartByte()),
		Evidence: t.Text(c.Node),
	}
}

// NewGoStructural detects process execution, disabled TLS verification and
// inline database DSNs in Go source.
func NewGoStructural(dampener *detector.Dampener) *StructuralDetector {
	return &StructuralDetector{
		id:       "go_structural_v1",
		lang:     language.Go,
		dampener: dampener,
		queries: []StructuralQuery{
			{
				Pattern: `(call_expression function: (selector_expression) @fn arguments: (argument_list) @args) @call`,
				Handle:  goCall,
			},
			{
				Pattern: `(keyed_element) @kv`,
				Handle:  goInsecureTLS,
			},
		},
		fallback: []fallbackRule{
			{regex: re(`\bexec\.Command(?:Context)?\s*\(`), typ: signal.TypeCommandExec, severity: signal.SeverityMedium, detail: "Process execution"},
			{regex: re(`\bInsecureSkipVerify\s*:\s*true\b`), typ: signal.TypeInsecureTLS, severity: signal.SeverityHigh, detail: "TLS certificate verification disabled"},
		},
	}
}

var (
	shellArgRe     = regexp.MustCompile(`"(?:/bin/)?(?:sh|bash|zsh|cmd(?:\.exe)?|powershell)"`)
	insecureKVRe   = regexp.MustCompile(`^InsecureSkipVerify\s*:\s*true$`)
	dsnPasswordRe  = regexp.MustCompile("(?i)(?:password=|pwd=|://[^:@\\s\"`]+:[^@\\s\"`]+@)")
	goStringLitRe  = regexp.MustCompile("\"(?:[^\"\\\\]|\\\\.)*\"|`[^`]*`")
	pyShellTrueRe  = regexp.MustCompile(`\bshell\s*=\s*True\b`)
	pyVerifyOffRe  = regexp.MustCompile(`\bverify\s*=\s*False\b`)
	pySubprocessFn = map[string]bool{
		"subprocess.run": true, "subprocess.call": true, "subprocess.Popen": true,
		"subprocess.check_output": true, "subprocess.check_call": true,
	}
)

func goCall(t *syntax.Tree, caps map[string]syntax.Capture) (detector.Match, bool) {
	fn := t.Text(caps["fn"].Node)
	args := t.Text(caps["args"].Node)
	m := nodeMatch(t, caps["call"])

	switch fn {
	case "exec.Command", "exec.CommandContext":
		m.Type = signal.TypeCommandExec
		m.Severity = signal.SeverityMedium
		m.Confidence = 0.75
		m.Detail = "Process execution via " + fn
		m.Tags = []string{"exec"}
		m.Remediation = "Avoid passing untrusted input to child processes."
		if shellArgRe.MatchString(args) {
			m.Severity = signal.SeverityHigh
			m.Confidence = 0.85
			m.Detail = "Shell execution via " + fn
			m.Tags = append(m.Tags, "shell")
		}
		return m, true
	case "sql.Open", "sqlx.Open", "sqlx.Connect", "pgx.Connect", "gorm.Open":
		lits := goStringLitRe.FindAllString(args, -1)
		if len(lits) < 2 {
			return detector.Match{}, false
		}
		lit := lits[len(lits)-1]
		m.Type = signal.TypeDatabaseConn
		m.Severity = signal.SeverityMedium
		m.Confidence = 0.8
		m.Detail = "Inline database DSN passed to " + fn
		m.Tags = []string{"database"}
		m.Remediation = "Load connection strings from a secret store."
		m.Value = strings.Trim(lit, "\"`")
		if dsnPasswordRe.MatchString(lit) {
			m.Severity = signal.SeverityHigh
			m.Detail = "Database DSN with embedded credentials passed to " + fn
			m.Tags = append(m.Tags, "credentials")
		}
		return m, true
	}
	return detector.Match{}, false
}

func goInsecureTLS(t *syntax.Tree, caps map[string]syntax.Capture) (detector.Match, bool) {
	kv := caps["kv"]
	if !insecureKVRe.MatchString(strings.TrimSpace(t.Text(kv.Node))) {
		return detector.Match{}, false
	}
	m := nodeMatch(t, kv)
	m.Type = signal.TypeInsecureTLS
	m.Severity = signal.SeverityHigh
	m.Confidence = 0.9
	m.Detail = "TLS certificate verification disabled"
	m.Tags = []string{"tls"}
	m.Remediation = "Remove InsecureSkipVerify or pin a CA pool."
	return m, true
}

// NewPythonStructural detects shell execution, dynamic evaluation and
// disabled certificate checks in Python source.
func NewPythonStructural(dampener *detector.Dampener) *StructuralDetector {
	return &StructuralDetector{
		id:       "python_structural_v1",
		lang:     language.Python,
		dampener: dampener,
		queries: []StructuralQuery{
			{
				Pattern: `(call function: (attribute) @fn arguments: (argument_list) @args) @call`,
				Handle:  pyAttributeCall,
			},
			{
				Pattern: `(call function: (identifier) @fn arguments: (argument_list) @args) @call`,
				Handle:  pyBuiltinCall,
			},
		},
		fallback: []fallbackRule{
			{regex: re(`\bsubprocess\.\w+\([^)\n]*shell\s*=\s*True`), typ: signal.TypeCommandExec, severity: signal.SeverityHigh, detail: "Shell execution"},
			{regex: re(`\bos\.(?:system|popen)\s*\(`), typ: signal.TypeCommandExec, severity: signal.SeverityMedium, detail: "Process execution"},
			{regex: re(`(?m)(?:^|[^.\w])(?:eval|exec)\s*\(`), typ: signal.TypeCommandExec, severity: signal.SeverityMedium, detail: "Dynamic code evaluation"},
		},
	}
}

func pyAttributeCall(t *syntax.Tree, caps map[string]syntax.Capture) (detector.Match, bool) {
	fn := t.Text(caps["fn"].Node)
	args := t.Text(caps["args"].Node)
	m := nodeMatch(t, caps["call"])

	switch {
	case pySubprocessFn[fn] && pyShellTrueRe.MatchString(args):
		m.Type = signal.TypeCommandExec
		m.Severity = signal.SeverityHigh
		m.Confidence = 0.85
		m.Detail = "Shell execution via " + fn + " with shell=True"
		m.Tags = []string{"exec", "shell"}
		m.Remediation = "Pass an argument list and drop shell=True."
		return m, true
	case fn == "os.system" || fn == "os.popen":
		m.Type = signal.TypeCommandExec
		m.Severity = signal.SeverityMedium
		m.Confidence = 0.8
		m.Detail = "Process execution via " + fn
		m.Tags = []string{"exec", "shell"}
		m.Remediation = "Use subprocess with an argument list."
		return m, true
	case strings.HasPrefix(fn, "requests.") && pyVerifyOffRe.MatchString(args):
		m.Type = signal.TypeInsecureTLS
		m.Severity = signal.SeverityHigh
		m.Confidence = 0.9
		m.Detail = "Certificate verification disabled in " + fn
		m.Tags = []string{"tls"}
		m.Remediation = "Keep verify enabled or pass a CA bundle."
		return m, true
	}
	return detector.Match{}, false
}

func pyBuiltinCall(t *syntax.Tree, caps map[string]syntax.Capture) (detector.Match, bool) {
	fn := t.Text(caps["fn"].Node)
	if fn != "eval" && fn != "exec" {
		return detector.Match{}, false
	}
	m := nodeMatch(t, caps["call"])
	m.Type = signal.TypeCommandExec
	m.Severity = signal.SeverityMedium
	m.Confidence = 0.7
	m.Detail = "Dynamic code evaluation via " + fn
	m.Tags = []string{"eval"}
	m.Remediation = "Avoid evaluating dynamic code."
	return m, true
}
