package detectors

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/mod/modfile"
	"golang.org/x/mod/module"
	"gopkg.in/yaml.v3"

	"disruptiq/internal/detector"
	"disruptiq/internal/language"
	"disruptiq/internal/signal"
)

// manifestDetector is the shared shape of the dependency manifest checks.
type manifestDetector struct {
	id    string
	langs []language.Language
	sev   signal.Severity
	match func(f *detector.File, yield func(detector.Match) bool)
}

func (d *manifestDetector) ID() string                       { return d.id }
func (d *manifestDetector) Kind() detector.Kind              { return detector.KindManifest }
func (d *manifestDetector) Languages() []language.Language   { return d.langs }
func (d *manifestDetector) DefaultSeverity() signal.Severity { return d.sev }

func (d *manifestDetector) Match(f *detector.File) iter.Seq[detector.Match] {
	return func(yield func(detector.Match) bool) {
		d.match(f, yield)
	}
}

func parseFailure(err error) detector.Match {
	return detector.Match{
		Type:       signal.TypeParseFailure,
		Line:       1,
		Severity:   signal.SeverityInfo,
		Confidence: 1,
		Detail:     fmt.Sprintf("manifest could not be parsed: %v", err),
		Evidence:   "manifest parse error",
		Tags:       []string{"diagnostic"},
	}
}

func manifestTags(lang language.Language, extra ...string) []string {
	return append([]string{"supply-chain", language.Ecosystem(lang)}, extra...)
}

// --- requirements.txt

var requirementRe = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9_.\-]*)(\[[^\]]*\])?\s*(?:(===|==|~=|!=|>=|<=|>|<)\s*([A-Za-z0-9_.*+!\-]+))?`)

// NewRequirementsDetector flags unpinned and VCS sourced pip requirements.
// Missing pins and wildcards get unpinned.
func NewRequirementsDetector(unpinned signal.Severity) detector.Detector {
	return &manifestDetector{
		id:    "requirements_v1",
		langs: []language.Language{language.Requirements},
		sev:   unpinned,
		match: func(f *detector.File, yield func(detector.Match) bool) {
			for lineNo := 1; lineNo <= f.Lines.LineCount(); lineNo++ {
				raw := f.Lines.Line(lineNo)
				line := strings.TrimSpace(stripComment(raw))
				if line == "" {
					continue
				}
				m, ok := requirementMatch(line, unpinned)
				if !ok {
					continue
				}
				m.Line = lineNo
				m.Evidence = strings.TrimSpace(raw)
				m.Tags = manifestTags(language.Requirements, m.Tags...)
				if !yield(m) {
					return
				}
			}
		},
	}
}

func stripComment(line string) string {
	if strings.HasPrefix(strings.TrimSpace(line), "#") {
		return ""
	}
	if i := strings.Index(line, " #"); i >= 0 {
		return line[:i]
	}
	return line
}

func requirementMatch(line string, unpinned signal.Severity) (detector.Match, bool) {
	if isGitSource(line) {
		return detector.Match{
			Type:        signal.TypeGitDependency,
			Severity:    signal.SeverityMedium,
			Confidence:  0.85,
			Detail:      "Dependency installed from a VCS source: " + line,
			Value:       line,
			Remediation: "Publish the package or pin the commit hash.",
		}, true
	}
	if strings.HasPrefix(line, "-") {
		return detector.Match{}, false
	}
	if i := strings.Index(line, ";"); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	sub := requirementRe.FindStringSubmatch(line)
	if sub == nil {
		return detector.Match{}, false
	}
	name := normalizePackage(sub[1])
	op, version := sub[3], sub[4]

	switch {
	case op == "":
		return unpinnedMatch(name, unpinned, fmt.Sprintf("Dependency '%s' has no version pin", name)), true
	case isWildcardVersion(version):
		return unpinnedMatch(name, unpinned, fmt.Sprintf("Dependency '%s' uses wildcard version %s", name, version)), true
	case op == ">" || op == ">=" || op == "<" || op == "<=" || op == "!=":
		if strings.Contains(line, ",") {
			return detector.Match{}, false
		}
		return unpinnedMatch(name, signal.SeverityMedium, fmt.Sprintf("Dependency '%s' uses open range %s%s", name, op, version)), true
	}
	return detector.Match{}, false
}

func unpinnedMatch(name string, sev signal.Severity, detail string) detector.Match {
	return detector.Match{
		Type:        signal.TypeUnpinnedVersion,
		Severity:    sev,
		Confidence:  0.9,
		Detail:      detail,
		Value:       name,
		Tags:        []string{"unpinned"},
		Remediation: "Pin an exact version and use a lock file.",
	}
}

func normalizePackage(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), "_", "-")
}

func isWildcardVersion(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "*" || v == "latest" || v == "x" {
		return true
	}
	return strings.HasSuffix(v, ".*") || strings.HasSuffix(v, ".x")
}

func isGitSource(s string) bool {
	s = strings.ToLower(s)
	for _, marker := range []string{"git+", "git://", "git@", "github:", "gitlab:", "bitbucket:", "github.com/", "gitlab.com/", "bitbucket.org/"} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

// --- package.json

type packageJSON struct {
	Scripts              map[string]string `json:"scripts"`
	Dependencies         map[string]string `json:"dependencies"`
	DevDependencies      map[string]string `json:"devDependencies"`
	OptionalDependencies map[string]string `json:"optionalDependencies"`
	PeerDependencies     map[string]string `json:"peerDependencies"`
}

var (
	lifecycleScripts = map[string]bool{
		"preinstall": true, "install": true, "postinstall": true,
		"prepare": true, "prepublish": true, "preprepare": true, "postprepare": true,
	}
	highRiskScriptRes = []*regexp.Regexp{
		re(`curl\s[^|]*\|\s*(?:ba|z)?sh`),
		re(`wget\s[^|]*\|\s*(?:ba|z)?sh`),
		re(`\bbash\s+-c\b`),
		re(`\bpython[0-9.]*\s+-c\b`),
	}
	mediumRiskScriptRes = []*regexp.Regexp{
		re(`\bnode\s+-e\b`),
		re(`\b(?:curl|wget)\b`),
		re(`(?i)\bdownload\b`),
		re(`\bexec\s*\(`),
		re(`\beval\s*\(`),
	}
)

// NewPackageJSONDetector inspects npm lifecycle scripts and dependency specs.
func NewPackageJSONDetector(unpinned signal.Severity) detector.Detector {
	return &manifestDetector{
		id:    "package_json_v1",
		langs: []language.Language{language.PackageJSON},
		sev:   signal.SeverityHigh,
		match: func(f *detector.File, yield func(detector.Match) bool) {
			var pkg packageJSON
			if err := json.Unmarshal([]byte(f.Content), &pkg); err != nil {
				yield(parseFailure(err))
				return
			}

			for _, name := range sortedKeys(pkg.Scripts) {
				m, ok := scriptMatch(name, pkg.Scripts[name])
				if !ok {
					continue
				}
				m.Line = jsonKeyLine(f, name, pkg.Scripts[name])
				m.Tags = manifestTags(language.PackageJSON, m.Tags...)
				if !yield(m) {
					return
				}
			}

			for _, deps := range []map[string]string{pkg.Dependencies, pkg.DevDependencies, pkg.OptionalDependencies, pkg.PeerDependencies} {
				for _, name := range sortedKeys(deps) {
					m, ok := npmVersionMatch(name, deps[name], unpinned)
					if !ok {
						continue
					}
					m.Line = jsonKeyLine(f, name, deps[name])
					m.Tags = manifestTags(language.PackageJSON, m.Tags...)
					if !yield(m) {
						return
					}
				}
			}
		},
	}
}

func scriptMatch(name, script string) (detector.Match, bool) {
	if !lifecycleScripts[name] {
		return detector.Match{}, false
	}
	m := detector.Match{
		Type:        signal.TypePostinstall,
		Severity:    signal.SeverityLow,
		Confidence:  0.7,
		Detail:      fmt.Sprintf("Lifecycle script '%s' runs on install: %s", name, script),
		Evidence:    script,
		Value:       name,
		Tags:        []string{"install-script"},
		Remediation: "Review install scripts and run installs with --ignore-scripts.",
	}
	for _, r := range highRiskScriptRes {
		if r.MatchString(script) {
			m.Severity = signal.SeverityHigh
			m.Confidence = 0.9
			return m, true
		}
	}
	for _, r := range mediumRiskScriptRes {
		if r.MatchString(script) {
			m.Severity = signal.SeverityMedium
			m.Confidence = 0.8
			return m, true
		}
	}
	return m, true
}

func npmVersionMatch(name, spec string, unpinned signal.Severity) (detector.Match, bool) {
	spec = strings.TrimSpace(spec)
	switch {
	case isGitSource(spec) || strings.HasPrefix(spec, "http://") || strings.HasPrefix(spec, "https://"):
		return detector.Match{
			Type:        signal.TypeGitDependency,
			Severity:    signal.SeverityMedium,
			Confidence:  0.85,
			Detail:      fmt.Sprintf("Dependency '%s' is fetched from %s", name, spec),
			Evidence:    spec,
			Value:       name,
			Remediation: "Depend on a published, versioned package.",
		}, true
	case spec == "" || isWildcardVersion(spec):
		m := unpinnedMatch(name, unpinned, fmt.Sprintf("Dependency '%s' uses wildcard version '%s'", name, spec))
		m.Evidence = spec
		return m, true
	case (strings.HasPrefix(spec, ">") || strings.HasPrefix(spec, "<")) && !strings.Contains(spec, " "):
		m := unpinnedMatch(name, signal.SeverityMedium, fmt.Sprintf("Dependency '%s' uses open range '%s'", name, spec))
		m.Evidence = spec
		return m, true
	}
	return detector.Match{}, false
}

func jsonKeyLine(f *detector.File, key, value string) int {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(value)
	quotedKey := `"` + regexp.QuoteMeta(key) + `"\s*:\s*`
	for _, expr := range []string{quotedKey + regexp.QuoteMeta(strings.TrimSpace(buf.String())), quotedKey} {
		if loc := regexp.MustCompile(expr).FindStringIndex(f.Content); loc != nil {
			line, _ := f.Lines.Position(loc[0])
			return line
		}
	}
	return 1
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// --- go.mod

// NewGoModDetector flags replace directives pointing at local paths and
// requirements on untagged commits or pre-module major versions.
func NewGoModDetector() detector.Detector {
	return &manifestDetector{
		id:    "go_mod_v1",
		langs: []language.Language{language.GoMod},
		sev:   signal.SeverityMedium,
		match: func(f *detector.File, yield func(detector.Match) bool) {
			mf, err := modfile.Parse(f.Path, []byte(f.Content), nil)
			if err != nil {
				yield(parseFailure(err))
				return
			}

			for _, r := range mf.Replace {
				if !modfile.IsDirectoryPath(r.New.Path) {
					continue
				}
				if !yield(detector.Match{
					Type:        signal.TypeLocalReplace,
					Line:        r.Syntax.Start.Line,
					Severity:    signal.SeverityMedium,
					Confidence:  0.9,
					Detail:      fmt.Sprintf("Module %s is replaced by local path %s", r.Old.Path, r.New.Path),
					Value:       r.Old.Path,
					Tags:        manifestTags(language.GoMod, "replace"),
					Remediation: "Drop local replace directives before release.",
				}) {
					return
				}
			}

			for _, r := range mf.Require {
				var detail string
				switch {
				case strings.HasSuffix(r.Mod.Version, "+incompatible"):
					detail = fmt.Sprintf("Dependency %s %s predates modules", r.Mod.Path, r.Mod.Version)
				case module.IsPseudoVersion(r.Mod.Version):
					detail = fmt.Sprintf("Dependency %s is pinned to untagged commit %s", r.Mod.Path, r.Mod.Version)
				default:
					continue
				}
				if !yield(detector.Match{
					Type:        signal.TypeUnpinnedVersion,
					Line:        r.Syntax.Start.Line,
					Severity:    signal.SeverityLow,
					Confidence:  0.7,
					Detail:      detail,
					Value:       r.Mod.Path,
					Tags:        manifestTags(language.GoMod, "unpinned"),
					Remediation: "Prefer tagged module releases.",
				}) {
					return
				}
			}
		},
	}
}

// --- Dockerfile

var (
	fromRe    = regexp.MustCompile(`(?i)^\s*FROM\s+(?:--platform=\S+\s+)?(\S+)(?:\s+AS\s+(\S+))?`)
	runPipeRe = regexp.MustCompile(`(?i)^\s*RUN\s.*\b(?:curl|wget)\b[^|]*\|\s*(?:ba|z)?sh\b`)
	addURLRe  = regexp.MustCompile(`(?i)^\s*ADD\s+https?://`)
)

// NewDockerfileDetector flags floating base images and piped installers.
func NewDockerfileDetector() detector.Detector {
	return &manifestDetector{
		id:    "dockerfile_v1",
		langs: []language.Language{language.Dockerfile},
		sev:   signal.SeverityHigh,
		match: func(f *detector.File, yield func(detector.Match) bool) {
			stages := make(map[string]bool)
			for n := 1; n <= f.Lines.LineCount(); n++ {
				line := f.Lines.Line(n)
				if m, ok := dockerLineMatch(line, stages); ok {
					m.Line = n
					m.Tags = manifestTags(language.Dockerfile, m.Tags...)
					if !yield(m) {
						return
					}
				}
			}
		},
	}
}

func dockerLineMatch(line string, stages map[string]bool) (detector.Match, bool) {
	if sub := fromRe.FindStringSubmatch(line); sub != nil {
		image, alias := sub[1], sub[2]
		if alias != "" {
			stages[strings.ToLower(alias)] = true
		}
		if image == "scratch" || stages[strings.ToLower(image)] || strings.Contains(image, "$") || strings.Contains(image, "@sha256:") {
			return detector.Match{}, false
		}
		tag := imageTag(image)
		if tag != "" && tag != "latest" {
			return detector.Match{}, false
		}
		detail := fmt.Sprintf("Base image %s has no tag", image)
		if tag == "latest" {
			detail = fmt.Sprintf("Base image %s uses the floating latest tag", image)
		}
		return detector.Match{
			Type:        signal.TypeUnpinnedBaseImage,
			Severity:    signal.SeverityHigh,
			Confidence:  0.9,
			Detail:      detail,
			Evidence:    strings.TrimSpace(line),
			Value:       image,
			Tags:        []string{"unpinned"},
			Remediation: "Pin the base image by version tag or digest.",
		}, true
	}
	if runPipeRe.MatchString(line) {
		return detector.Match{
			Type:        signal.TypeContainerRisk,
			Severity:    signal.SeverityHigh,
			Confidence:  0.85,
			Detail:      "Remote script piped into a shell during build",
			Evidence:    strings.TrimSpace(line),
			Tags:        []string{"install-script"},
			Remediation: "Download, verify a checksum, then execute.",
		}, true
	}
	if addURLRe.MatchString(line) {
		return detector.Match{
			Type:        signal.TypeContainerRisk,
			Severity:    signal.SeverityMedium,
			Confidence:  0.7,
			Detail:      "ADD fetches a remote URL without checksum",
			Evidence:    strings.TrimSpace(line),
			Remediation: "Use ADD --checksum or a verified download.",
		}, true
	}
	return detector.Match{}, false
}

// imageTag returns the tag of an image reference, ignoring a registry port.
func imageTag(image string) string {
	slash := strings.LastIndex(image, "/")
	colon := strings.LastIndex(image, ":")
	if colon <= slash {
		return ""
	}
	return image[colon+1:]
}

// --- GitHub workflows

var branchRefs = map[string]bool{"main": true, "master": true, "develop": true, "dev": true, "latest": true, "head": true}

// NewWorkflowDetector flags actions referenced by branch or without a ref.
func NewWorkflowDetector() detector.Detector {
	return &manifestDetector{
		id:    "github_workflow_v1",
		langs: []language.Language{language.GitHubWorkflow},
		sev:   signal.SeverityHigh,
		match: func(f *detector.File, yield func(detector.Match) bool) {
			var root yaml.Node
			if err := yaml.Unmarshal([]byte(f.Content), &root); err != nil {
				yield(parseFailure(err))
				return
			}
			walkUses(&root, func(n *yaml.Node) bool {
				m, ok := actionRefMatch(n.Value)
				if !ok {
					return true
				}
				m.Line = n.Line
				m.Column = n.Column
				m.Tags = manifestTags(language.GitHubWorkflow, "unpinned")
				return yield(m)
			})
		},
	}
}

// walkUses visits every scalar stored under a "uses" key.
func walkUses(n *yaml.Node, visit func(*yaml.Node) bool) bool {
	if n.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if k.Value == "uses" && v.Kind == yaml.ScalarNode {
				if !visit(v) {
					return false
				}
				continue
			}
			if !walkUses(v, visit) {
				return false
			}
		}
		return true
	}
	for _, c := range n.Content {
		if !walkUses(c, visit) {
			return false
		}
	}
	return true
}

func actionRefMatch(uses string) (detector.Match, bool) {
	uses = strings.TrimSpace(uses)
	if uses == "" || strings.HasPrefix(uses, "./") || strings.HasPrefix(uses, "docker://") {
		return detector.Match{}, false
	}
	m := detector.Match{
		Type:        signal.TypeUnpinnedCIAction,
		Severity:    signal.SeverityHigh,
		Confidence:  0.9,
		Evidence:    uses,
		Value:       uses,
		Remediation: "Pin the action to a full commit SHA.",
	}
	at := strings.LastIndex(uses, "@")
	if at < 0 {
		m.Detail = fmt.Sprintf("Action %s has no ref", uses)
		return m, true
	}
	if branchRefs[strings.ToLower(uses[at+1:])] {
		m.Detail = fmt.Sprintf("Action %s tracks a branch", uses)
		return m, true
	}
	return detector.Match{}, false
}

// --- obfuscation in manifests

var (
	base64RunRe    = regexp.MustCompile(`[A-Za-z0-9+/]{50,}={0,2}`)
	hexOnlyRe      = regexp.MustCompile(`^[0-9a-fA-F]+$`)
	obfuscatedJSRe = regexp.MustCompile(`\b(?:atob|String\.fromCharCode|Buffer\.from)\s*\(`)
)

// NewObfuscationDetector flags long base64 payloads and decoder calls hidden
// in manifests.
func NewObfuscationDetector() detector.Detector {
	return &manifestDetector{
		id:    "obfuscated_manifest_v1",
		langs: []language.Language{language.PackageJSON, language.Requirements, language.Dockerfile, language.GitHubWorkflow, language.GoMod},
		sev:   signal.SeverityHigh,
		match: func(f *detector.File, yield func(detector.Match) bool) {
			for _, loc := range base64RunRe.FindAllStringIndex(f.Content, -1) {
				run := f.Content[loc[0]:loc[1]]
				if hexOnlyRe.MatchString(strings.TrimRight(run, "=")) {
					continue
				}
				if !yield(detector.Match{
					Type:        signal.TypeObfuscatedCode,
					Offset:      loc[0],
					Length:      loc[1] - loc[0],
					Severity:    signal.SeverityHigh,
					Confidence:  0.6,
					Detail:      fmt.Sprintf("Base64 encoded payload of %d characters", len(run)),
					Evidence:    run,
					Tags:        manifestTags(f.Language, "obfuscation"),
					Remediation: "Decode and review the payload.",
				}) {
					return
				}
			}
			if f.Language != language.PackageJSON {
				return
			}
			for _, loc := range obfuscatedJSRe.FindAllStringIndex(f.Content, -1) {
				if !yield(detector.Match{
					Type:        signal.TypeObfuscatedCode,
					Offset:      loc[0],
					Length:      loc[1] - loc[0],
					Severity:    signal.SeverityMedium,
					Confidence:  0.6,
					Detail:      "Decoder call inside a manifest script",
					Tags:        manifestTags(f.Language, "obfuscation"),
					Remediation: "Decode and review the payload.",
				}) {
					return
				}
			}
		},
	}
}
