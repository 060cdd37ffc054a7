package language

import (
	"path"
	"strings"
)

// Language is a language or ecosystem tag used to select detectors.
type Language string

const (
	All     Language = "all"
	Unknown Language = "unknown"

	Go         Language = "go"
	Python     Language = "python"
	JavaScript Language = "javascript"
	TypeScript Language = "typescript"
	Java       Language = "java"
	Rust       Language = "rust"
	Ruby       Language = "ruby"
	PHP        Language = "php"
	CSharp     Language = "csharp"
	JSON       Language = "json"
	YAML       Language = "yaml"
	HTML       Language = "html"
	Shell      Language = "shell"
	SQL        Language = "sql"
	Env        Language = "env"
	Terraform  Language = "terraform"
	XML        Language = "xml"
	TOML       Language = "toml"

	// Manifest tags take precedence over the extension mapping.
	Requirements   Language = "pip-requirements"
	PackageJSON    Language = "npm-manifest"
	GoMod          Language = "go-module"
	Dockerfile     Language = "dockerfile"
	GitHubWorkflow Language = "github-workflow"
)

var extensions = map[string]Language{
	".go":   Go,
	".py":   Python,
	".js":   JavaScript,
	".jsx":  JavaScript,
	".mjs":  JavaScript,
	".cjs":  JavaScript,
	".ts":   TypeScript,
	".tsx":  TypeScript,
	".java": Java,
	".rs":   Rust,
	".rb":   Ruby,
	".php":  PHP,
	".cs":   CSharp,
	".json": JSON,
	".yaml": YAML,
	".yml":  YAML,
	".html": HTML,
	".htm":  HTML,
	".sh":   Shell,
	".bash": Shell,
	".sql":  SQL,
	".env":  Env,
	".tf":   Terraform,
	".xml":  XML,
	".toml": TOML,
}

// Classify maps a slash-separated relative path to a language tag.
func Classify(relPath string) Language {
	p := strings.ToLower(path.Clean(relPath))
	base := path.Base(p)

	switch {
	case base == "package.json":
		return PackageJSON
	case base == "go.mod":
		return GoMod
	case base == "dockerfile" || strings.HasPrefix(base, "dockerfile.") || strings.HasSuffix(base, ".dockerfile"):
		return Dockerfile
	case strings.HasPrefix(base, "requirements") && strings.HasSuffix(base, ".txt"):
		return Requirements
	case isWorkflow(p):
		return GitHubWorkflow
	case base == ".env" || strings.HasPrefix(base, ".env."):
		return Env
	}

	if lang, ok := extensions[path.Ext(base)]; ok {
		return lang
	}
	return Unknown
}

func isWorkflow(p string) bool {
	dir := path.Dir(p)
	if dir != ".github/workflows" && !strings.HasSuffix(dir, "/.github/workflows") {
		return false
	}
	ext := path.Ext(p)
	return ext == ".yml" || ext == ".yaml"
}

// Ecosystem returns the package-manager grouping for manifest tags.
func Ecosystem(lang Language) string {
	switch lang {
	case Requirements:
		return "pypi"
	case PackageJSON:
		return "npm"
	case GoMod:
		return "gomod"
	case Dockerfile:
		return "docker"
	case GitHubWorkflow:
		return "github-actions"
	}
	return ""
}

// IsManifest reports whether lang is a dependency or build manifest.
func IsManifest(lang Language) bool {
	return Ecosystem(lang) != ""
}

// Parse accepts a user supplied tag.
func Parse(raw string) Language {
	return Language(strings.ToLower(strings.TrimSpace(raw)))
}
