package detector

import (
	"iter"

	"disruptiq/internal/language"
	"disruptiq/internal/signal"
	"disruptiq/internal/syntax"
)

// Kind tags the matching strategy behind a detector.
type Kind string

const (
	KindPattern     Kind = "pattern"
	KindStructural  Kind = "structural"
	KindStatistical Kind = "statistical"
	KindManifest    Kind = "manifest"
)

// File is the input handed to every detector.
type File struct {
	Path     string
	Language language.Language
	Content  string
	Lines    *LineIndex
	// Tree is nil unless a parser is integrated for the language.
	Tree *syntax.Tree
}

// NewFile builds a File and its line index.
func NewFile(path string, lang language.Language, content string) *File {
	return &File{
		Path:     path,
		Language: lang,
		Content:  content,
		Lines:    NewLineIndex(content),
	}
}

// Match is a partial signal. The engine fills in ids, detector id and file.
type Match struct {
	Type        string
	Offset      int
	Length      int
	Line        int // 0 derives line and column from Offset
	Column      int
	Severity    signal.Severity // empty uses the detector default
	Confidence  float64
	Detail      string
	Evidence    string
	Value       string
	Tags        []string
	Remediation string
}

// Detector is a pure function from a file to a lazy sequence of matches.
// Implementations must not hold mutable state shared between calls.
type Detector interface {
	ID() string
	Kind() Kind
	Languages() []language.Language
	DefaultSeverity() signal.Severity
	Match(f *File) iter.Seq[Match]
}

// Supports reports whether d declares lang or the wildcard.
func Supports(d Detector, lang language.Language) bool {
	for _, l := range d.Languages() {
		if l == language.All || l == lang {
			return true
		}
	}
	return false
}
