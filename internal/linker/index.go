package linker

import (
	"sort"

	"disruptiq/internal/signal"
)

// DefaultMaxPerFile caps the per-file pairwise rules.
const DefaultMaxPerFile = 500

// Index groups the linkable signals of a scan. Diagnostic signals are left
// out because nothing links to them.
type Index struct {
	signals    []*signal.Signal
	byFile     map[string][]*signal.Signal
	files      []string
	capped     []string
	maxPerFile int
}

// NewIndex sorts signals by (file, offset, id) and groups them per file.
func NewIndex(signals []signal.Signal, maxPerFile int) *Index {
	if maxPerFile <= 0 {
		maxPerFile = DefaultMaxPerFile
	}
	idx := &Index{byFile: make(map[string][]*signal.Signal), maxPerFile: maxPerFile}
	for i := range signals {
		s := &signals[i]
		if signal.IsDiagnostic(s.Type) {
			continue
		}
		idx.signals = append(idx.signals, s)
	}
	sort.SliceStable(idx.signals, func(a, b int) bool {
		sa, sb := idx.signals[a], idx.signals[b]
		if sa.File != sb.File {
			return sa.File < sb.File
		}
		if sa.Offset != sb.Offset {
			return sa.Offset < sb.Offset
		}
		return sa.ID < sb.ID
	})
	for _, s := range idx.signals {
		if _, ok := idx.byFile[s.File]; !ok {
			idx.files = append(idx.files, s.File)
		}
		idx.byFile[s.File] = append(idx.byFile[s.File], s)
	}
	for _, f := range idx.files {
		if len(idx.byFile[f]) > maxPerFile {
			idx.capped = append(idx.capped, f)
		}
	}
	return idx
}

// All returns every indexed signal in index order.
func (i *Index) All() []*signal.Signal {
	return i.signals
}

// Files lists files under the cap, sorted.
func (i *Index) Files() []string {
	out := make([]string, 0, len(i.files))
	for _, f := range i.files {
		if len(i.byFile[f]) <= i.maxPerFile {
			out = append(out, f)
		}
	}
	return out
}

// InFile returns the signals of file ordered by offset.
func (i *Index) InFile(file string) []*signal.Signal {
	return i.byFile[file]
}

// Capped lists files skipped by per-file rules.
func (i *Index) Capped() []string {
	return i.capped
}
