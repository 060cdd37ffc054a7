package detector

import (
	"sort"
	"strings"

	"disruptiq/internal/signal"
)

// LineIndex maps byte offsets to 1-based line/column positions.
// Newline offsets are computed once per file and searched with binary search.
type LineIndex struct {
	content  string
	newlines []int
}

func NewLineIndex(content string) *LineIndex {
	idx := &LineIndex{content: content}
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			idx.newlines = append(idx.newlines, i)
		}
	}
	return idx
}

// Position returns the line and column of offset. Both start at 1.
func (l *LineIndex) Position(offset int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if offset > len(l.content) {
		offset = len(l.content)
	}
	// number of newlines strictly before offset
	n := sort.SearchInts(l.newlines, offset)
	lineStart := 0
	if n > 0 {
		lineStart = l.newlines[n-1] + 1
	}
	return n + 1, offset - lineStart + 1
}

// LineCount is the number of lines, counting a trailing partial line.
func (l *LineIndex) LineCount() int {
	if len(l.content) == 0 {
		return 0
	}
	if strings.HasSuffix(l.content, "\n") {
		return len(l.newlines)
	}
	return len(l.newlines) + 1
}

// Line returns the text of a 1-based line without its newline.
func (l *LineIndex) Line(line int) string {
	if line < 1 || line > l.LineCount() {
		return ""
	}
	start := 0
	if line > 1 {
		start = l.newlines[line-2] + 1
	}
	end := len(l.content)
	if line-1 < len(l.newlines) {
		end = l.newlines[line-1]
	}
	return strings.TrimSuffix(l.content[start:end], "\r")
}

// LineOffset returns the byte offset of the first character of line.
func (l *LineIndex) LineOffset(line int) int {
	if line <= 1 {
		return 0
	}
	if line-2 >= len(l.newlines) {
		return len(l.content)
	}
	return l.newlines[line-2] + 1
}

// Context returns the line plus its neighbours, trimmed.
func (l *LineIndex) Context(line int) signal.Context {
	return signal.Context{
		Snippet: strings.TrimSpace(l.Line(line)),
		Pre:     strings.TrimSpace(l.Line(line - 1)),
		Post:    strings.TrimSpace(l.Line(line + 1)),
	}
}
