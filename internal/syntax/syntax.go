package syntax

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/python"

	"disruptiq/internal/language"
)

// Tree is a parsed file. HasErrors is set when the grammar recovered from
// syntax errors; callers decide whether the partial tree is usable.
type Tree struct {
	Language  language.Language
	Source    []byte
	Root      *sitter.Node
	HasErrors bool

	tree *sitter.Tree
}

// Close releases the underlying tree-sitter tree.
func (t *Tree) Close() {
	if t != nil && t.tree != nil {
		t.tree.Close()
	}
}

// Supported reports whether a grammar is integrated for lang.
func Supported(lang language.Language) bool {
	return grammar(lang) != nil
}

func grammar(lang language.Language) *sitter.Language {
	switch lang {
	case language.Go:
		return golang.GetLanguage()
	case language.Python:
		return python.GetLanguage()
	default:
		return nil
	}
}

// Parse builds a syntax tree for source. Unsupported languages return nil, nil.
func Parse(ctx context.Context, lang language.Language, source []byte) (*Tree, error) {
	g := grammar(lang)
	if g == nil {
		return nil, nil
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(g)

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s source: %w", lang, err)
	}
	root := tree.RootNode()
	return &Tree{
		Language:  lang,
		Source:    source,
		Root:      root,
		HasErrors: root.HasError(),
		tree:      tree,
	}, nil
}

// Capture is one named node captured by a query.
type Capture struct {
	Name string
	Node *sitter.Node
}

// Query runs a tree-sitter query and returns its matches as capture lists.
func (t *Tree) Query(pattern string) ([][]Capture, error) {
	g := grammar(t.Language)
	if g == nil {
		return nil, fmt.Errorf("unsupported language: %s", t.Language)
	}
	query, err := sitter.NewQuery([]byte(pattern), g)
	if err != nil {
		return nil, fmt.Errorf("failed to create query: %w", err)
	}
	defer query.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(query, t.Root)

	var out [][]Capture
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		m = qc.FilterPredicates(m, t.Source)
		if len(m.Captures) == 0 {
			continue
		}
		captures := make([]Capture, 0, len(m.Captures))
		for _, c := range m.Captures {
			captures = append(captures, Capture{Name: query.CaptureNameForId(c.Index), Node: c.Node})
		}
		out = append(out, captures)
	}
	return out, nil
}

// Text returns the source text of n.
func (t *Tree) Text(n *sitter.Node) string {
	return n.Content(t.Source)
}
