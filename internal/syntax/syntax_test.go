package syntax

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"disruptiq/internal/language"
)

func TestParse_Go(t *testing.T) {
	src := []byte("package main\n\nimport \"os/exec\"\n\nfunc main() {\n\texec.Command(\"sh\", \"-c\", \"ls\")\n}\n")

	tree, err := Parse(context.Background(), language.Go, src)
	require.NoError(t, err)
	require.NotNil(t, tree)
	defer tree.Close()

	assert.False(t, tree.HasErrors)

	matches, err := tree.Query(`(call_expression function: (selector_expression) @fn) @call`)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	var fn string
	for _, c := range matches[0] {
		if c.Name == "fn" {
			fn = tree.Text(c.Node)
		}
	}
	assert.Equal(t, "exec.Command", fn)
}

func TestParse_SyntaxErrorIsFlagged(t *testing.T) {
	tree, err := Parse(context.Background(), language.Python, []byte("def broken(:\n    pass\n"))
	require.NoError(t, err)
	require.NotNil(t, tree)
	defer tree.Close()
	assert.True(t, tree.HasErrors)
}

func TestParse_Unsupported(t *testing.T) {
	tree, err := Parse(context.Background(), language.Ruby, []byte("puts 1"))
	assert.NoError(t, err)
	assert.Nil(t, tree)
	assert.False(t, Supported(language.Ruby))
	assert.True(t, Supported(language.Go))
}
