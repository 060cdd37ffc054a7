package errors

import (
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInputError_Unwrap(t *testing.T) {
	err := fmt.Errorf("scan: %w", NewInputError("/nope", "stat failed", fs.ErrNotExist))

	var inputErr *InputError
	require.True(t, As(err, &inputErr))
	assert.Equal(t, "/nope", inputErr.Path)
	assert.True(t, Is(err, fs.ErrNotExist))
	assert.Contains(t, err.Error(), "stat failed")
}

func TestDuplicateDetectorError_Message(t *testing.T) {
	err := NewDuplicateDetectorError("secret_v1")
	assert.Equal(t, "detector already registered: secret_v1", err.Error())
}

func TestFileError_WrapsBinary(t *testing.T) {
	err := NewFileError("a.py", "decode", ErrBinaryContent)
	assert.True(t, Is(err, ErrBinaryContent))

	var fileErr *FileError
	require.True(t, As(err, &fileErr))
	assert.Equal(t, "decode", fileErr.Stage)
}
