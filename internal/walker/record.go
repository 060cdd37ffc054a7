package walker

import (
	"bytes"
	"os"
	"sync"

	"github.com/h2non/filetype"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	scanerr "disruptiq/internal/errors"
	"disruptiq/internal/language"
)

// FileRecord is one walk candidate. Content is loaded on first use.
type FileRecord struct {
	Path     string // relative to the scan root, slash separated
	AbsPath  string
	Language language.Language
	Size     int64

	once    sync.Once
	content string
	err     error
}

// Content reads and decodes the file once. Decoding tolerates invalid bytes;
// binary content yields scanerr.ErrBinaryContent.
func (r *FileRecord) Content() (string, error) {
	r.once.Do(func() {
		raw, err := os.ReadFile(r.AbsPath)
		if err != nil {
			r.err = scanerr.NewFileError(r.Path, "read", err)
			return
		}
		text, err := Decode(raw)
		if err != nil {
			r.err = scanerr.NewFileError(r.Path, "decode", err)
			return
		}
		r.content = text
	})
	return r.content, r.err
}

// NewRecord builds a record whose content is already known. Used by tests and
// by callers scanning in-memory buffers.
func NewRecord(path string, content string) *FileRecord {
	r := &FileRecord{
		Path:     path,
		Language: language.Classify(path),
		Size:     int64(len(content)),
		content:  content,
	}
	r.once.Do(func() {})
	return r
}

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

const sniffLen = 8000

// Decode converts raw bytes to text. UTF-8 and UTF-16 byte order marks are
// honoured and invalid UTF-8 sequences become U+FFFD.
func Decode(raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	hasBOM := bytes.HasPrefix(raw, bomUTF8) || bytes.HasPrefix(raw, bomUTF16LE) || bytes.HasPrefix(raw, bomUTF16BE)
	if !hasBOM && looksBinary(raw) {
		return "", scanerr.ErrBinaryContent
	}

	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	out, _, err := transform.Bytes(decoder, raw)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// looksBinary sniffs magic numbers first, then falls back to counting NUL
// and control bytes in the head of the file.
func looksBinary(raw []byte) bool {
	head := raw
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	if kind, err := filetype.Match(head); err == nil && kind != filetype.Unknown {
		return true
	}
	if bytes.IndexByte(head, 0) >= 0 {
		return true
	}
	control := 0
	for _, b := range head {
		if b < 0x09 || (b > 0x0D && b < 0x20) {
			control++
		}
	}
	return control*100/len(head) > 30
}
