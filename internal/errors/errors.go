package errors

import (
	"errors"
	"fmt"
)

// ErrBinaryContent marks a file whose bytes do not decode as text.
var ErrBinaryContent = errors.New("binary content")

// InputError is fatal and reported before any scanning starts.
type InputError struct {
	Path   string
	Reason string
	Err    error
}

func (e *InputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid scan root %q: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid scan root %q: %s", e.Path, e.Reason)
}

func (e *InputError) Unwrap() error { return e.Err }

func NewInputError(path, reason string, err error) error {
	return &InputError{Path: path, Reason: reason, Err: err}
}

// FileError is recovered locally; the file is skipped and a diagnostic recorded.
type FileError struct {
	Path  string
	Stage string
	Err   error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Stage, e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

func NewFileError(path, stage string, err error) error {
	return &FileError{Path: path, Stage: stage, Err: err}
}

// DetectorError isolates a failing detector to one file.
type DetectorError struct {
	DetectorID string
	Path       string
	Panic      interface{}
}

func (e *DetectorError) Error() string {
	return fmt.Sprintf("detector %q failed on %q: %v", e.DetectorID, e.Path, e.Panic)
}

func NewDetectorError(detectorID, path string, recovered interface{}) error {
	return &DetectorError{DetectorID: detectorID, Path: path, Panic: recovered}
}

// DuplicateDetectorError indicates a packaging bug: two detectors share an id.
type DuplicateDetectorError struct {
	ID string
}

func (e *DuplicateDetectorError) Error() string {
	return fmt.Sprintf("detector already registered: %s", e.ID)
}

func NewDuplicateDetectorError(id string) error {
	return &DuplicateDetectorError{ID: id}
}

// IntegrityError is raised when a relationship points at a missing signal.
type IntegrityError struct {
	From    string
	To      string
	Missing string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("relationship %s -> %s references unknown signal %s", e.From, e.To, e.Missing)
}

func NewIntegrityError(from, to, missing string) error {
	return &IntegrityError{From: from, To: to, Missing: missing}
}

// ConfigError reports an invalid configuration field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Reason)
}

func NewConfigError(field, reason string) error {
	return &ConfigError{Field: field, Reason: reason}
}

// Is, As and Join are re-exported so callers importing this package under
// its own name still reach the standard helpers.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target interface{}) bool { return errors.As(err, target) }

func Join(errs ...error) error { return errors.Join(errs...) }
