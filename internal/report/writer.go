package report

import (
	"fmt"
	"io"
	"strings"
)

// Writer serializes a report.
type Writer interface {
	Write(w io.Writer, r *Report) error
}

// Formats lists the accepted --format values.
var Formats = []string{"json", "sarif", "table"}

// WriterFor selects the writer registered for format.
func WriterFor(format string) (Writer, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		return JSONWriter{}, nil
	case "sarif":
		return SARIFWriter{}, nil
	case "table":
		return TableWriter{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want one of %s)", format, strings.Join(Formats, ", "))
	}
}
