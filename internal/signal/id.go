package signal

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// BuildStableID creates a deterministic signal ID.
// The ID is derived from (file, line, detector, matched text) so repeated scans
// of the same input produce the same ID and duplicates collapse.
func BuildStableID(file string, line int, detectorID, evidence string) string {
	file = strings.TrimSpace(file)
	if file == "" {
		file = "_"
	}

	detectorID = strings.TrimSpace(detectorID)
	if detectorID == "" {
		detectorID = "unknown"
	}

	fingerprint := strings.Join([]string{
		file,
		strconv.Itoa(line),
		detectorID,
		canonicalize(evidence),
	}, "|")

	sum := sha256.Sum256([]byte(fingerprint))
	short := hex.EncodeToString(sum[:8])
	return fmt.Sprintf("%s:%s", idPrefix(detectorID), short)
}

// idPrefix strips the version suffix: hardcoded_url_v1 -> hardcoded_url.
func idPrefix(detectorID string) string {
	if i := strings.LastIndex(detectorID, "_v"); i > 0 {
		if _, err := strconv.Atoi(detectorID[i+2:]); err == nil {
			return detectorID[:i]
		}
	}
	return detectorID
}

func canonicalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return whitespaceRe.ReplaceAllString(s, " ")
}
