package git

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

type ChangedFile struct {
	Path         string
	ChangedLines []int
}

// chunk header: @@ -oldStart,oldLen +newStart,newLen @@
var chunkHeader = regexp.MustCompile(`^@@ \-\d+(?:,\d+)? \+(\d+)(?:,(\d+))? @@`)

// GetChangedFiles runs git diff in repoRoot against baseRef. Paths are
// relative to the repository root. Deleted files are omitted.
func GetChangedFiles(ctx context.Context, repoRoot, baseRef string) ([]ChangedFile, error) {
	if strings.HasPrefix(baseRef, "-") {
		return nil, fmt.Errorf("invalid base ref %q", baseRef)
	}
	cmd := exec.CommandContext(ctx, "git", "-C", repoRoot, "diff", "-U0", "--no-color", baseRef, "--")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git diff failed: %w", err)
	}

	return parseDiff(output)
}

func parseDiff(output []byte) ([]ChangedFile, error) {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var changes []ChangedFile
	var currentFile *ChangedFile

	flush := func() {
		if currentFile != nil && currentFile.Path != "" {
			changes = append(changes, *currentFile)
		}
		currentFile = nil
	}

	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(line, "diff --git") {
			flush()
			parts := strings.Fields(line)
			if len(parts) >= 4 {
				// a/path b/path; the b/ side is the new version
				currentFile = &ChangedFile{Path: strings.TrimPrefix(parts[3], "b/"), ChangedLines: []int{}}
			}
			continue
		}

		if currentFile == nil {
			continue
		}

		if line == "+++ /dev/null" {
			currentFile.Path = ""
			continue
		}

		if strings.HasPrefix(line, "@@") {
			matches := chunkHeader.FindStringSubmatch(line)
			if len(matches) > 1 {
				startLine, _ := strconv.Atoi(matches[1])
				count := 1
				if len(matches) > 2 && matches[2] != "" {
					count, _ = strconv.Atoi(matches[2])
				}
				// count 0 is a pure deletion; the new file has no lines here
				for i := 0; i < count; i++ {
					currentFile.ChangedLines = append(currentFile.ChangedLines, startLine+i)
				}
			}
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return changes, nil
}

// PathsUnder returns the changed paths inside subfolder, relative to it and
// sorted. An empty subfolder keeps every path.
func PathsUnder(changes []ChangedFile, subfolder string) []string {
	prefix := strings.Trim(subfolder, "/")
	if prefix != "" {
		prefix += "/"
	}
	var paths []string
	for _, c := range changes {
		if !strings.HasPrefix(c.Path, prefix) {
			continue
		}
		paths = append(paths, strings.TrimPrefix(c.Path, prefix))
	}
	sort.Strings(paths)
	return paths
}
