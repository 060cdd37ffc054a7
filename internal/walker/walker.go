package walker

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/hashicorp/go-hclog"

	scanerr "disruptiq/internal/errors"
	"disruptiq/internal/language"
	"disruptiq/internal/signal"
)

// DefaultIgnoredDirs are never descended into.
var DefaultIgnoredDirs = []string{
	".git", ".hg", ".svn", "node_modules", "vendor", "__pycache__",
	".venv", "venv", ".tox", "dist", "build", "target", ".idea", ".vscode",
}

// DefaultBinaryExtensions are skipped without reading their bytes.
var DefaultBinaryExtensions = []string{
	".png", ".jpg", ".jpeg", ".gif", ".bmp", ".ico", ".webp", ".tiff", ".svgz",
	".zip", ".tar", ".gz", ".tgz", ".bz2", ".xz", ".7z", ".rar", ".jar", ".war",
	".exe", ".dll", ".so", ".dylib", ".bin", ".o", ".a", ".class", ".pyc", ".wasm",
	".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx",
	".mp3", ".mp4", ".mov", ".avi", ".wav", ".ogg", ".woff", ".woff2", ".ttf", ".eot",
	".db", ".sqlite", ".sqlite3",
}

type Options struct {
	Include          []string // doublestar globs over the relative path
	Exclude          []string
	MaxFileSize      int64 // 0 disables the limit
	BinaryExtensions []string
	IgnoredDirs      []string
	UseGitignore     bool
	Languages        []language.Language // empty means every language
	// Only restricts the walk to these relative paths when non-nil.
	Only map[string]bool
}

// Stats summarizes one walk.
type Stats struct {
	Candidates  int
	Ignored     int
	Diagnostics []signal.Diagnostic
}

// Skipped counts files dropped because of a soft failure.
func (s Stats) Skipped() int {
	return len(s.Diagnostics)
}

// Walker enumerates repository files honoring ignore rules.
type Walker struct {
	opts      Options
	binary    map[string]bool
	ignored   map[string]bool
	languages map[language.Language]bool
	logger    hclog.Logger
}

// New creates a walker. A nil logger discards output.
func New(opts Options, logger hclog.Logger) *Walker {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if opts.BinaryExtensions == nil {
		opts.BinaryExtensions = DefaultBinaryExtensions
	}
	if opts.IgnoredDirs == nil {
		opts.IgnoredDirs = DefaultIgnoredDirs
	}
	w := &Walker{
		opts:      opts,
		binary:    toSet(opts.BinaryExtensions),
		ignored:   toSet(opts.IgnoredDirs),
		languages: make(map[language.Language]bool, len(opts.Languages)),
		logger:    logger,
	}
	for _, l := range opts.Languages {
		w.languages[l] = true
	}
	return w
}

// Walk validates root, collects candidates, sorts them lexicographically and
// streams them to onFile. It can be called again on the same root.
// An error returned by onFile, or ctx ending, stops the walk and is returned
// as is.
func (w *Walker) Walk(ctx context.Context, root string, onFile func(*FileRecord) error) (Stats, error) {
	var stats Stats

	absRoot, err := ValidateRoot(root)
	if err != nil {
		return stats, err
	}

	candidates, err := w.collect(ctx, absRoot, &stats)
	if err != nil {
		return stats, err
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Path < candidates[j].Path
	})
	stats.Candidates = len(candidates)
	w.logger.Debug("walk collected candidates", "root", absRoot, "files", len(candidates), "ignored", stats.Ignored)

	for _, rec := range candidates {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := onFile(rec); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// ValidateRoot resolves root and checks it is a readable directory.
func ValidateRoot(root string) (string, error) {
	if strings.TrimSpace(root) == "" {
		return "", scanerr.NewInputError(root, "empty path", nil)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", scanerr.NewInputError(root, "resolve path", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", scanerr.NewInputError(root, "stat failed", err)
	}
	if !info.IsDir() {
		return "", scanerr.NewInputError(root, "not a directory", nil)
	}
	if _, err := os.ReadDir(abs); err != nil {
		return "", scanerr.NewInputError(root, "unreadable", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return abs, nil
}

func (w *Walker) collect(ctx context.Context, absRoot string, stats *Stats) ([]*FileRecord, error) {
	var (
		candidates []*FileRecord
		patterns   []gitignore.Pattern
		matcher    gitignore.Matcher
	)

	if w.opts.UseGitignore {
		patterns = append(patterns, readGitignore(absRoot, nil)...)
		matcher = gitignore.NewMatcher(patterns)
	}

	err := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if path == absRoot {
			return err
		}
		rel, relErr := filepath.Rel(absRoot, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if err != nil {
			stats.Diagnostics = append(stats.Diagnostics, signal.Diagnostic{File: rel, Stage: "walk", Message: err.Error()})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		segments := strings.Split(rel, "/")

		if d.IsDir() {
			if w.ignored[d.Name()] {
				return filepath.SkipDir
			}
			if matcher != nil && matcher.Match(segments, true) {
				stats.Ignored++
				return filepath.SkipDir
			}
			if w.excluded(rel) {
				stats.Ignored++
				return filepath.SkipDir
			}
			if w.opts.UseGitignore {
				if more := readGitignore(path, segments); len(more) > 0 {
					patterns = append(patterns, more...)
					matcher = gitignore.NewMatcher(patterns)
				}
			}
			return nil
		}

		if matcher != nil && matcher.Match(segments, false) {
			stats.Ignored++
			return nil
		}

		var size int64
		switch {
		case d.Type()&fs.ModeSymlink != 0:
			target, err := filepath.EvalSymlinks(path)
			if err != nil {
				stats.Diagnostics = append(stats.Diagnostics, signal.Diagnostic{File: rel, Stage: "walk", Message: "broken symlink: " + err.Error()})
				return nil
			}
			if _, err := EnsureWithinRoot(absRoot, target); err != nil {
				stats.Diagnostics = append(stats.Diagnostics, signal.Diagnostic{File: rel, Stage: "walk", Message: err.Error()})
				return nil
			}
			info, err := os.Stat(target)
			if err != nil {
				stats.Diagnostics = append(stats.Diagnostics, signal.Diagnostic{File: rel, Stage: "walk", Message: err.Error()})
				return nil
			}
			if info.IsDir() {
				// Directory links are not followed; the target is walked on its own.
				stats.Ignored++
				return nil
			}
			size = info.Size()
		case d.Type().IsRegular():
			info, err := d.Info()
			if err != nil {
				stats.Diagnostics = append(stats.Diagnostics, signal.Diagnostic{File: rel, Stage: "walk", Message: err.Error()})
				return nil
			}
			size = info.Size()
		default:
			return nil
		}

		if !w.accept(rel) {
			stats.Ignored++
			return nil
		}

		lang := language.Classify(rel)
		if len(w.languages) > 0 && !w.languages[lang] {
			stats.Ignored++
			return nil
		}

		if w.opts.MaxFileSize > 0 && size > w.opts.MaxFileSize {
			stats.Diagnostics = append(stats.Diagnostics, signal.Diagnostic{
				File:    rel,
				Stage:   "walk",
				Message: fmt.Sprintf("file size %d exceeds limit %d", size, w.opts.MaxFileSize),
			})
			return nil
		}

		candidates = append(candidates, &FileRecord{
			Path:     rel,
			AbsPath:  path,
			Language: lang,
			Size:     size,
		})
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, scanerr.NewInputError(absRoot, "walk failed", err)
	}
	return candidates, nil
}

// accept applies the Only set, the binary denylist and include/exclude globs.
func (w *Walker) accept(rel string) bool {
	if w.opts.Only != nil && !w.opts.Only[rel] {
		return false
	}
	if w.binary[strings.ToLower(filepath.Ext(rel))] {
		return false
	}
	if w.excluded(rel) {
		return false
	}
	if len(w.opts.Include) == 0 {
		return true
	}
	for _, pattern := range w.opts.Include {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func (w *Walker) excluded(rel string) bool {
	for _, pattern := range w.opts.Exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// EnsureWithinRoot returns the absolute target if it stays inside root.
func EnsureWithinRoot(root, target string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve root: %w", err)
	}
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return "", fmt.Errorf("resolve path %q: %w", target, err)
	}
	rel, err := filepath.Rel(absRoot, absTarget)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("symlink target %q escapes root %q", absTarget, absRoot)
	}
	return absTarget, nil
}

func readGitignore(dir string, domain []string) []gitignore.Pattern {
	f, err := os.Open(filepath.Join(dir, ".gitignore"))
	if err != nil {
		return nil
	}
	defer f.Close()

	var ps []gitignore.Pattern
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ps = append(ps, gitignore.ParsePattern(line, domain))
	}
	return ps
}

func toSet(values []string) map[string]bool {
	out := make(map[string]bool, len(values))
	for _, v := range values {
		out[strings.ToLower(v)] = true
	}
	return out
}
