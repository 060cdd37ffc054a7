package git

import (
	"fmt"
	"path/filepath"

	"github.com/go-git/go-git/v5"
)

// RepositoryMetadata describes the repository containing a scan root.
type RepositoryMetadata struct {
	BranchName string
	CommitHash string
	// Subfolder is the scan root relative to the repository root, slash
	// separated, or "" when they are the same directory.
	Subfolder      string
	RepoRootFolder string
}

// IsMainBranch reports whether the checked out branch is main or master.
func (m *RepositoryMetadata) IsMainBranch() bool {
	return m != nil && (m.BranchName == "main" || m.BranchName == "master")
}

// CollectRepositoryMetadata opens the repository enclosing sourceFolder.
// A folder outside any repository returns partial metadata and an error.
func CollectRepositoryMetadata(sourceFolder string) (*RepositoryMetadata, error) {
	if sourceFolder == "" {
		return &RepositoryMetadata{}, fmt.Errorf("source folder is not set")
	}

	if absSource, err := filepath.Abs(sourceFolder); err == nil {
		sourceFolder = absSource
	}

	md := &RepositoryMetadata{
		RepoRootFolder: filepath.Clean(sourceFolder),
	}

	repo, err := git.PlainOpenWithOptions(sourceFolder, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return md, fmt.Errorf("failed to open repository: %w", err)
	}

	if wt, err := repo.Worktree(); err == nil {
		md.RepoRootFolder = filepath.Clean(wt.Filesystem.Root())
	}

	if rel, err := filepath.Rel(md.RepoRootFolder, sourceFolder); err == nil && rel != "." {
		md.Subfolder = filepath.ToSlash(rel)
	}

	if head, err := repo.Head(); err == nil {
		if head.Name().IsBranch() {
			md.BranchName = head.Name().Short()
		}
		md.CommitHash = head.Hash().String()
	}

	return md, nil
}
