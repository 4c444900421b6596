// Package gitinfo reads the book's git revision for the report header.
package gitinfo

import (
	"errors"
	"fmt"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// ErrNotRepository is returned when dir is not inside a git work tree.
var ErrNotRepository = errors.New("not a git repository")

// Revision identifies the checked-out commit.
type Revision struct {
	Hash   string // Full commit hash
	Branch string // Short branch name, empty on a detached HEAD
	Dirty  bool   // Work tree has uncommitted changes
}

// String renders the hash, suffixed with "-dirty" for modified work trees.
func (r Revision) String() string {
	if r.Dirty {
		return r.Hash + "-dirty"
	}
	return r.Hash
}

// Head opens the repository containing dir (searching parent directories)
// and describes its HEAD commit.
func Head(dir string) (Revision, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return Revision{}, ErrNotRepository
	}
	if err != nil {
		return Revision{}, fmt.Errorf("open repository: %w", err)
	}

	ref, err := repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return Revision{}, fmt.Errorf("repository has no commits: %w", err)
		}
		return Revision{}, fmt.Errorf("resolve HEAD: %w", err)
	}

	rev := Revision{Hash: ref.Hash().String()}
	if ref.Name().IsBranch() {
		rev.Branch = ref.Name().Short()
	}

	wt, err := repo.Worktree()
	if err != nil {
		// Bare repositories have no work tree to be dirty.
		return rev, nil
	}
	status, err := wt.Status()
	if err != nil {
		return Revision{}, fmt.Errorf("read work tree status: %w", err)
	}
	rev.Dirty = !status.IsClean()
	return rev, nil
}

// Describe returns Head(dir).String(), or "" when the revision cannot be read.
func Describe(dir string) string {
	rev, err := Head(dir)
	if err != nil {
		return ""
	}
	return rev.String()
}
