// Package gitdiff enumerates the changed Python files of a repository
// against a base ref.
package gitdiff

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"
)

// ChangedFiles returns the Python files added or modified between the
// base ref and headRef, as root-relative slash paths. An empty or
// "HEAD" headRef means the current HEAD. The diff runs from the merge
// base, so commits already on the base branch do not count. Deleted
// files and files missing from the working tree are dropped. Any
// failure is returned to the caller; without a changed-file list there
// is nothing to select.
func ChangedFiles(root, baseRef, headRef string) ([]string, error) {
	repo, err := git.PlainOpen(root)
	if err != nil {
		return nil, fmt.Errorf("opening repository at %s: %w", root, err)
	}

	baseCommit, err := resolveCommit(repo, baseRef)
	if err != nil {
		return nil, err
	}

	var headCommit *object.Commit
	if headRef == "" || headRef == "HEAD" {
		ref, err := repo.Head()
		if err != nil {
			return nil, fmt.Errorf("reading HEAD: %w", err)
		}
		headCommit, err = repo.CommitObject(ref.Hash())
		if err != nil {
			return nil, fmt.Errorf("reading HEAD commit: %w", err)
		}
	} else {
		headCommit, err = resolveCommit(repo, headRef)
		if err != nil {
			return nil, err
		}
	}

	if bases, err := baseCommit.MergeBase(headCommit); err == nil && len(bases) > 0 {
		baseCommit = bases[0]
	}

	baseTree, err := baseCommit.Tree()
	if err != nil {
		return nil, fmt.Errorf("reading base tree: %w", err)
	}
	headTree, err := headCommit.Tree()
	if err != nil {
		return nil, fmt.Errorf("reading head tree: %w", err)
	}

	changes, err := baseTree.Diff(headTree)
	if err != nil {
		return nil, fmt.Errorf("diffing %s...%s: %w", baseRef, firstOr(headRef, "HEAD"), err)
	}

	var files []string
	for _, change := range changes {
		action, err := change.Action()
		if err != nil {
			continue
		}

		var name string
		switch action {
		case merkletrie.Insert, merkletrie.Modify:
			name = change.To.Name
		default:
			continue
		}

		if !strings.HasSuffix(name, ".py") {
			continue
		}
		if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(name))); err != nil {
			continue
		}
		files = append(files, name)
	}

	return files, nil
}

// Head returns the current HEAD commit hash, or an error when root is
// not a repository.
func Head(root string) (string, error) {
	repo, err := git.PlainOpen(root)
	if err != nil {
		return "", fmt.Errorf("opening repository at %s: %w", root, err)
	}
	ref, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("reading HEAD: %w", err)
	}
	return ref.Hash().String(), nil
}

// resolveCommit accepts branch names, remote refs like origin/main,
// tags, and commit hashes.
func resolveCommit(repo *git.Repository, ref string) (*object.Commit, error) {
	hash, err := repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return nil, fmt.Errorf("resolving ref %q: %w", ref, err)
	}
	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("reading commit %s: %w", hash, err)
	}
	return commit, nil
}

func firstOr(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
