// Package scanner enumerates the Python source files under a project root.
package scanner

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultExcludes lists the directory names skipped during scanning:
// virtual environments, build output, VCS metadata, and bytecode caches.
var DefaultExcludes = []string{"venv", ".venv", "build", "dist", ".git", "__pycache__"}

// Scanner walks a project root collecting .py files as root-relative,
// slash-separated paths.
type Scanner struct {
	root     string
	patterns []string
}

// New creates a Scanner for the given root. A nil exclude list means
// DefaultExcludes.
func New(root string, exclude []string) *Scanner {
	if exclude == nil {
		exclude = DefaultExcludes
	}
	return &Scanner{root: root, patterns: exclude}
}

// Scan returns the set of Python files under the root. Excluded
// directories are pruned without descending into them.
func (s *Scanner) Scan() (map[string]bool, error) {
	files := make(map[string]bool)

	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			if s.Excluded(rel) {
				return fs.SkipDir
			}
			return nil
		}

		if filepath.Ext(p) != ".py" {
			return nil
		}
		if s.Excluded(rel) {
			return nil
		}

		files[rel] = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", s.root, err)
	}

	return files, nil
}

// Excluded reports whether a root-relative path matches any exclusion
// pattern. Patterns without a slash are matched against each path
// segment, so "venv" excludes venv/ at any depth without touching
// names that merely contain it. Patterns with a slash are matched
// against the whole relative path.
func (s *Scanner) Excluded(rel string) bool {
	segments := strings.Split(rel, "/")

	for _, pattern := range s.patterns {
		if strings.Contains(pattern, "/") {
			if ok, _ := doublestar.Match(pattern, rel); ok {
				return true
			}
			continue
		}
		for _, seg := range segments {
			if ok, _ := doublestar.Match(pattern, seg); ok {
				return true
			}
		}
	}
	return false
}
