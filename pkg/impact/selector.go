package impact

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/testscope/testscope/pkg/graph"
)

// Selector answers impact queries against a built dependency graph. It
// precomputes the module-to-tests index once; the graph is not mutated
// afterwards.
type Selector struct {
	g     *graph.Graph
	index map[string]map[string]bool // non-test file -> tests reaching it
}

// NewSelector builds a Selector and its module-to-tests index: for every
// test file, each non-test file in its transitive dependency set is
// mapped back to the test.
func NewSelector(g *graph.Graph) *Selector {
	s := &Selector{g: g, index: make(map[string]map[string]bool)}

	for _, f := range g.Files() {
		if !IsTestFile(f) {
			continue
		}
		for dep := range g.Dependencies(f) {
			if IsTestFile(dep) {
				continue
			}
			if s.index[dep] == nil {
				s.index[dep] = make(map[string]bool)
			}
			s.index[dep][f] = true
		}
	}

	return s
}

// AffectedTests computes the affected test set for the changed files.
// Per changed file it unions three sources: the file itself when it is
// a test, every test among its transitive dependents, and the tests
// recorded against it in the index. A non-test file contributing no
// tests through any source is reported under NoCoverage.
func (s *Selector) AffectedTests(changed []string) *Result {
	affected := make(map[string]bool)
	var noCoverage []string

	for _, file := range changed {
		contributed := false

		if IsTestFile(file) {
			affected[file] = true
			contributed = true
		}

		for dep := range s.g.Dependents(file) {
			if IsTestFile(dep) {
				affected[dep] = true
				contributed = true
			}
		}

		for test := range s.index[file] {
			affected[test] = true
			contributed = true
		}

		if !contributed {
			noCoverage = append(noCoverage, file)
		}
	}

	return &Result{
		RunID:         uuid.New().String(),
		ChangedFiles:  changed,
		AffectedTests: sorted(affected),
		NoCoverage:    noCoverage,
		CreatedAt:     time.Now(),
	}
}

// Explain returns the diagnostic view of one changed file: its direct
// dependencies, its full transitive dependents, and the tests directly
// indexed against it.
func (s *Selector) Explain(file string) FileReport {
	return FileReport{
		File:         file,
		Dependencies: s.g.DirectDependencies(file),
		Dependents:   sorted(s.g.Dependents(file)),
		DirectTests:  sorted(s.index[file]),
	}
}

// IndexedTests returns the index entry for a file, sorted.
func (s *Selector) IndexedTests(file string) []string {
	return sorted(s.index[file])
}

func sorted(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
