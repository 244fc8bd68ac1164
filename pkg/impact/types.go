// Package impact selects the test files affected by a set of changed
// source files, using the project dependency graph.
package impact

import "time"

// Result is the outcome of one impact selection.
type Result struct {
	RunID         string    `json:"run_id"`
	BaseRef       string    `json:"base_ref,omitempty"`
	ChangedFiles  []string  `json:"changed_files"`
	AffectedTests []string  `json:"affected_tests"` // sorted
	NoCoverage    []string  `json:"no_coverage,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// FileReport is the per-file diagnostic view behind the explain flag.
type FileReport struct {
	File         string   `json:"file"`
	Dependencies []string `json:"dependencies,omitempty"` // direct forward edges
	Dependents   []string `json:"dependents,omitempty"`   // full transitive dependents
	DirectTests  []string `json:"direct_tests,omitempty"` // tests indexed against this file
}
