package advisor

import (
	"fmt"
	"sort"

	"github.com/testscope/testscope/pkg/extract/pyimports"
	"github.com/testscope/testscope/pkg/graph"
	"github.com/testscope/testscope/pkg/impact"
)

// Check is the interface that all advisory checks implement.
type Check interface {
	// Key returns the machine-readable check identifier.
	Key() string
	// Name returns the human-readable check name.
	Name() string
	// Evaluate inspects the run and reports what it found.
	Evaluate(in *Input) Finding
}

// Input bundles the artifacts of a selection run for review.
type Input struct {
	Graph     *graph.Graph
	Selection *impact.Result
	Warnings  []string
	Dynamic   map[string][]pyimports.DynamicImport
}

// Engine runs all configured checks against a run and produces a Report.
type Engine struct {
	checks []Check
}

// NewEngine creates an advisor engine with the given checks.
func NewEngine(checks ...Check) *Engine {
	return &Engine{checks: checks}
}

// Review evaluates all checks and produces a complete Report.
func (e *Engine) Review(in *Input) (*Report, error) {
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	if in.Graph == nil || in.Selection == nil {
		return nil, fmt.Errorf("a graph and a selection result are required")
	}

	report := &Report{
		RunID: in.Selection.RunID,
		RunStats: RunStatsView{
			ChangedFiles:   len(in.Selection.ChangedFiles),
			AffectedTests:  len(in.Selection.AffectedTests),
			UncoveredFiles: len(in.Selection.NoCoverage),
			TotalTests:     impact.CountTests(in.Graph.Files()),
			GraphFiles:     in.Graph.FileCount(),
			GraphEdges:     in.Graph.EdgeCount(),
		},
	}

	for _, c := range e.checks {
		report.Findings = append(report.Findings, c.Evaluate(in))
	}

	report.Severity = worstSeverity(report.Findings)
	report.Advice = generateAdvice(report.Findings)

	return report, nil
}

// generateAdvice produces actionable recommendations based on findings.
func generateAdvice(findings []Finding) []SuggestedAction {
	var actions []SuggestedAction

	for _, f := range findings {
		if len(f.Evidence) == 0 {
			continue
		}
		switch f.Key {
		case "no_coverage":
			actions = append(actions, SuggestedAction{
				Title:       "Add tests for uncovered changes",
				Description: fmt.Sprintf("%d changed file(s) reach no test through the import graph, so regressions there run nothing.", len(f.Evidence)),
				Files:       evidenceFiles(f.Evidence),
				Addresses:   []string{f.Key},
			})
		case "parse_failures":
			actions = append(actions, SuggestedAction{
				Title:       "Fix files the parser skipped",
				Description: "Files with syntax errors contribute no import edges and can hide affected tests.",
				Files:       evidenceFiles(f.Evidence),
				Addresses:   []string{f.Key},
			})
		case "dynamic_imports":
			actions = append(actions, SuggestedAction{
				Title:       "Prefer static imports where possible",
				Description: fmt.Sprintf("%d call site(s) load modules through __import__ or importlib; those dependencies are invisible to import analysis.", len(f.Evidence)),
				Files:       evidenceFiles(f.Evidence),
				Addresses:   []string{f.Key},
			})
		case "blast_radius":
			for _, ev := range f.Evidence {
				if ev.File != "" && ev.Value >= 20 {
					actions = append(actions, SuggestedAction{
						Title:       fmt.Sprintf("Consider splitting %s", ev.File),
						Description: fmt.Sprintf("Changes to this file reach %.0f test files, so nearly any edit runs a large share of the suite.", ev.Value),
						Files:       []string{ev.File},
						Addresses:   []string{f.Key},
					})
				}
			}
		}
	}

	if len(actions) > 5 {
		actions = actions[:5]
	}

	return actions
}

// evidenceFiles collects the distinct file paths referenced by evidence items.
func evidenceFiles(evidence []EvidenceItem) []string {
	seen := make(map[string]bool)
	var files []string
	for _, ev := range evidence {
		if ev.File == "" || seen[ev.File] {
			continue
		}
		seen[ev.File] = true
		files = append(files, ev.File)
	}
	sort.Strings(files)
	return files
}
