package advisor_test

import (
	"testing"

	"github.com/testscope/testscope/pkg/advisor"
	"github.com/testscope/testscope/pkg/extract/pyimports"
	"github.com/testscope/testscope/pkg/graph"
	"github.com/testscope/testscope/pkg/impact"
)

// reviewGraph builds a small project: two tests covering app code, plus a
// helper nothing imports.
func reviewGraph() *graph.Graph {
	g := graph.New()
	g.AddEdge("tests/test_api.py", "app/api.py")
	g.AddEdge("tests/test_models.py", "app/models.py")
	g.AddEdge("app/api.py", "app/models.py")
	g.AddFile("app/orphan.py")
	return g
}

func TestEngineReview(t *testing.T) {
	g := reviewGraph()
	sel := impact.NewSelector(g).AffectedTests([]string{"app/models.py", "app/orphan.py"})

	engine := advisor.NewEngine(advisor.DefaultChecks()...)
	report, err := engine.Review(&advisor.Input{
		Graph:     g,
		Selection: sel,
		Warnings:  []string{"could not parse app/broken.py: source contains syntax errors"},
		Dynamic: map[string][]pyimports.DynamicImport{
			"app/plugins.py": {{Call: "__import__", Line: 12}},
		},
	})
	if err != nil {
		t.Fatalf("Review() error: %v", err)
	}

	if len(report.Findings) != len(advisor.DefaultChecks()) {
		t.Fatalf("expected %d findings, got %d", len(advisor.DefaultChecks()), len(report.Findings))
	}
	if report.RunID != sel.RunID {
		t.Errorf("expected run id %s, got %s", sel.RunID, report.RunID)
	}

	byKey := make(map[string]advisor.Finding)
	for _, f := range report.Findings {
		byKey[f.Key] = f
	}

	nc, ok := byKey["no_coverage"]
	if !ok {
		t.Fatal("expected a no_coverage finding")
	}
	if len(nc.Evidence) != 1 || nc.Evidence[0].File != "app/orphan.py" {
		t.Errorf("expected no_coverage evidence for app/orphan.py, got %+v", nc.Evidence)
	}
	if nc.Severity != advisor.SeverityMedium {
		t.Errorf("expected MEDIUM for a single uncovered file, got %s", nc.Severity)
	}

	pf := byKey["parse_failures"]
	if pf.Severity != advisor.SeverityMedium || len(pf.Evidence) != 1 {
		t.Errorf("unexpected parse_failures finding: %+v", pf)
	}

	di := byKey["dynamic_imports"]
	if di.Severity != advisor.SeverityLow {
		t.Errorf("expected LOW for dynamic imports, got %s", di.Severity)
	}
	if len(di.Evidence) != 1 || di.Evidence[0].Line != 12 {
		t.Errorf("unexpected dynamic import evidence: %+v", di.Evidence)
	}

	// models.py reaches both tests, so the selection is the whole suite.
	br := byKey["blast_radius"]
	if br.Severity != advisor.SeverityMedium {
		t.Errorf("expected MEDIUM for a full-suite selection, got %s", br.Severity)
	}

	if report.Severity != advisor.SeverityMedium {
		t.Errorf("expected worst severity MEDIUM, got %s", report.Severity)
	}

	stats := report.RunStats
	if stats.ChangedFiles != 2 || stats.AffectedTests != 2 || stats.UncoveredFiles != 1 {
		t.Errorf("unexpected run stats: %+v", stats)
	}
	if stats.TotalTests != 2 || stats.GraphFiles != 5 || stats.GraphEdges != 3 {
		t.Errorf("unexpected graph stats: %+v", stats)
	}

	foundAdvice := false
	for _, a := range report.Advice {
		if a.Title == "Add tests for uncovered changes" {
			foundAdvice = true
			if len(a.Files) != 1 || a.Files[0] != "app/orphan.py" {
				t.Errorf("unexpected advice files: %+v", a.Files)
			}
		}
	}
	if !foundAdvice {
		t.Error("expected advice about uncovered changes")
	}
}

func TestEngineReviewCleanRun(t *testing.T) {
	g := graph.New()
	g.AddEdge("tests/test_a.py", "app/a.py")
	g.AddEdge("tests/test_b.py", "app/b.py")
	g.AddEdge("tests/test_c.py", "app/c.py")

	sel := impact.NewSelector(g).AffectedTests([]string{"app/a.py"})

	engine := advisor.NewEngine(advisor.DefaultChecks()...)
	report, err := engine.Review(&advisor.Input{Graph: g, Selection: sel})
	if err != nil {
		t.Fatalf("Review() error: %v", err)
	}

	if report.Severity != advisor.SeverityInfo {
		t.Errorf("expected INFO for a clean narrow run, got %s", report.Severity)
	}
	for _, f := range report.Findings {
		if f.Key == "blast_radius" {
			continue // lists the changed files even when the selection is narrow
		}
		if len(f.Evidence) != 0 {
			t.Errorf("expected no evidence for %s, got %+v", f.Key, f.Evidence)
		}
	}
	if len(report.Advice) != 0 {
		t.Errorf("expected no advice for a clean run, got %+v", report.Advice)
	}
}

func TestEngineReviewNilInput(t *testing.T) {
	engine := advisor.NewEngine(advisor.DefaultChecks()...)

	if _, err := engine.Review(nil); err == nil {
		t.Error("expected error for nil input")
	}
	if _, err := engine.Review(&advisor.Input{Graph: graph.New()}); err == nil {
		t.Error("expected error for missing selection")
	}
	if _, err := engine.Review(&advisor.Input{Selection: &impact.Result{}}); err == nil {
		t.Error("expected error for missing graph")
	}
}
