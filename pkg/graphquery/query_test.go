package graphquery

import (
	"testing"

	"github.com/testscope/testscope/pkg/graph"
)

func testSnapshot() *graph.Snapshot {
	g := graph.New()
	for _, f := range []string{
		"app/api.py",
		"app/models.py",
		"app/db/session.py",
		"lib/util.py",
		"scripts/gen.py",
		"tests/test_api.py",
		"tests/test_models.py",
	} {
		g.AddFile(f)
	}
	g.AddEdge("app/api.py", "app/models.py")
	g.AddEdge("app/models.py", "app/db/session.py")
	g.AddEdge("app/db/session.py", "lib/util.py")
	g.AddEdge("scripts/gen.py", "app/models.py")
	g.AddEdge("tests/test_api.py", "app/api.py")
	g.AddEdge("tests/test_models.py", "app/models.py")
	return g.Snapshot()
}

func hasFile(files []string, want string) bool {
	for _, f := range files {
		if f == want {
			return true
		}
	}
	return false
}

func TestNeighborhood(t *testing.T) {
	snap := testSnapshot()

	t.Run("both directions depth 1", func(t *testing.T) {
		result := Neighborhood(snap, []string{"app/models.py"}, 1, "both", 0)
		for _, want := range []string{"app/models.py", "app/api.py", "app/db/session.py", "scripts/gen.py", "tests/test_models.py"} {
			if !hasFile(result.Files, want) {
				t.Errorf("expected %s in result", want)
			}
		}
		if hasFile(result.Files, "lib/util.py") {
			t.Error("did not expect lib/util.py at depth 1")
		}
	})

	t.Run("deps only", func(t *testing.T) {
		result := Neighborhood(snap, []string{"app/api.py"}, 1, "deps", 0)
		if !hasFile(result.Files, "app/models.py") {
			t.Error("expected forward dep app/models.py")
		}
		if hasFile(result.Files, "tests/test_api.py") {
			t.Error("did not expect reverse dep with direction=deps")
		}
	})

	t.Run("rdeps only", func(t *testing.T) {
		result := Neighborhood(snap, []string{"app/models.py"}, 2, "rdeps", 0)
		for _, want := range []string{"tests/test_models.py", "app/api.py", "tests/test_api.py", "scripts/gen.py"} {
			if !hasFile(result.Files, want) {
				t.Errorf("expected reverse dep %s", want)
			}
		}
		if hasFile(result.Files, "app/db/session.py") {
			t.Error("did not expect forward dep with direction=rdeps")
		}
	})

	t.Run("directory prefix matching", func(t *testing.T) {
		result := Neighborhood(snap, []string{"tests"}, 0, "both", 0)
		if len(result.Files) != 2 {
			t.Errorf("expected 2 files under tests/, got %d", len(result.Files))
		}
	})

	t.Run("no match", func(t *testing.T) {
		result := Neighborhood(snap, []string{"nonexistent.py"}, 2, "both", 0)
		if len(result.Files) != 0 {
			t.Errorf("expected empty result, got %d files", len(result.Files))
		}
	})

	t.Run("edges restricted to result", func(t *testing.T) {
		result := Neighborhood(snap, []string{"app"}, 1, "both", 0)
		inResult := make(map[string]bool)
		for _, f := range result.Files {
			inResult[f] = true
		}
		for _, e := range result.Edges {
			if !inResult[e.From] || !inResult[e.To] {
				t.Errorf("edge %s -> %s references file outside result", e.From, e.To)
			}
		}
	})
}

func TestCap(t *testing.T) {
	snap := testSnapshot()

	t.Run("under limit", func(t *testing.T) {
		result := Cap(snap, 100)
		if len(result.Files) != len(snap.Files) {
			t.Errorf("expected all %d files, got %d", len(snap.Files), len(result.Files))
		}
		if result.Truncated {
			t.Error("expected truncated=false under limit")
		}
	})

	t.Run("capped keeps highest degree", func(t *testing.T) {
		result := Cap(snap, 3)
		if len(result.Files) != 3 {
			t.Errorf("expected 3 files, got %d", len(result.Files))
		}
		if !result.Truncated {
			t.Error("expected truncated=true")
		}
		// app/models.py has degree 4, the highest in the fixture.
		if !hasFile(result.Files, "app/models.py") {
			t.Error("expected the highest-degree file to be kept")
		}
	})
}

func TestPaths(t *testing.T) {
	snap := testSnapshot()

	t.Run("direct path", func(t *testing.T) {
		result := Paths(snap, "app/api.py", "app/models.py", 10)
		if len(result.Paths) != 1 {
			t.Fatalf("expected 1 path, got %d", len(result.Paths))
		}
		if result.PathLength != 1 {
			t.Errorf("expected path length 1, got %d", result.PathLength)
		}
	})

	t.Run("multi-hop path", func(t *testing.T) {
		result := Paths(snap, "tests/test_api.py", "lib/util.py", 10)
		if len(result.Paths) == 0 {
			t.Fatal("expected at least one path")
		}
		if result.PathLength != 4 {
			t.Errorf("expected path length 4, got %d", result.PathLength)
		}
		p := result.Paths[0]
		if p[0] != "tests/test_api.py" || p[len(p)-1] != "lib/util.py" {
			t.Errorf("path endpoints wrong: %v", p)
		}
	})

	t.Run("no path against import direction", func(t *testing.T) {
		result := Paths(snap, "lib/util.py", "app/api.py", 10)
		if len(result.Paths) != 0 {
			t.Errorf("expected no paths, got %d", len(result.Paths))
		}
	})

	t.Run("nonexistent file", func(t *testing.T) {
		result := Paths(snap, "missing.py", "app/api.py", 10)
		if len(result.Paths) != 0 {
			t.Errorf("expected no paths, got %d", len(result.Paths))
		}
	})
}

func TestPackages(t *testing.T) {
	snap := testSnapshot()

	t.Run("no filters", func(t *testing.T) {
		result := Packages(snap, false, 1, 0)
		// app, app/db, lib, scripts, tests
		if len(result.Nodes) != 5 {
			t.Errorf("expected 5 packages, got %d", len(result.Nodes))
		}
		appPkg := result.Nodes["app"]
		if appPkg == nil {
			t.Fatal("expected app package")
		}
		if appPkg.FileCount != 2 {
			t.Errorf("app FileCount = %d, want 2", appPkg.FileCount)
		}
		testsPkg := result.Nodes["tests"]
		if testsPkg == nil || !testsPkg.HasTests {
			t.Error("expected tests package with HasTests=true")
		}
	})

	t.Run("hide tests", func(t *testing.T) {
		result := Packages(snap, true, 1, 0)
		if _, ok := result.Nodes["tests"]; ok {
			t.Error("expected tests package to be hidden")
		}
	})

	t.Run("intra-package edges dropped", func(t *testing.T) {
		result := Packages(snap, false, 1, 0)
		for _, e := range result.Edges {
			if e.From == e.To {
				t.Errorf("unexpected self edge for package %s", e.From)
			}
		}
		// app/api.py -> app/models.py collapses away; app -> app/db remains.
		found := false
		for _, e := range result.Edges {
			if e.From == "app" && e.To == "app/db" {
				found = true
			}
		}
		if !found {
			t.Error("expected app -> app/db package edge")
		}
	})

	t.Run("min edge weight", func(t *testing.T) {
		result := Packages(snap, false, 5, 0)
		if len(result.Edges) != 0 {
			t.Errorf("expected no edges with min weight 5, got %d", len(result.Edges))
		}
	})

	t.Run("package capping", func(t *testing.T) {
		result := Packages(snap, false, 1, 2)
		if len(result.Nodes) > 2 {
			t.Errorf("expected at most 2 packages, got %d", len(result.Nodes))
		}
		if !result.Truncated {
			t.Error("expected truncated=true")
		}
	})
}

func TestPackageOf(t *testing.T) {
	tests := []struct {
		file string
		want string
	}{
		{"app/models.py", "app"},
		{"app/db/session.py", "app/db"},
		{"main.py", "."},
	}
	for _, tt := range tests {
		if got := PackageOf(tt.file); got != tt.want {
			t.Errorf("PackageOf(%q) = %q, want %q", tt.file, got, tt.want)
		}
	}
}
