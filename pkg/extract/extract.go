// Package extract builds a project's import dependency graph from a
// filesystem scan.
package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/testscope/testscope/pkg/extract/pyimports"
	"github.com/testscope/testscope/pkg/extract/resolve"
	"github.com/testscope/testscope/pkg/extract/scanner"
	"github.com/testscope/testscope/pkg/graph"
	"github.com/testscope/testscope/pkg/impact"
	"github.com/testscope/testscope/pkg/pyenv"
)

// Request specifies what to analyze.
type Request struct {
	Root      string          // project root
	CommitSHA string          // current commit, if known
	Exclude   []string        // scanner exclusion patterns; nil means defaults
	Registry  *pyenv.Registry // external-module registry
}

// Result carries the built graph, its snapshot, and the per-file
// diagnostics collected along the way.
type Result struct {
	Graph    *graph.Graph
	Snapshot *graph.Snapshot
	Warnings []string                             // one per unreadable or unparseable file
	Dynamic  map[string][]pyimports.DynamicImport // file -> dynamic import call sites
}

// Analyze scans the project, parses every file's imports, resolves them
// against the scanned file set, and returns the assembled graph. Files
// that fail to read or parse contribute no edges and are recorded as
// warnings; only a failed scan aborts the run.
func Analyze(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	if req.Registry == nil {
		req.Registry = pyenv.NewRegistry(nil)
	}

	files, err := scanner.New(req.Root, req.Exclude).Scan()
	if err != nil {
		return nil, err
	}

	g := graph.New()
	resolver := resolve.New(files, req.Registry)

	res := &Result{
		Graph:   g,
		Dynamic: make(map[string][]pyimports.DynamicImport),
	}

	// Deterministic file order keeps warning order stable across runs.
	paths := make([]string, 0, len(files))
	for f := range files {
		paths = append(paths, f)
	}
	sort.Strings(paths)

	dynamicCount := 0
	for _, file := range paths {
		g.AddFile(file)

		src, err := os.ReadFile(filepath.Join(req.Root, filepath.FromSlash(file)))
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("could not read %s: %v", file, err))
			continue
		}

		imports, dynamic, err := pyimports.Parse(ctx, src)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("could not parse %s: %v", file, err))
			continue
		}

		for _, imp := range imports {
			for _, target := range resolver.Resolve(imp, file) {
				g.AddEdge(file, target)
			}
		}

		if len(dynamic) > 0 {
			res.Dynamic[file] = dynamic
			dynamicCount += len(dynamic)
		}
	}

	snap := g.Snapshot()
	snap.ID = uuid.New().String()
	snap.Root = req.Root
	snap.CommitSHA = req.CommitSHA
	snap.Stats.TestCount = impact.CountTests(snap.Files)
	snap.Stats.ParseFailures = len(res.Warnings)
	snap.Stats.DynamicImports = dynamicCount
	snap.Stats.AnalysisMs = int(time.Since(start).Milliseconds())
	res.Snapshot = snap

	return res, nil
}
