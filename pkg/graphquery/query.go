// Package graphquery provides shared algorithms for querying import graph
// snapshots. Used by both the testscope CLI and the hosted platform API.
package graphquery

import (
	"path"
	"sort"
	"strings"

	"github.com/testscope/testscope/pkg/graph"
	"github.com/testscope/testscope/pkg/impact"
)

// Result holds the files and edges selected by a neighborhood query.
type Result struct {
	Files     []string     `json:"files"`
	Edges     []graph.Edge `json:"edges"`
	Truncated bool         `json:"truncated,omitempty"`
}

// PackageNode is one aggregated Python package (directory) in the
// package-level view of the graph.
type PackageNode struct {
	Package   string `json:"package"`
	FileCount int    `json:"file_count"`
	HasTests  bool   `json:"has_tests"`
}

// PackageEdge is an aggregated edge between packages. Weight counts the
// file-level imports collapsed into it.
type PackageEdge struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Weight int    `json:"weight"`
}

// PackageGraph holds the result of a package-level aggregation.
type PackageGraph struct {
	Nodes     map[string]*PackageNode `json:"nodes"`
	Edges     []PackageEdge           `json:"edges"`
	Truncated bool                    `json:"truncated"`
}

// PathResult holds the result of a shortest-path query between two files.
type PathResult struct {
	Paths      [][]string   `json:"paths"`
	Files      []string     `json:"files"`
	Edges      []graph.Edge `json:"edges"`
	From       string       `json:"from"`
	To         string       `json:"to"`
	PathLength int          `json:"path_length"`
}

// matchFiles resolves a query against snapshot files: exact path match or
// directory prefix ("app" matches every file under app/).
func matchFiles(snap *graph.Snapshot, query string) []string {
	query = strings.TrimSuffix(query, "/")
	var matches []string
	for _, f := range snap.Files {
		if f == query || strings.HasPrefix(f, query+"/") {
			matches = append(matches, f)
		}
	}
	return matches
}

// Neighborhood does a BFS from the root queries to the given depth.
// Direction is "deps" (imports), "rdeps" (imported-by), or "both".
// maxFiles caps the result size (0 means 500).
func Neighborhood(snap *graph.Snapshot, roots []string, depth int, direction string, maxFiles int) *Result {
	if direction == "" {
		direction = "both"
	}
	if maxFiles <= 0 {
		maxFiles = 500
	}

	fwd := make(map[string][]string)
	rev := make(map[string][]string)
	for _, e := range snap.Edges {
		fwd[e.From] = append(fwd[e.From], e.To)
		rev[e.To] = append(rev[e.To], e.From)
	}

	visited := make(map[string]bool)
	var queue []string
	for _, r := range roots {
		for _, f := range matchFiles(snap, r) {
			if !visited[f] {
				visited[f] = true
				queue = append(queue, f)
			}
		}
	}

	if len(queue) == 0 {
		return &Result{Files: []string{}, Edges: []graph.Edge{}}
	}

	truncated := false
	for d := 0; d < depth && len(queue) > 0; d++ {
		var next []string
		for _, f := range queue {
			if direction == "deps" || direction == "both" {
				for _, to := range fwd[f] {
					if !visited[to] {
						visited[to] = true
						next = append(next, to)
					}
				}
			}
			if direction == "rdeps" || direction == "both" {
				for _, from := range rev[f] {
					if !visited[from] {
						visited[from] = true
						next = append(next, from)
					}
				}
			}
		}
		queue = next

		if len(visited) >= maxFiles {
			truncated = true
			break
		}
	}

	return collect(snap, visited, truncated)
}

// Cap returns a subset of the graph with at most maxFiles files, preferring
// high-degree files (most connected = most interesting to look at).
func Cap(snap *graph.Snapshot, maxFiles int) *Result {
	if len(snap.Files) <= maxFiles {
		return &Result{Files: snap.Files, Edges: snap.Edges}
	}

	degree := make(map[string]int)
	for _, e := range snap.Edges {
		degree[e.From]++
		degree[e.To]++
	}

	ranked := append([]string(nil), snap.Files...)
	sort.Slice(ranked, func(i, j int) bool {
		if degree[ranked[i]] != degree[ranked[j]] {
			return degree[ranked[i]] > degree[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})

	keep := make(map[string]bool)
	for i := 0; i < maxFiles && i < len(ranked); i++ {
		keep[ranked[i]] = true
	}

	res := collect(snap, keep, true)
	return res
}

// collect assembles a deterministic Result from a visited set.
func collect(snap *graph.Snapshot, visited map[string]bool, truncated bool) *Result {
	files := make([]string, 0, len(visited))
	for _, f := range snap.Files {
		if visited[f] {
			files = append(files, f)
		}
	}

	edges := []graph.Edge{}
	for _, e := range snap.Edges {
		if visited[e.From] && visited[e.To] {
			edges = append(edges, e)
		}
	}

	return &Result{Files: files, Edges: edges, Truncated: truncated}
}

// Paths finds the shortest import paths from one file query to another,
// following import direction. Returns up to maxPaths equal-length paths.
func Paths(snap *graph.Snapshot, fromQ, toQ string, maxPaths int) *PathResult {
	if maxPaths <= 0 {
		maxPaths = 10
	}

	fwd := make(map[string][]string)
	for _, e := range snap.Edges {
		fwd[e.From] = append(fwd[e.From], e.To)
	}

	fromFiles := matchFiles(snap, fromQ)
	toFiles := matchFiles(snap, toQ)

	empty := &PathResult{
		Paths:      [][]string{},
		Files:      []string{},
		Edges:      []graph.Edge{},
		From:       fromQ,
		To:         toQ,
		PathLength: 0,
	}

	if len(fromFiles) == 0 || len(toFiles) == 0 {
		return empty
	}

	toSet := make(map[string]bool)
	for _, f := range toFiles {
		toSet[f] = true
	}

	// BFS recording all shortest-path parents.
	type entry struct {
		file  string
		depth int
	}
	parents := make(map[string][]string)
	dist := make(map[string]int)

	var queue []entry
	for _, f := range fromFiles {
		dist[f] = 0
		queue = append(queue, entry{f, 0})
	}

	foundDepth := -1
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]

		if foundDepth >= 0 && curr.depth > foundDepth {
			break
		}
		if toSet[curr.file] {
			foundDepth = curr.depth
		}

		for _, next := range fwd[curr.file] {
			nextDepth := curr.depth + 1
			if _, seen := dist[next]; !seen {
				dist[next] = nextDepth
				parents[next] = []string{curr.file}
				queue = append(queue, entry{next, nextDepth})
			} else if dist[next] == nextDepth {
				parents[next] = append(parents[next], curr.file)
			}
		}
	}

	var reached []string
	for _, f := range toFiles {
		if _, ok := dist[f]; ok {
			reached = append(reached, f)
		}
	}
	if len(reached) == 0 {
		return empty
	}

	fromSet := make(map[string]bool)
	for _, f := range fromFiles {
		fromSet[f] = true
	}

	var allPaths [][]string
	var backtrack func(file string, tail []string)
	backtrack = func(file string, tail []string) {
		if len(allPaths) >= maxPaths {
			return
		}
		current := make([]string, len(tail)+1)
		current[0] = file
		copy(current[1:], tail)

		if fromSet[file] {
			allPaths = append(allPaths, current)
			return
		}
		for _, p := range parents[file] {
			backtrack(p, current)
		}
	}

	for _, target := range reached {
		if len(allPaths) >= maxPaths {
			break
		}
		backtrack(target, nil)
	}

	onPath := make(map[string]bool)
	edgeSet := make(map[string]bool)
	for _, p := range allPaths {
		for _, f := range p {
			onPath[f] = true
		}
		for i := 0; i < len(p)-1; i++ {
			edgeSet[p[i]+"->"+p[i+1]] = true
		}
	}

	files := make([]string, 0, len(onPath))
	for _, f := range snap.Files {
		if onPath[f] {
			files = append(files, f)
		}
	}
	edges := []graph.Edge{}
	for _, e := range snap.Edges {
		if edgeSet[e.From+"->"+e.To] {
			edges = append(edges, e)
		}
	}

	pathLength := 0
	if len(allPaths) > 0 {
		pathLength = len(allPaths[0]) - 1
	}

	return &PathResult{
		Paths:      allPaths,
		Files:      files,
		Edges:      edges,
		From:       fromQ,
		To:         toQ,
		PathLength: pathLength,
	}
}

// PackageOf returns the Python package a file belongs to: its directory,
// or "." for files at the project root.
func PackageOf(file string) string {
	return path.Dir(file)
}

// Packages aggregates the file-level graph into a package-level graph.
// Edges within a package are dropped; cross-package edges are weighted by
// the number of file imports they collapse. maxPkgs caps the number of
// packages (0 means 200).
func Packages(snap *graph.Snapshot, hideTests bool, minEdgeWeight, maxPkgs int) *PackageGraph {
	if minEdgeWeight < 1 {
		minEdgeWeight = 1
	}
	if maxPkgs <= 0 {
		maxPkgs = 200
	}

	included := make(map[string]bool)
	pkgNodes := make(map[string]*PackageNode)
	for _, f := range snap.Files {
		isTest := impact.IsTestFile(f)
		if hideTests && isTest {
			continue
		}
		included[f] = true

		pkg := PackageOf(f)
		pn, ok := pkgNodes[pkg]
		if !ok {
			pn = &PackageNode{Package: pkg}
			pkgNodes[pkg] = pn
		}
		pn.FileCount++
		if isTest {
			pn.HasTests = true
		}
	}

	edgeWeight := make(map[string]int)
	for _, e := range snap.Edges {
		if !included[e.From] || !included[e.To] {
			continue
		}
		fromPkg := PackageOf(e.From)
		toPkg := PackageOf(e.To)
		if fromPkg == toPkg {
			continue
		}
		edgeWeight[fromPkg+"|"+toPkg]++
	}

	pkgEdges := make([]PackageEdge, 0)
	for key, weight := range edgeWeight {
		if weight < minEdgeWeight {
			continue
		}
		parts := strings.SplitN(key, "|", 2)
		pkgEdges = append(pkgEdges, PackageEdge{From: parts[0], To: parts[1], Weight: weight})
	}
	sort.Slice(pkgEdges, func(i, j int) bool {
		if pkgEdges[i].From != pkgEdges[j].From {
			return pkgEdges[i].From < pkgEdges[j].From
		}
		return pkgEdges[i].To < pkgEdges[j].To
	})

	truncated := false
	if len(pkgNodes) > maxPkgs {
		pkgDegree := make(map[string]int)
		for _, e := range pkgEdges {
			pkgDegree[e.From]++
			pkgDegree[e.To]++
		}
		ranked := make([]string, 0, len(pkgNodes))
		for pkg := range pkgNodes {
			ranked = append(ranked, pkg)
		}
		sort.Slice(ranked, func(i, j int) bool {
			if pkgDegree[ranked[i]] != pkgDegree[ranked[j]] {
				return pkgDegree[ranked[i]] > pkgDegree[ranked[j]]
			}
			return ranked[i] < ranked[j]
		})

		keep := make(map[string]bool)
		for i := 0; i < maxPkgs; i++ {
			keep[ranked[i]] = true
		}
		for pkg := range pkgNodes {
			if !keep[pkg] {
				delete(pkgNodes, pkg)
			}
		}
		filtered := make([]PackageEdge, 0, len(pkgEdges))
		for _, e := range pkgEdges {
			if keep[e.From] && keep[e.To] {
				filtered = append(filtered, e)
			}
		}
		pkgEdges = filtered
		truncated = true
	}

	return &PackageGraph{Nodes: pkgNodes, Edges: pkgEdges, Truncated: truncated}
}
