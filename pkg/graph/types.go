// Package graph defines the import dependency graph for testscope.
// Nodes are root-relative, slash-separated source file paths; a forward
// edge A->B means file A imports file B.
package graph

import "sort"

// Graph holds the forward and reverse adjacency of a project's imports.
// The reverse map is maintained in lockstep with the forward map, so the
// two are mutually consistent by construction: B->A exists in reverse
// exactly when A->B exists in forward.
type Graph struct {
	files   map[string]bool
	forward map[string]map[string]bool
	reverse map[string]map[string]bool
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		files:   make(map[string]bool),
		forward: make(map[string]map[string]bool),
		reverse: make(map[string]map[string]bool),
	}
}

// AddFile registers a file as a node, with or without edges.
func (g *Graph) AddFile(path string) {
	g.files[path] = true
}

// AddEdge records that from imports to, updating both adjacency maps.
// Both endpoints are registered as files.
func (g *Graph) AddEdge(from, to string) {
	g.files[from] = true
	g.files[to] = true

	if g.forward[from] == nil {
		g.forward[from] = make(map[string]bool)
	}
	g.forward[from][to] = true

	if g.reverse[to] == nil {
		g.reverse[to] = make(map[string]bool)
	}
	g.reverse[to][from] = true
}

// HasFile reports whether path is a known node.
func (g *Graph) HasFile(path string) bool {
	return g.files[path]
}

// Files returns all known file paths, sorted.
func (g *Graph) Files() []string {
	out := make([]string, 0, len(g.files))
	for f := range g.files {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// FileCount returns the number of nodes.
func (g *Graph) FileCount() int { return len(g.files) }

// EdgeCount returns the number of forward edges.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, deps := range g.forward {
		n += len(deps)
	}
	return n
}

// DirectDependencies returns the files path imports directly, sorted.
func (g *Graph) DirectDependencies(path string) []string {
	return sortedKeys(g.forward[path])
}

// DirectDependents returns the files that import path directly, sorted.
func (g *Graph) DirectDependents(path string) []string {
	return sortedKeys(g.reverse[path])
}

// Dependencies returns every file reachable from path via forward edges:
// the full transitive dependency set. The start file is included only if
// a cycle leads back to it.
func (g *Graph) Dependencies(path string) map[string]bool {
	return g.walk(path, g.forward)
}

// Dependents returns every file reachable from path via reverse edges:
// the full transitive dependent set. The start file is included only if
// a cycle leads back to it.
func (g *Graph) Dependents(path string) map[string]bool {
	return g.walk(path, g.reverse)
}

// walk performs an iterative traversal with an explicit visited set, so
// cyclic graphs terminate and deep graphs cannot overflow the stack. A
// node is pushed at most once; each edge is considered at most once.
func (g *Graph) walk(start string, adj map[string]map[string]bool) map[string]bool {
	reached := make(map[string]bool)
	stack := []string{start}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for next := range adj[current] {
			if !reached[next] {
				reached[next] = true
				stack = append(stack, next)
			}
		}
	}
	return reached
}

func sortedKeys(set map[string]bool) []string {
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
