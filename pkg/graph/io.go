package graph

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Snapshot is the serialized form of one run's import graph, written as a
// diagnostic artifact by the graph command. It is rebuilt from scratch on
// every run, never reused as input to a later analysis.
type Snapshot struct {
	ID        string        `json:"id"`
	Root      string        `json:"root"`
	CommitSHA string        `json:"commit_sha,omitempty"`
	Files     []string      `json:"files"`
	Edges     []Edge        `json:"edges"`
	Stats     SnapshotStats `json:"stats"`
	CreatedAt time.Time     `json:"created_at"`
}

// Edge is a single import relationship: From imports To.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Key returns a stable string key for deduplication and set operations.
func (e Edge) Key() string {
	return e.From + "|" + e.To
}

// SnapshotStats holds summary statistics for a snapshot.
type SnapshotStats struct {
	FileCount      int `json:"file_count"`
	EdgeCount      int `json:"edge_count"`
	TestCount      int `json:"test_count"`
	ParseFailures  int `json:"parse_failures"`
	DynamicImports int `json:"dynamic_imports"`
	AnalysisMs     int `json:"analysis_ms"`
}

// Snapshot flattens the graph into its serialized form with deterministic
// ordering. Stats beyond file and edge counts are filled by the caller.
func (g *Graph) Snapshot() *Snapshot {
	snap := &Snapshot{
		Files: g.Files(),
		Stats: SnapshotStats{
			FileCount: g.FileCount(),
			EdgeCount: g.EdgeCount(),
		},
		CreatedAt: time.Now().UTC(),
	}
	for from, deps := range g.forward {
		for to := range deps {
			snap.Edges = append(snap.Edges, Edge{From: from, To: to})
		}
	}
	sort.Slice(snap.Edges, func(i, j int) bool {
		return snap.Edges[i].Key() < snap.Edges[j].Key()
	})
	return snap
}

// Graph reconstructs adjacency maps from a snapshot.
func (s *Snapshot) Graph() *Graph {
	g := New()
	for _, f := range s.Files {
		g.AddFile(f)
	}
	for _, e := range s.Edges {
		g.AddEdge(e.From, e.To)
	}
	return g
}

// SaveSnapshot writes a snapshot to disk as JSON.
func SaveSnapshot(path string, snap *Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory for snapshot: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}

	return nil
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}

	return &snap, nil
}
