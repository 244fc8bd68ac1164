package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"strconv"

	"github.com/testscope/testscope/pkg/graph"
	"github.com/testscope/testscope/pkg/graphquery"
)

// blobIDFromRef extracts the blob ID from a storage ref like
// "snapshots/{projectID}/{blobID}.json".
func blobIDFromRef(ref string) string {
	base := path.Base(ref)
	if ext := path.Ext(base); ext != "" {
		base = base[:len(base)-len(ext)]
	}
	return base
}

// loadSnapshot loads a snapshot by ID, checking the cache first,
// then falling back to DB metadata lookup + storage client.
func (h *Handler) loadSnapshot(ctx context.Context, snapshotID string) (*graph.Snapshot, error) {
	// Check cache
	if snap := h.cache.Get(snapshotID); snap != nil {
		return snap, nil
	}

	// Look up metadata
	snapshotRow, err := h.projectSvc.GetSnapshotByID(ctx, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("snapshot metadata: %w", err)
	}

	// Load from storage
	blobID := blobIDFromRef(snapshotRow.StorageRef)
	data, err := h.ingestSvc.Storage().GetSnapshot(ctx, snapshotRow.ProjectID, blobID)
	if err != nil {
		return nil, fmt.Errorf("load snapshot blob: %w", err)
	}

	var snap graph.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	// Cache it
	h.cache.Put(snapshotID, &snap)

	return &snap, nil
}

func (h *Handler) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshotID := r.PathValue("snapshotID")

	snap, err := h.loadSnapshot(r.Context(), snapshotID)
	if err != nil {
		writeError(w, http.StatusNotFound, "snapshot not found")
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) handleSubgraph(w http.ResponseWriter, r *http.Request) {
	snapshotID := r.PathValue("snapshotID")

	snap, err := h.loadSnapshot(r.Context(), snapshotID)
	if err != nil {
		writeError(w, http.StatusNotFound, "snapshot not found")
		return
	}

	roots := r.URL.Query()["root"]
	depth := 2
	if v := r.URL.Query().Get("depth"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			depth = parsed
		}
	}

	if len(roots) == 0 {
		result := graphquery.Cap(snap, 500)
		writeJSON(w, http.StatusOK, result)
		return
	}

	result := graphquery.Neighborhood(snap, roots, depth, "both", 0)
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handlePackages(w http.ResponseWriter, r *http.Request) {
	snapshotID := r.PathValue("snapshotID")

	snap, err := h.loadSnapshot(r.Context(), snapshotID)
	if err != nil {
		writeError(w, http.StatusNotFound, "snapshot not found")
		return
	}

	hideTests := r.URL.Query().Get("hide_tests") == "true"
	minEdgeWeight := 1
	if v := r.URL.Query().Get("min_edge_weight"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			minEdgeWeight = parsed
		}
	}

	result := graphquery.Packages(snap, hideTests, minEdgeWeight, 0)
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleEgo(w http.ResponseWriter, r *http.Request) {
	snapshotID := r.PathValue("snapshotID")

	snap, err := h.loadSnapshot(r.Context(), snapshotID)
	if err != nil {
		writeError(w, http.StatusNotFound, "snapshot not found")
		return
	}

	target := r.URL.Query().Get("target")
	if target == "" {
		writeError(w, http.StatusBadRequest, "target parameter required")
		return
	}

	depth := 2
	if v := r.URL.Query().Get("depth"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			depth = parsed
		}
	}

	direction := r.URL.Query().Get("direction")
	if direction == "" {
		direction = "both"
	}

	result := graphquery.Neighborhood(snap, []string{target}, depth, direction, 0)
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handlePath(w http.ResponseWriter, r *http.Request) {
	snapshotID := r.PathValue("snapshotID")

	snap, err := h.loadSnapshot(r.Context(), snapshotID)
	if err != nil {
		writeError(w, http.StatusNotFound, "snapshot not found")
		return
	}

	fromQ := r.URL.Query().Get("from")
	toQ := r.URL.Query().Get("to")
	if fromQ == "" || toQ == "" {
		writeError(w, http.StatusBadRequest, "from and to parameters required")
		return
	}

	maxPaths := 10
	if v := r.URL.Query().Get("max_paths"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			maxPaths = parsed
		}
	}

	result := graphquery.Paths(snap, fromQ, toQ, maxPaths)
	writeJSON(w, http.StatusOK, result)
}

type repoGraphResponse struct {
	SnapshotID string             `json:"snapshot_id"`
	CommitSHA  string             `json:"commit_sha"`
	Graph      *graphquery.Result `json:"graph"`
}

// handleRepoGraph serves the import graph for a repo's most recent snapshot,
// preferring the default-branch baseline.
func (h *Handler) handleRepoGraph(w http.ResponseWriter, r *http.Request) {
	repoID := r.PathValue("repoID")

	row, err := h.projectSvc.GetLatestSnapshotForRepo(r.Context(), repoID)
	if err != nil {
		writeError(w, http.StatusNotFound, "no snapshot for repo")
		return
	}

	snap, err := h.loadSnapshot(r.Context(), row.ID)
	if err != nil {
		writeError(w, http.StatusNotFound, "snapshot not found")
		return
	}

	maxFiles := 500
	if v := r.URL.Query().Get("max_files"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			maxFiles = parsed
		}
	}

	writeJSON(w, http.StatusOK, repoGraphResponse{
		SnapshotID: row.ID,
		CommitSHA:  row.CommitSHA,
		Graph:      graphquery.Cap(snap, maxFiles),
	})
}
