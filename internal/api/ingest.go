package api

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/testscope/testscope/internal/ingest"
	"github.com/testscope/testscope/pkg/graph"
	"github.com/testscope/testscope/pkg/surface"
)

// runUploadRequest is the JSON body for POST /api/v1/runs.
type runUploadRequest struct {
	RepoFullName  string             `json:"repo_full_name"`
	DefaultBranch string             `json:"default_branch"`
	CommitSHA     string             `json:"commit_sha"`
	BaseRef       string             `json:"base_ref"`
	Branch        string             `json:"branch"`
	PRNumber      *int               `json:"pr_number,omitempty"`
	Report        *surface.RunReport `json:"report"`
	Snapshot      *graph.Snapshot    `json:"snapshot,omitempty"`
	SnapshotID    string             `json:"snapshot_id,omitempty"`
}

type runUploadResponse struct {
	RunID      string `json:"run_id"`
	SnapshotID string `json:"snapshot_id,omitempty"`
}

// handleUploadSnapshot handles POST /api/v1/snapshots — uploads a single graph
// snapshot and returns its storage ID. Used for the two-step upload flow where
// large snapshots are uploaded separately from the run report.
func (h *Handler) handleUploadSnapshot(w http.ResponseWriter, r *http.Request) {
	var body io.Reader = r.Body
	if r.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid gzip body: "+err.Error())
			return
		}
		defer gz.Close()
		body = gz
	}

	data, err := io.ReadAll(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body: "+err.Error())
		return
	}

	// Validate that the body is a valid JSON snapshot
	var snap graph.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		writeError(w, http.StatusBadRequest, "invalid snapshot JSON: "+err.Error())
		return
	}

	// Generate a storage ID and store the blob
	snapshotID := uuid.New().String()
	// Use a synthetic project ID for pre-upload; the actual project association
	// happens when the run upload references this snapshot.
	if err := h.ingestSvc.Storage().PutSnapshot(r.Context(), "_uploads", snapshotID, data); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store snapshot: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"snapshot_id": snapshotID})
}

func (h *Handler) handleIngestRun(w http.ResponseWriter, r *http.Request) {
	// Support gzip-compressed request bodies
	var body io.Reader = r.Body
	if r.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid gzip body: "+err.Error())
			return
		}
		defer gz.Close()
		body = gz
	}

	var req runUploadRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	// Reference mode: load snapshot from storage if snapshot_id is provided
	ctx := r.Context()
	if req.SnapshotID != "" && req.Snapshot == nil {
		data, err := h.ingestSvc.Storage().GetSnapshot(ctx, "_uploads", req.SnapshotID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to load referenced snapshot: "+err.Error())
			return
		}
		var snap graph.Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			writeError(w, http.StatusBadRequest, "invalid referenced snapshot: "+err.Error())
			return
		}
		req.Snapshot = &snap
	}

	if req.RepoFullName == "" || req.CommitSHA == "" || req.Report == nil {
		writeError(w, http.StatusBadRequest, "repo_full_name, commit_sha, and report are required")
		return
	}

	if req.DefaultBranch == "" {
		req.DefaultBranch = "main"
	}

	// Extract org name from repo full name (e.g., "org/repo" -> "org")
	orgName := req.RepoFullName
	if idx := strings.Index(req.RepoFullName, "/"); idx > 0 {
		orgName = req.RepoFullName[:idx]
	}

	// Ensure project and repo exist
	projectID, repoID, err := h.projectSvc.EnsureProjectAndRepo(ctx, orgName, req.RepoFullName, req.DefaultBranch)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to ensure project/repo: "+err.Error())
		return
	}

	upload := ingest.RunUpload{
		ProjectID:    projectID,
		RepoID:       repoID,
		RepoFullName: req.RepoFullName,
		CommitSHA:    req.CommitSHA,
		BaseRef:      req.BaseRef,
		Branch:       req.Branch,
		PRNumber:     req.PRNumber,
	}

	runID, err := h.ingestSvc.StoreRun(ctx, upload, req.Report)
	if err != nil {
		if ferr := h.ingestSvc.FailIngestions(ctx, repoID, req.CommitSHA, err.Error()); ferr != nil {
			fmt.Printf("warning: failed to mark ingestions failed: %v\n", ferr)
		}
		writeError(w, http.StatusInternalServerError, "failed to store run: "+err.Error())
		return
	}

	resp := runUploadResponse{RunID: runID}

	// If a graph snapshot came along, store it too
	if req.Snapshot != nil {
		req.Snapshot.CommitSHA = req.CommitSHA

		snapData, err := json.Marshal(req.Snapshot)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to marshal snapshot: "+err.Error())
			return
		}

		snapshotID, err := h.ingestSvc.StoreSnapshot(ctx, upload, req.Snapshot, snapData)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to store snapshot: "+err.Error())
			return
		}
		resp.SnapshotID = snapshotID

		// Update baseline if this is a push to the default branch
		if req.Branch == req.DefaultBranch {
			_, err := h.db.ExecContext(ctx,
				`INSERT INTO baselines (repo_id, snapshot_id) VALUES ($1, $2)
				 ON CONFLICT (repo_id) DO UPDATE SET snapshot_id = $2, updated_at = now()`,
				repoID, snapshotID,
			)
			if err != nil {
				// Log but don't fail the request
				fmt.Printf("warning: failed to update baseline: %v\n", err)
			}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
