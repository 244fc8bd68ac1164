package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/testscope/testscope/internal/project"
)

type repoResponse struct {
	ID            string `json:"id"`
	FullName      string `json:"full_name"`
	DefaultBranch string `json:"default_branch"`
}

type runResponse struct {
	ID            string          `json:"id"`
	RepoID        string          `json:"repo_id"`
	PRNumber      *int            `json:"pr_number,omitempty"`
	CommitSHA     string          `json:"commit_sha"`
	BaseRef       string          `json:"base_ref,omitempty"`
	ChangedFiles  int             `json:"changed_files"`
	AffectedTests int             `json:"affected_tests"`
	Uncovered     int             `json:"uncovered"`
	TotalTests    int             `json:"total_tests"`
	Status        string          `json:"status,omitempty"`
	ExitCode      int             `json:"exit_code"`
	DurationMs    int64           `json:"duration_ms"`
	Severity      string          `json:"severity,omitempty"`
	Findings      json.RawMessage `json:"findings"`
	CreatedAt     string          `json:"created_at"`
}

func runRowToResponse(rr *project.RunRow) runResponse {
	return runResponse{
		ID:            rr.ID,
		RepoID:        rr.RepoID,
		PRNumber:      rr.PRNumber,
		CommitSHA:     rr.CommitSHA,
		BaseRef:       rr.BaseRef,
		ChangedFiles:  rr.ChangedFiles,
		AffectedTests: rr.AffectedTests,
		Uncovered:     rr.Uncovered,
		TotalTests:    rr.TotalTests,
		Status:        rr.Status,
		ExitCode:      rr.ExitCode,
		DurationMs:    rr.DurationMs,
		Severity:      rr.Severity,
		Findings:      rr.Findings,
		CreatedAt:     rr.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

func (h *Handler) handleListRepos(w http.ResponseWriter, r *http.Request) {
	repos, err := h.projectSvc.ListAllRepos(r.Context())
	if err != nil {
		writeJSON(w, http.StatusOK, []repoResponse{})
		return
	}

	var result []repoResponse
	for _, repo := range repos {
		result = append(result, repoResponse{
			ID:            repo.ID,
			FullName:      repo.FullName,
			DefaultBranch: repo.DefaultBranch,
		})
	}

	if result == nil {
		result = []repoResponse{}
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	repoID := r.PathValue("repoID")

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	runs, err := h.projectSvc.ListRunsByRepo(r.Context(), repoID, limit)
	if err != nil {
		writeJSON(w, http.StatusOK, []runResponse{})
		return
	}

	var result []runResponse
	for i := range runs {
		result = append(result, runRowToResponse(&runs[i]))
	}

	if result == nil {
		result = []runResponse{}
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("runID")

	rr, err := h.projectSvc.GetRunByID(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	writeJSON(w, http.StatusOK, runRowToResponse(rr))
}

// handleGetRunReport streams the full stored report for a run, including the
// selection result, review findings, and per-file explanations.
func (h *Handler) handleGetRunReport(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("runID")

	rr, err := h.projectSvc.GetRunByID(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	blobID := blobIDFromRef(rr.StorageRef)
	data, err := h.ingestSvc.Storage().GetReport(r.Context(), rr.ProjectID, blobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "report blob not found")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

type historyEntry struct {
	Date          string  `json:"date"`
	CommitSHA     string  `json:"commit_sha"`
	ChangedFiles  int     `json:"changed_files"`
	AffectedTests int     `json:"affected_tests"`
	Uncovered     int     `json:"uncovered"`
	TotalTests    int     `json:"total_tests"`
	SelectionRate float64 `json:"selection_rate"`
	Severity      string  `json:"severity,omitempty"`
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	repoID := r.PathValue("repoID")

	runs, err := h.projectSvc.ListRunsByRepo(r.Context(), repoID, 200)
	if err != nil {
		writeJSON(w, http.StatusOK, []historyEntry{})
		return
	}

	var history []historyEntry
	for _, rr := range runs {
		rate := 0.0
		if rr.TotalTests > 0 {
			rate = float64(rr.AffectedTests) / float64(rr.TotalTests)
		}

		history = append(history, historyEntry{
			Date:          rr.CreatedAt.Format("2006-01-02"),
			CommitSHA:     rr.CommitSHA,
			ChangedFiles:  rr.ChangedFiles,
			AffectedTests: rr.AffectedTests,
			Uncovered:     rr.Uncovered,
			TotalTests:    rr.TotalTests,
			SelectionRate: rate,
			Severity:      rr.Severity,
		})
	}

	// Sort by date descending (newest first)
	sort.Slice(history, func(i, j int) bool {
		return history[i].Date > history[j].Date
	})

	if history == nil {
		history = []historyEntry{}
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *Handler) handlePRImpact(w http.ResponseWriter, r *http.Request) {
	repoID := r.PathValue("repoID")
	prStr := r.PathValue("prNumber")
	prNumber, err := strconv.Atoi(prStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid pr number")
		return
	}

	rr, err := h.projectSvc.GetRunByPR(r.Context(), repoID, prNumber)
	if err != nil {
		if strings.Contains(err.Error(), "no rows") {
			writeError(w, http.StatusNotFound, "no run found for PR")
		} else {
			writeError(w, http.StatusInternalServerError, "failed to query run")
		}
		return
	}

	writeJSON(w, http.StatusOK, runRowToResponse(rr))
}
