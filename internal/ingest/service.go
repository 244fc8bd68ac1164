package ingest

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/testscope/testscope/internal/project"
	"github.com/testscope/testscope/pkg/graph"
	"github.com/testscope/testscope/pkg/surface"
)

// Ingestion lifecycle. A row is created when a webhook announces a commit,
// completed when the CI run for that commit uploads its report, and failed
// when an upload for the commit arrives but cannot be stored.
const (
	StatusQueued    = "QUEUED"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

// RunUpload describes one uploaded selection run.
type RunUpload struct {
	ProjectID      string
	RepoID         string
	RepoFullName   string
	CommitSHA      string
	BaseRef        string
	Branch         string
	PRNumber       *int
	InstallationID int64
}

// CheckPublisher abstracts check-run publishing so the ingest package does
// not depend on a concrete GitHub client.
type CheckPublisher interface {
	PublishCheckRun(ctx context.Context, installationID int64, owner, repo, headSHA string, data surface.CheckRunData) error
}

// Service stores uploaded runs and snapshots and keeps the ingestion ledger.
type Service struct {
	db        *sql.DB
	projects  *project.Service
	storage   StorageClient
	publisher CheckPublisher
}

// NewService creates a new ingest Service. publisher may be nil when the
// daemon runs without GitHub App credentials.
func NewService(db *sql.DB, projects *project.Service, storage StorageClient, publisher CheckPublisher) *Service {
	return &Service{
		db:        db,
		projects:  projects,
		storage:   storage,
		publisher: publisher,
	}
}

// Storage exposes the blob storage client for read endpoints.
func (s *Service) Storage() StorageClient {
	return s.storage
}

// CreateIngestion records that a run is expected for a commit and returns
// the ledger row ID. The idempotency key is repo_id + commit_sha
// (+ pr_number if present), so webhook redeliveries reuse the same row.
func (s *Service) CreateIngestion(ctx context.Context, req RunUpload) (string, error) {
	idempotencyKey := fmt.Sprintf("%s:%s", req.RepoID, req.CommitSHA)
	if req.PRNumber != nil {
		idempotencyKey = fmt.Sprintf("%s:pr%d", idempotencyKey, *req.PRNumber)
	}

	var id string
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO ingestions (project_id, repo_id, commit_sha, pr_number, idempotency_key)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (idempotency_key) DO UPDATE SET updated_at = now()
		 RETURNING id`,
		req.ProjectID, req.RepoID, req.CommitSHA, req.PRNumber, idempotencyKey,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("create ingestion: %w", err)
	}
	return id, nil
}

// FailIngestions marks the pending ledger rows for a commit as failed,
// keeping the store error for the dashboard. Completed rows stay completed.
func (s *Service) FailIngestions(ctx context.Context, repoID, commitSHA, errMsg string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE ingestions SET status = $1, error_message = $2, updated_at = now()
		 WHERE repo_id = $3 AND commit_sha = $4 AND status = $5`,
		StatusFailed, errMsg, repoID, commitSHA, StatusQueued,
	)
	if err != nil {
		return fmt.Errorf("fail ingestions: %w", err)
	}
	return nil
}

// StoreRun archives the report blob, indexes the run, completes any
// matching ingestion ledger rows, and publishes a check run when the
// project has a GitHub App installation.
func (s *Service) StoreRun(ctx context.Context, req RunUpload, report *surface.RunReport) (string, error) {
	if report == nil || report.Selection == nil {
		return "", fmt.Errorf("report has no selection result")
	}

	blobID := report.Selection.RunID
	if blobID == "" {
		blobID = uuid.New().String()
	}

	data, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	if err := s.storage.PutReport(ctx, req.ProjectID, blobID, data); err != nil {
		return "", fmt.Errorf("put report blob: %w", err)
	}
	storageRef := fmt.Sprintf("reports/%s/%s.json", req.ProjectID, blobID)

	status := ""
	exitCode := 0
	var durationMs int64
	if report.Outcome != nil {
		status = string(report.Outcome.Status)
		exitCode = report.Outcome.ExitCode
		durationMs = report.Outcome.Duration.Milliseconds()
	}

	severity := ""
	totalTests := 0
	findingsJSON := []byte("[]")
	if report.Review != nil {
		severity = string(report.Review.Severity)
		totalTests = report.Review.RunStats.TotalTests
		findingsJSON, err = json.Marshal(report.Review.Findings)
		if err != nil {
			return "", fmt.Errorf("marshal findings: %w", err)
		}
	}

	var id string
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO runs (project_id, repo_id, pr_number, commit_sha, base_ref,
		                   changed_files, affected_tests, uncovered, total_tests,
		                   status, exit_code, duration_ms, severity, findings, storage_ref)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 RETURNING id`,
		req.ProjectID, req.RepoID, req.PRNumber, req.CommitSHA, req.BaseRef,
		len(report.Selection.ChangedFiles), len(report.Selection.AffectedTests),
		len(report.Selection.NoCoverage), totalTests,
		status, exitCode, durationMs, severity, findingsJSON, storageRef,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert run row: %w", err)
	}

	if err := s.completeIngestions(ctx, req, id); err != nil {
		log.Printf("complete ingestions for run %s: %v", id, err)
	}

	s.publishCheckRun(ctx, req, report)

	return id, nil
}

// completeIngestions marks any queued ledger rows for this commit as done.
func (s *Service) completeIngestions(ctx context.Context, req RunUpload, runID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE ingestions SET status = $1, run_id = $2, updated_at = now()
		 WHERE repo_id = $3 AND commit_sha = $4 AND status != $1`,
		StatusCompleted, runID, req.RepoID, req.CommitSHA,
	)
	return err
}

// publishCheckRun posts the run summary back to GitHub. Failures are
// logged; a missing check run never fails the upload.
func (s *Service) publishCheckRun(ctx context.Context, req RunUpload, report *surface.RunReport) {
	if s.publisher == nil || req.CommitSHA == "" {
		return
	}

	installationID := req.InstallationID
	if installationID == 0 {
		p, err := s.projects.GetProjectByName(ctx, ownerOf(req.RepoFullName))
		if err != nil || p.GitHubInstallationID == nil {
			return
		}
		installationID = *p.GitHubInstallationID
	}

	owner, repo, ok := splitFullName(req.RepoFullName)
	if !ok {
		return
	}

	renderer := &surface.CheckRunRenderer{}
	data := renderer.BuildCheckRunData(report)
	if err := s.publisher.PublishCheckRun(ctx, installationID, owner, repo, req.CommitSHA, data); err != nil {
		log.Printf("publish check run for %s@%s: %v", req.RepoFullName, req.CommitSHA, err)
	}
}

// StoreSnapshot archives a graph snapshot blob and indexes it.
func (s *Service) StoreSnapshot(ctx context.Context, req RunUpload, snap *graph.Snapshot, data []byte) (string, error) {
	blobID := snap.ID
	if blobID == "" {
		blobID = uuid.New().String()
	}

	storageRef := fmt.Sprintf("snapshots/%s/%s.json", req.ProjectID, blobID)
	if err := s.storage.PutSnapshot(ctx, req.ProjectID, blobID, data); err != nil {
		return "", fmt.Errorf("put snapshot blob: %w", err)
	}

	var id string
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO snapshots (project_id, repo_id, commit_sha, branch, file_count, edge_count, test_count, analysis_ms, storage_ref)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (repo_id, commit_sha) DO UPDATE SET storage_ref = EXCLUDED.storage_ref
		 RETURNING id`,
		req.ProjectID, req.RepoID, snap.CommitSHA, nilIfEmpty(req.Branch),
		snap.Stats.FileCount, snap.Stats.EdgeCount, snap.Stats.TestCount, snap.Stats.AnalysisMs,
		storageRef,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert snapshot row: %w", err)
	}
	return id, nil
}

func ownerOf(fullName string) string {
	if idx := strings.Index(fullName, "/"); idx > 0 {
		return fullName[:idx]
	}
	return fullName
}

func splitFullName(fullName string) (owner, repo string, ok bool) {
	idx := strings.Index(fullName, "/")
	if idx <= 0 || idx == len(fullName)-1 {
		return "", "", false
	}
	return fullName[:idx], fullName[idx+1:], true
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
