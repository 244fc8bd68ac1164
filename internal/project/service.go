// Package project manages hosted-service state: projects (GitHub App
// installations or CI orgs) and the repositories whose runs they upload.
package project

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Service provides project and repository management backed by Postgres.
type Service struct {
	db *sql.DB
}

// Project represents a GitHub App installation or a CI org uploading runs.
type Project struct {
	ID                   string
	Name                 string
	GitHubInstallationID *int64
	CreatedAt            time.Time
}

// Repo represents a repository whose selection runs are tracked.
type Repo struct {
	ID            string
	ProjectID     string
	GitHubRepoID  *int64
	FullName      string
	DefaultBranch string
	CreatedAt     time.Time
}

// NewService creates a new project Service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// CreateProject creates a new project for a GitHub App installation.
func (s *Service) CreateProject(ctx context.Context, name string, installationID int64) (*Project, error) {
	p := &Project{}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO projects (name, github_installation_id)
		 VALUES ($1, $2)
		 RETURNING id, name, github_installation_id, created_at`,
		name, installationID,
	).Scan(&p.ID, &p.Name, &p.GitHubInstallationID, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return p, nil
}

// GetProjectByInstallation looks up a project by GitHub App installation ID.
func (s *Service) GetProjectByInstallation(ctx context.Context, installationID int64) (*Project, error) {
	p := &Project{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, github_installation_id, created_at
		 FROM projects WHERE github_installation_id = $1`,
		installationID,
	).Scan(&p.ID, &p.Name, &p.GitHubInstallationID, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get project by installation %d: %w", installationID, err)
	}
	return p, nil
}

// GetProjectByName looks up a project by name (for CI-based ingest without an installation).
func (s *Service) GetProjectByName(ctx context.Context, name string) (*Project, error) {
	p := &Project{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, github_installation_id, created_at
		 FROM projects WHERE name = $1`,
		name,
	).Scan(&p.ID, &p.Name, &p.GitHubInstallationID, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get project by name %s: %w", name, err)
	}
	return p, nil
}

// CreateProjectByName creates a project without an installation ID.
func (s *Service) CreateProjectByName(ctx context.Context, name string) (*Project, error) {
	p := &Project{}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO projects (name)
		 VALUES ($1)
		 RETURNING id, name, github_installation_id, created_at`,
		name,
	).Scan(&p.ID, &p.Name, &p.GitHubInstallationID, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create project by name: %w", err)
	}
	return p, nil
}

// UpsertRepo creates or updates a repository record for a project.
func (s *Service) UpsertRepo(ctx context.Context, projectID, fullName string, githubRepoID *int64, defaultBranch string) (*Repo, error) {
	r := &Repo{}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO repos (project_id, full_name, github_repo_id, default_branch)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (project_id, full_name) DO UPDATE
		   SET github_repo_id = COALESCE(EXCLUDED.github_repo_id, repos.github_repo_id),
		       default_branch = EXCLUDED.default_branch
		 RETURNING id, project_id, github_repo_id, full_name, default_branch, created_at`,
		projectID, fullName, githubRepoID, defaultBranch,
	).Scan(&r.ID, &r.ProjectID, &r.GitHubRepoID, &r.FullName, &r.DefaultBranch, &r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert repo %s: %w", fullName, err)
	}
	return r, nil
}

// GetRepo retrieves a repository by project ID and full name.
func (s *Service) GetRepo(ctx context.Context, projectID, fullName string) (*Repo, error) {
	r := &Repo{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, github_repo_id, full_name, default_branch, created_at
		 FROM repos WHERE project_id = $1 AND full_name = $2`,
		projectID, fullName,
	).Scan(&r.ID, &r.ProjectID, &r.GitHubRepoID, &r.FullName, &r.DefaultBranch, &r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get repo %s: %w", fullName, err)
	}
	return r, nil
}

// ListRepos returns all repositories for a project.
func (s *Service) ListRepos(ctx context.Context, projectID string) ([]Repo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, github_repo_id, full_name, default_branch, created_at
		 FROM repos WHERE project_id = $1 ORDER BY full_name`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("list repos: %w", err)
	}
	defer rows.Close()

	var repos []Repo
	for rows.Next() {
		var r Repo
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.GitHubRepoID, &r.FullName, &r.DefaultBranch, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan repo: %w", err)
		}
		repos = append(repos, r)
	}
	return repos, rows.Err()
}

// ListAllRepos returns all repositories across all projects.
func (s *Service) ListAllRepos(ctx context.Context) ([]Repo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, github_repo_id, full_name, default_branch, created_at
		 FROM repos ORDER BY full_name`,
	)
	if err != nil {
		return nil, fmt.Errorf("list all repos: %w", err)
	}
	defer rows.Close()

	var repos []Repo
	for rows.Next() {
		var r Repo
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.GitHubRepoID, &r.FullName, &r.DefaultBranch, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan repo: %w", err)
		}
		repos = append(repos, r)
	}
	return repos, rows.Err()
}

// UpdateRepoDefaultBranch changes the default branch recorded for a repository.
func (s *Service) UpdateRepoDefaultBranch(ctx context.Context, repoID, defaultBranch string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE repos SET default_branch = $1 WHERE id = $2`,
		defaultBranch, repoID,
	)
	if err != nil {
		return fmt.Errorf("update repo %s: %w", repoID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update repo %s: not found", repoID)
	}
	return nil
}

// DeleteRepo removes a repository and its runs.
func (s *Service) DeleteRepo(ctx context.Context, repoID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM runs WHERE repo_id = $1`, repoID,
	); err != nil {
		return fmt.Errorf("delete runs for repo %s: %w", repoID, err)
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM repos WHERE id = $1`, repoID,
	); err != nil {
		return fmt.Errorf("delete repo %s: %w", repoID, err)
	}
	return nil
}

// EnsureProjectAndRepo gets or creates a project (by org name) and repository.
// Returns projectID, repoID, and any error.
func (s *Service) EnsureProjectAndRepo(ctx context.Context, orgName, repoFullName, defaultBranch string) (string, string, error) {
	// Get or create project
	p, err := s.GetProjectByName(ctx, orgName)
	if err != nil {
		p, err = s.CreateProjectByName(ctx, orgName)
		if err != nil {
			// Could be a race condition; try getting again
			if strings.Contains(err.Error(), "duplicate") || strings.Contains(err.Error(), "unique") {
				p, err = s.GetProjectByName(ctx, orgName)
				if err != nil {
					return "", "", fmt.Errorf("ensure project: %w", err)
				}
			} else {
				return "", "", fmt.Errorf("ensure project: %w", err)
			}
		}
	}

	// Get or create repository
	repo, err := s.UpsertRepo(ctx, p.ID, repoFullName, nil, defaultBranch)
	if err != nil {
		return "", "", fmt.Errorf("ensure repo: %w", err)
	}

	return p.ID, repo.ID, nil
}

// RunRow is the indexed view of one uploaded selection run. The full
// report payload lives in blob storage at StorageRef.
type RunRow struct {
	ID            string
	ProjectID     string
	RepoID        string
	PRNumber      *int
	CommitSHA     string
	BaseRef       string
	ChangedFiles  int
	AffectedTests int
	Uncovered     int
	TotalTests    int
	Status        string
	ExitCode      int
	DurationMs    int64
	Severity      string
	Findings      json.RawMessage
	StorageRef    string
	CreatedAt     time.Time
}

const runColumns = `id, project_id, repo_id, pr_number, commit_sha, base_ref,
	        changed_files, affected_tests, uncovered, total_tests,
	        status, exit_code, duration_ms, severity, findings, storage_ref, created_at`

func scanRun(row interface{ Scan(...any) error }, r *RunRow) error {
	return row.Scan(
		&r.ID, &r.ProjectID, &r.RepoID, &r.PRNumber, &r.CommitSHA, &r.BaseRef,
		&r.ChangedFiles, &r.AffectedTests, &r.Uncovered, &r.TotalTests,
		&r.Status, &r.ExitCode, &r.DurationMs, &r.Severity, &r.Findings, &r.StorageRef, &r.CreatedAt,
	)
}

// ListRunsByRepo returns runs for a repository, newest first.
func (s *Service) ListRunsByRepo(ctx context.Context, repoID string, limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+`
		 FROM runs WHERE repo_id = $1 ORDER BY created_at DESC LIMIT $2`,
		repoID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRow
	for rows.Next() {
		var r RunRow
		if err := scanRun(rows, &r); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRunByID returns a single run by ID.
func (s *Service) GetRunByID(ctx context.Context, runID string) (*RunRow, error) {
	r := &RunRow{}
	err := scanRun(s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+`
		 FROM runs WHERE id = $1`,
		runID,
	), r)
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	return r, nil
}

// GetRunByPR returns the most recent run for a PR.
func (s *Service) GetRunByPR(ctx context.Context, repoID string, prNumber int) (*RunRow, error) {
	r := &RunRow{}
	err := scanRun(s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+`
		 FROM runs WHERE repo_id = $1 AND pr_number = $2
		 ORDER BY created_at DESC LIMIT 1`,
		repoID, prNumber,
	), r)
	if err != nil {
		return nil, fmt.Errorf("get run for PR %d: %w", prNumber, err)
	}
	return r, nil
}

// SnapshotRow represents graph snapshot metadata from the database.
type SnapshotRow struct {
	ID         string
	ProjectID  string
	RepoID     string
	CommitSHA  string
	Branch     *string
	FileCount  int
	EdgeCount  int
	TestCount  int
	AnalysisMs int
	StorageRef string
	CreatedAt  time.Time
}

// GetSnapshotByID returns snapshot metadata by ID.
func (s *Service) GetSnapshotByID(ctx context.Context, snapshotID string) (*SnapshotRow, error) {
	sn := &SnapshotRow{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, repo_id, commit_sha, branch,
		        file_count, edge_count, test_count, analysis_ms, storage_ref, created_at
		 FROM snapshots WHERE id = $1`,
		snapshotID,
	).Scan(
		&sn.ID, &sn.ProjectID, &sn.RepoID, &sn.CommitSHA, &sn.Branch,
		&sn.FileCount, &sn.EdgeCount, &sn.TestCount, &sn.AnalysisMs, &sn.StorageRef, &sn.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get snapshot %s: %w", snapshotID, err)
	}
	return sn, nil
}

// GetLatestSnapshotForRepo returns the newest snapshot metadata for a repo,
// preferring the baseline recorded for its default branch.
func (s *Service) GetLatestSnapshotForRepo(ctx context.Context, repoID string) (*SnapshotRow, error) {
	sn := &SnapshotRow{}
	err := s.db.QueryRowContext(ctx,
		`SELECT s.id, s.project_id, s.repo_id, s.commit_sha, s.branch,
		        s.file_count, s.edge_count, s.test_count, s.analysis_ms, s.storage_ref, s.created_at
		 FROM snapshots s
		 LEFT JOIN baselines b ON b.snapshot_id = s.id
		 WHERE s.repo_id = $1
		 ORDER BY (b.repo_id IS NOT NULL) DESC, s.created_at DESC
		 LIMIT 1`,
		repoID,
	).Scan(
		&sn.ID, &sn.ProjectID, &sn.RepoID, &sn.CommitSHA, &sn.Branch,
		&sn.FileCount, &sn.EdgeCount, &sn.TestCount, &sn.AnalysisMs, &sn.StorageRef, &sn.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("latest snapshot for repo %s: %w", repoID, err)
	}
	return sn, nil
}
