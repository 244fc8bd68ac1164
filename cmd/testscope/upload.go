package main

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/testscope/testscope/pkg/config"
	"github.com/testscope/testscope/pkg/graph"
	"github.com/testscope/testscope/pkg/surface"
)

// uploadPayload mirrors the ingest endpoint's request body. Repository
// identity comes from the CI environment when available.
type uploadPayload struct {
	RepoFullName  string             `json:"repo_full_name"`
	DefaultBranch string             `json:"default_branch,omitempty"`
	CommitSHA     string             `json:"commit_sha"`
	BaseRef       string             `json:"base_ref,omitempty"`
	Branch        string             `json:"branch,omitempty"`
	PRNumber      *int               `json:"pr_number,omitempty"`
	Report        *surface.RunReport `json:"report"`
	Snapshot      *graph.Snapshot    `json:"snapshot,omitempty"`
}

// uploadRun POSTs the gzipped run report to the configured service.
func uploadRun(ctx context.Context, cfg *config.Config, root, commitSHA string, report *surface.RunReport, snap *graph.Snapshot) error {
	if cfg.Upload.URL == "" {
		return fmt.Errorf("no upload URL configured (set upload.url in .testscope/config.yaml)")
	}

	payload := uploadPayload{
		RepoFullName: firstNonEmpty(os.Getenv("GITHUB_REPOSITORY"), filepath.Base(root)),
		CommitSHA:    commitSHA,
		BaseRef:      report.Selection.BaseRef,
		Branch:       os.Getenv("GITHUB_REF_NAME"),
		PRNumber:     prNumberFromEnv(),
		Report:       report,
		Snapshot:     snap,
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if err := json.NewEncoder(gz).Encode(payload); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("compressing report: %w", err)
	}

	url := strings.TrimRight(cfg.Upload.URL, "/") + "/api/v1/runs"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")
	if cfg.Upload.APIKey != "" {
		req.Header.Set("X-API-Key", cfg.Upload.APIKey)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var ur struct {
		RunID string `json:"run_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ur); err == nil && ur.RunID != "" {
		fmt.Fprintf(os.Stderr, "Uploaded run %s\n", ur.RunID)
	}
	return nil
}

// prNumberFromEnv extracts the pull request number from GITHUB_REF,
// which looks like refs/pull/17/merge on pull_request events.
func prNumberFromEnv() *int {
	parts := strings.Split(os.Getenv("GITHUB_REF"), "/")
	if len(parts) >= 3 && parts[1] == "pull" {
		if n, err := strconv.Atoi(parts[2]); err == nil {
			return &n
		}
	}
	return nil
}
