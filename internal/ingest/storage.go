// Package ingest accepts selection run uploads for the hosted service:
// it archives report blobs, indexes runs in Postgres, and publishes
// check runs back to GitHub.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// StorageClient abstracts blob storage for run reports and graph snapshots.
type StorageClient interface {
	PutReport(ctx context.Context, projectID, runID string, data []byte) error
	GetReport(ctx context.Context, projectID, runID string) ([]byte, error)
	PutSnapshot(ctx context.Context, projectID, snapshotID string, data []byte) error
	GetSnapshot(ctx context.Context, projectID, snapshotID string) ([]byte, error)
}

// LocalStorage implements StorageClient using the local filesystem.
// Useful for development and testing.
type LocalStorage struct {
	BaseDir string
}

// NewLocalStorage creates a LocalStorage rooted at the given directory.
func NewLocalStorage(baseDir string) *LocalStorage {
	return &LocalStorage{BaseDir: baseDir}
}

func (s *LocalStorage) path(projectID, kind, id string) string {
	return filepath.Join(s.BaseDir, projectID, kind, id+".json")
}

func (s *LocalStorage) put(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// PutReport stores a run report blob.
func (s *LocalStorage) PutReport(ctx context.Context, projectID, runID string, data []byte) error {
	return s.put(s.path(projectID, "reports", runID), data)
}

// GetReport retrieves a run report blob.
func (s *LocalStorage) GetReport(ctx context.Context, projectID, runID string) ([]byte, error) {
	return os.ReadFile(s.path(projectID, "reports", runID))
}

// PutSnapshot stores a graph snapshot blob.
func (s *LocalStorage) PutSnapshot(ctx context.Context, projectID, snapshotID string, data []byte) error {
	return s.put(s.path(projectID, "snapshots", snapshotID), data)
}

// GetSnapshot retrieves a graph snapshot blob.
func (s *LocalStorage) GetSnapshot(ctx context.Context, projectID, snapshotID string) ([]byte, error) {
	return os.ReadFile(s.path(projectID, "snapshots", snapshotID))
}
