package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalStoragePutGetReport(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalStorage(dir)
	ctx := context.Background()

	data := []byte(`{"selection":{"affected_tests":[]}}`)
	if err := s.PutReport(ctx, "proj1", "run1", data); err != nil {
		t.Fatalf("PutReport: %v", err)
	}

	got, err := s.GetReport(ctx, "proj1", "run1")
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("GetReport = %q, want %q", got, data)
	}

	// Verify file path layout
	expectedPath := filepath.Join(dir, "proj1", "reports", "run1.json")
	if _, err := os.Stat(expectedPath); err != nil {
		t.Errorf("expected file at %s: %v", expectedPath, err)
	}
}

func TestLocalStoragePutGetSnapshot(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalStorage(dir)
	ctx := context.Background()

	data := []byte(`{"files":[]}`)
	if err := s.PutSnapshot(ctx, "proj1", "snap1", data); err != nil {
		t.Fatalf("PutSnapshot: %v", err)
	}

	got, err := s.GetSnapshot(ctx, "proj1", "snap1")
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("GetSnapshot = %q, want %q", got, data)
	}

	expectedPath := filepath.Join(dir, "proj1", "snapshots", "snap1.json")
	if _, err := os.Stat(expectedPath); err != nil {
		t.Errorf("expected file at %s: %v", expectedPath, err)
	}
}

func TestLocalStorageGetNotFound(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalStorage(dir)
	ctx := context.Background()

	_, err := s.GetReport(ctx, "proj1", "nonexistent")
	if err == nil {
		t.Error("expected error for nonexistent report")
	}
}
