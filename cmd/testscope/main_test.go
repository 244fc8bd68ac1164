package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSelectCmdFlags(t *testing.T) {
	cmd := newSelectCmd()
	f := cmd.Flags()

	// Test default values
	head, _ := f.GetString("head")
	if head != "HEAD" {
		t.Errorf("default head = %q, want HEAD", head)
	}
	output, _ := f.GetString("output")
	if output != "text" {
		t.Errorf("default output = %q, want text", output)
	}

	// Test that flags exist
	for _, flag := range []string{"base", "head", "repo-path", "run", "timeout", "output", "explain", "changed-file", "upload", "no-record"} {
		if f.Lookup(flag) == nil {
			t.Errorf("missing flag: %s", flag)
		}
	}
}

func TestGraphCmdFlags(t *testing.T) {
	cmd := newGraphCmd()
	f := cmd.Flags()

	output, _ := f.GetString("output")
	if output != "text" {
		t.Errorf("default output = %q, want text", output)
	}

	for _, flag := range []string{"repo-path", "save", "deps", "rdeps", "depth", "output"} {
		if f.Lookup(flag) == nil {
			t.Errorf("missing flag: %s", flag)
		}
	}
}

func TestWatchCmdFlags(t *testing.T) {
	cmd := newWatchCmd()
	f := cmd.Flags()

	debounce, _ := f.GetDuration("debounce")
	if debounce.Milliseconds() != 500 {
		t.Errorf("default debounce = %s, want 500ms", debounce)
	}

	for _, flag := range []string{"repo-path", "run", "debounce"} {
		if f.Lookup(flag) == nil {
			t.Errorf("missing flag: %s", flag)
		}
	}
}

func TestHistoryCmdFlags(t *testing.T) {
	cmd := newHistoryCmd()
	f := cmd.Flags()

	limit, _ := f.GetInt("limit")
	if limit != 20 {
		t.Errorf("default limit = %d, want 20", limit)
	}

	for _, flag := range []string{"repo-path", "limit", "output"} {
		if f.Lookup(flag) == nil {
			t.Errorf("missing flag: %s", flag)
		}
	}
}

func TestRendererFor(t *testing.T) {
	for _, format := range []string{"text", "json", "checkrun", ""} {
		if _, err := rendererFor(format); err != nil {
			t.Errorf("rendererFor(%q) error = %v", format, err)
		}
	}
	if _, err := rendererFor("xml"); err == nil {
		t.Error("rendererFor(xml) should fail")
	}
}

func TestNormalizeChanged(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "app"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "app", "core.py"), []byte("x = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got := normalizeChanged(root, []string{
		"app/core.py",   // exists
		"app/gone.py",   // missing
		"README.md",     // not python
		"./app/core.py", // cleans to a duplicate
	})

	want := []string{"app/core.py"}
	if len(got) != len(want) {
		t.Fatalf("normalizeChanged() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("normalizeChanged() = %v, want %v", got, want)
			break
		}
	}
}

func TestPRNumberFromEnv(t *testing.T) {
	t.Setenv("GITHUB_REF", "refs/pull/17/merge")
	if n := prNumberFromEnv(); n == nil || *n != 17 {
		t.Errorf("prNumberFromEnv() = %v, want 17", n)
	}

	t.Setenv("GITHUB_REF", "refs/heads/main")
	if n := prNumberFromEnv(); n != nil {
		t.Errorf("prNumberFromEnv() = %v, want nil for a branch ref", n)
	}

	t.Setenv("GITHUB_REF", "")
	if n := prNumberFromEnv(); n != nil {
		t.Errorf("prNumberFromEnv() = %v, want nil when unset", n)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"a", "b", "c"}, "a"},
		{[]string{"", "b", "c"}, "b"},
		{[]string{"", "", "c"}, "c"},
		{[]string{"", "", ""}, ""},
	}

	for _, tt := range tests {
		got := firstNonEmpty(tt.args...)
		if got != tt.want {
			t.Errorf("firstNonEmpty(%v) = %q, want %q", tt.args, got, tt.want)
		}
	}
}

func TestMinInt(t *testing.T) {
	if minInt(3, 5) != 3 {
		t.Error("minInt(3, 5) should be 3")
	}
	if minInt(5, 3) != 3 {
		t.Error("minInt(5, 3) should be 3")
	}
	if minInt(3, 3) != 3 {
		t.Error("minInt(3, 3) should be 3")
	}
}
