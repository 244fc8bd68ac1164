package gitdiff

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

func initRepo(t *testing.T) (string, *git.Repository) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	return dir, repo
}

func commitFiles(t *testing.T, repo *git.Repository, dir string, files map[string]string, msg string) {
	t.Helper()
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	for name, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := wt.Add(name); err != nil {
			t.Fatal(err)
		}
	}
	_, err = wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{Name: "dev", Email: "dev@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func removeFile(t *testing.T, repo *git.Repository, dir, name, msg string) {
	t.Helper()
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Remove(name); err != nil {
		t.Fatal(err)
	}
	_, err = wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{Name: "dev", Email: "dev@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func checkoutNew(t *testing.T, repo *git.Repository, branch string) {
	t.Helper()
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	err = wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(branch),
		Create: true,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestChangedFiles(t *testing.T) {
	dir, repo := initRepo(t)
	commitFiles(t, repo, dir, map[string]string{
		"pkg/foo.py": "x = 1\n",
		"pkg/bar.py": "y = 2\n",
		"README.md":  "readme\n",
	}, "initial")

	checkoutNew(t, repo, "feature")
	commitFiles(t, repo, dir, map[string]string{
		"pkg/foo.py":        "x = 10\n",
		"tests/test_foo.py": "from pkg import foo\n",
		"notes.md":          "notes\n",
	}, "change foo, add test")

	got, err := ChangedFiles(dir, "master", "HEAD")
	if err != nil {
		t.Fatalf("ChangedFiles() error = %v", err)
	}
	sort.Strings(got)

	want := []string{"pkg/foo.py", "tests/test_foo.py"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
			break
		}
	}
}

func TestChangedFilesUsesMergeBase(t *testing.T) {
	dir, repo := initRepo(t)
	commitFiles(t, repo, dir, map[string]string{"pkg/foo.py": "x = 1\n"}, "initial")

	checkoutNew(t, repo, "feature")
	commitFiles(t, repo, dir, map[string]string{"pkg/feature.py": "f = 1\n"}, "feature work")

	// Advance master past the branch point; that commit must not count
	// as a change on the feature branch.
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{Branch: plumbing.NewBranchReferenceName("master")}); err != nil {
		t.Fatal(err)
	}
	commitFiles(t, repo, dir, map[string]string{"pkg/on_master.py": "m = 1\n"}, "master moves on")
	if err := wt.Checkout(&git.CheckoutOptions{Branch: plumbing.NewBranchReferenceName("feature")}); err != nil {
		t.Fatal(err)
	}

	got, err := ChangedFiles(dir, "master", "HEAD")
	if err != nil {
		t.Fatalf("ChangedFiles() error = %v", err)
	}

	if len(got) != 1 || got[0] != "pkg/feature.py" {
		t.Errorf("got %v, want [pkg/feature.py]", got)
	}
}

func TestChangedFilesSkipsDeleted(t *testing.T) {
	dir, repo := initRepo(t)
	commitFiles(t, repo, dir, map[string]string{
		"pkg/keep.py": "k = 1\n",
		"pkg/gone.py": "g = 1\n",
	}, "initial")

	checkoutNew(t, repo, "feature")
	removeFile(t, repo, dir, "pkg/gone.py", "drop gone")

	got, err := ChangedFiles(dir, "master", "HEAD")
	if err != nil {
		t.Fatalf("ChangedFiles() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %v, want no changes for a deletion", got)
	}
}

func TestChangedFilesExplicitHead(t *testing.T) {
	dir, repo := initRepo(t)
	commitFiles(t, repo, dir, map[string]string{"pkg/foo.py": "x = 1\n"}, "initial")

	checkoutNew(t, repo, "feature")
	commitFiles(t, repo, dir, map[string]string{"pkg/new.py": "n = 1\n"}, "feature work")

	// Name the head branch instead of relying on the checkout.
	got, err := ChangedFiles(dir, "master", "feature")
	if err != nil {
		t.Fatalf("ChangedFiles() error = %v", err)
	}
	if len(got) != 1 || got[0] != "pkg/new.py" {
		t.Errorf("got %v, want [pkg/new.py]", got)
	}

	if _, err := ChangedFiles(dir, "master", "no-such-head"); err == nil {
		t.Error("expected error for unknown head ref")
	}
}

func TestChangedFilesBadRef(t *testing.T) {
	dir, repo := initRepo(t)
	commitFiles(t, repo, dir, map[string]string{"pkg/foo.py": "x = 1\n"}, "initial")

	if _, err := ChangedFiles(dir, "no-such-branch", "HEAD"); err == nil {
		t.Fatal("expected error for unknown base ref")
	}
}

func TestChangedFilesNotARepo(t *testing.T) {
	if _, err := ChangedFiles(t.TempDir(), "main", ""); err == nil {
		t.Fatal("expected error outside a repository")
	}
}

func TestHead(t *testing.T) {
	dir, repo := initRepo(t)
	commitFiles(t, repo, dir, map[string]string{"pkg/foo.py": "x = 1\n"}, "initial")

	sha, err := Head(dir)
	if err != nil {
		t.Fatalf("Head() error = %v", err)
	}
	if len(sha) != 40 {
		t.Errorf("Head() = %q, want a 40-char hash", sha)
	}

	if _, err := Head(t.TempDir()); err == nil {
		t.Error("expected error outside a repository")
	}
}
