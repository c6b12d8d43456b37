package sync

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// newGitClone creates a bare remote with one commit on main and returns the
// path of a working clone plus the remote.
func newGitClone(t *testing.T) (repo, remote string) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found in PATH")
	}

	remote = t.TempDir()
	gitRun(t, remote, "init", "--bare")

	workDir := t.TempDir()
	gitRun(t, workDir, "clone", remote, "repo")
	repo = filepath.Join(workDir, "repo")

	gitRun(t, repo, "config", "user.email", "sync@example.com")
	gitRun(t, repo, "config", "user.name", "Forms Sync")
	gitRun(t, repo, "checkout", "-b", "main")

	if err := os.WriteFile(filepath.Join(repo, ".gitkeep"), nil, 0o644); err != nil {
		t.Fatalf("write .gitkeep: %v", err)
	}
	gitRun(t, repo, "add", ".")
	gitRun(t, repo, "commit", "-m", "init")
	gitRun(t, repo, "push", "origin", "main")
	return repo, remote
}

func gitRun(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v failed: %v\n%s", args, err, out)
	}
	return strings.TrimSpace(string(out))
}

func TestGitDestination(t *testing.T) {
	repo, remote := newGitClone(t)
	dest := NewGitDestination(repo, "forms.jsonl", "main")
	ctx := context.Background()

	data1 := []byte(`{"version":"1","type":"header","form_count":1,"submission_count":2}` + "\n" +
		`{"type":"form","data":{"id":"fm-1"}}` + "\n")
	if err := dest.Write(ctx, data1); err != nil {
		t.Fatalf("first write: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(repo, "forms.jsonl"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if string(got) != string(data1) {
		t.Fatalf("file content mismatch: got %q", got)
	}
	if msg := gitRun(t, repo, "log", "-1", "--format=%s"); msg != "sync: update forms export (1 forms, 2 submissions)" {
		t.Errorf("commit message = %q", msg)
	}
	if n := gitRun(t, remote, "rev-list", "--count", "main"); n != "2" {
		t.Errorf("remote has %s commits, want 2 (init + sync)", n)
	}

	// Same data: no new commit.
	if err := dest.Write(ctx, data1); err != nil {
		t.Fatalf("second write: %v", err)
	}
	if n := gitRun(t, repo, "rev-list", "--count", "HEAD"); n != "2" {
		t.Errorf("identical write committed: %s commits, want 2", n)
	}

	data2 := []byte(`{"version":"1","type":"header","form_count":2,"submission_count":2}` + "\n")
	if err := dest.Write(ctx, data2); err != nil {
		t.Fatalf("third write: %v", err)
	}
	if n := gitRun(t, remote, "rev-list", "--count", "main"); n != "3" {
		t.Errorf("remote has %s commits after change, want 3", n)
	}
}

func TestGitDestination_SubDirectory(t *testing.T) {
	repo, _ := newGitClone(t)
	dest := NewGitDestination(repo, "data/forms.jsonl", "main")

	data := []byte(`{"type":"header"}` + "\n")
	if err := dest.Write(context.Background(), data); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(repo, "data", "forms.jsonl"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if string(got) != string(data) {
		t.Fatalf("content mismatch: got %q", got)
	}
}

func TestGitDestination_MissingBranch(t *testing.T) {
	repo, _ := newGitClone(t)
	dest := NewGitDestination(repo, "forms.jsonl", "no-such-branch")

	err := dest.Write(context.Background(), []byte("{}\n"))
	if err == nil {
		t.Fatal("expected error for missing branch")
	}
	if !strings.Contains(err.Error(), "git checkout") {
		t.Errorf("error = %v, want it to name the failing git command", err)
	}
	if _, statErr := os.Stat(filepath.Join(repo, "forms.jsonl")); !os.IsNotExist(statErr) {
		t.Error("file written despite failed checkout")
	}
}

func TestCommitMessage(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"header", `{"type":"header","form_count":3,"submission_count":7}` + "\n{}\n", "sync: update forms export (3 forms, 7 submissions)"},
		{"no newline", `{"type":"header","form_count":0,"submission_count":0}`, "sync: update forms export (0 forms, 0 submissions)"},
		{"not a header", `{"type":"form"}` + "\n", "sync: update forms export"},
		{"garbage", "nope\n", "sync: update forms export"},
		{"empty", "", "sync: update forms export"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := commitMessage([]byte(tc.data)); got != tc.want {
				t.Errorf("commitMessage = %q, want %q", got, tc.want)
			}
		})
	}
}
