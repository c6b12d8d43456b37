package sync

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// GitDestination commits the export to a file in a local clone and pushes
// it. Snapshots identical to the committed file produce no commit.
type GitDestination struct {
	repo   string // path to the local clone
	file   string // file path within the repo
	branch string // branch to commit and push to
}

// NewGitDestination creates a git destination. repo is the path to an
// existing local clone with an "origin" remote.
func NewGitDestination(repo, file, branch string) *GitDestination {
	return &GitDestination{
		repo:   repo,
		file:   file,
		branch: branch,
	}
}

// Name identifies the destination in logs.
func (d *GitDestination) Name() string {
	return "git:" + filepath.Join(d.repo, d.file)
}

// Write writes data to the configured file, commits, and pushes.
func (d *GitDestination) Write(ctx context.Context, data []byte) error {
	if _, err := d.git(ctx, "checkout", d.branch); err != nil {
		return err
	}

	// The remote may not have the branch yet.
	_, _ = d.git(ctx, "pull", "--ff-only", "origin", d.branch)

	if err := writeFileAtomic(filepath.Join(d.repo, d.file), data); err != nil {
		return err
	}

	if _, err := d.git(ctx, "add", "--", d.file); err != nil {
		return err
	}
	// Exit status 0 means the staged file matches HEAD.
	if _, err := d.git(ctx, "diff", "--cached", "--quiet", "--", d.file); err == nil {
		return nil
	}
	if _, err := d.git(ctx, "commit", "-m", commitMessage(data), "--", d.file); err != nil {
		return err
	}
	if _, err := d.git(ctx, "push", "origin", d.branch); err != nil {
		return err
	}
	return nil
}

// git runs a git subcommand in the clone. Failures carry git's output.
func (d *GitDestination) git(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = d.repo
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// commitMessage summarizes the export from its header record.
func commitMessage(data []byte) string {
	const subject = "sync: update forms export"
	h, ok := parseHeader(data)
	if !ok {
		return subject
	}
	return fmt.Sprintf("%s (%d forms, %d submissions)", subject, h.FormCount, h.SubmissionCount)
}

// parseHeader decodes the header record on the first line of an export.
func parseHeader(data []byte) (header, bool) {
	line, err := bufio.NewReader(bytes.NewReader(data)).ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return header{}, false
	}
	var h header
	if json.Unmarshal(line, &h) != nil || h.Type != recordHeader {
		return header{}, false
	}
	return h, true
}
