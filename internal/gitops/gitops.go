// Package gitops versions a file-backed workspace with git. Every write
// command can commit the workspace so the books carry their own history.
package gitops

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// git runs one git subcommand in dir and returns its trimmed stdout. Stderr
// is folded into the error.
func git(ctx context.Context, dir string, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %s: %w", args[0], strings.TrimSpace(stderr.String()), err)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Init creates an empty repository at dir.
func Init(ctx context.Context, dir string) error {
	_, err := git(ctx, dir, "init", "--quiet")
	return err
}

// HasChanges reports whether the work tree has anything to commit.
func HasChanges(ctx context.Context, dir string) (bool, error) {
	out, err := git(ctx, dir, "status", "--porcelain")
	return out != "", err
}

// CommitAll stages everything and commits it as authorName. It returns the
// short hash, or "" when the tree was clean.
func CommitAll(ctx context.Context, dir, message, authorName, authorEmail string) (string, error) {
	if dirty, err := HasChanges(ctx, dir); err != nil || !dirty {
		return "", err
	}
	if _, err := git(ctx, dir, "add", "--all"); err != nil {
		return "", err
	}
	// -c sets the committer so commits work without a global git identity.
	if _, err := git(ctx, dir,
		"-c", "user.name="+authorName,
		"-c", "user.email="+authorEmail,
		"commit", "--quiet", "--message", message); err != nil {
		return "", err
	}
	return git(ctx, dir, "rev-parse", "--short", "HEAD")
}

// IsRepo reports whether dir is the root of a git repository.
func IsRepo(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil && info.IsDir()
}
