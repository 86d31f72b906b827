package gitops

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
}

func TestInitAndIsRepo(t *testing.T) {
	requireGit(t)
	dir := t.TempDir()
	assert.False(t, IsRepo(dir), "empty dir should not be a repo")

	require.NoError(t, Init(context.Background(), dir))
	assert.True(t, IsRepo(dir), "initialized dir should be a repo")
}

func TestCommitAll(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, Init(ctx, dir))

	hash, err := CommitAll(ctx, dir, "nothing yet", "Fluxo", "books@fluxo.dev")
	require.NoError(t, err)
	assert.Empty(t, hash, "clean tree makes no commit")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "accounts.csv"), []byte("id,name\n"), 0o644))
	changed, err := HasChanges(ctx, dir)
	require.NoError(t, err)
	assert.True(t, changed)

	hash, err = CommitAll(ctx, dir, "account add 1020", "Fluxo", "books@fluxo.dev")
	require.NoError(t, err)
	assert.NotEmpty(t, hash)

	log := exec.Command("git", "log", "--format=%s|%an <%ae>", "-1")
	log.Dir = dir
	out, err := log.Output()
	require.NoError(t, err)
	assert.Contains(t, string(out), "account add 1020|Fluxo <books@fluxo.dev>")

	changed, err = HasChanges(ctx, dir)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestNotARepo(t *testing.T) {
	requireGit(t)
	dir := t.TempDir()

	_, err := HasChanges(context.Background(), dir)
	assert.ErrorContains(t, err, "git status")

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".git"), []byte("gitdir: elsewhere\n"), 0o644))
	assert.False(t, IsRepo(dir), "a .git file is not a repository root")
}
