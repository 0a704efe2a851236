package gitinfo

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %v: %s", args, out)
	}
	run("init")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "test")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file.txt"), []byte("v1\n"), 0o644))
	run("add", "file.txt")
	run("commit", "-m", "initial")
	return dir
}

func TestHash(t *testing.T) {
	dir := initRepo(t)
	hash, err := Hash(dir)
	require.NoError(t, err)
	assert.Len(t, hash, 40)
}

func TestIsCommitted(t *testing.T) {
	dir := initRepo(t)

	committed, err := IsCommitted(dir)
	require.NoError(t, err)
	assert.True(t, committed)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "file.txt"), []byte("v2\n"), 0o644))

	committed, err = IsCommitted(dir)
	require.NoError(t, err)
	assert.False(t, committed)
}

func TestRequireCommitted(t *testing.T) {
	dir := initRepo(t)
	assert.NoError(t, RequireCommitted(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "file.txt"), []byte("v2\n"), 0o644))
	assert.ErrorIs(t, RequireCommitted(dir), ErrUncommitted)
}

func TestCapture(t *testing.T) {
	dir := initRepo(t)
	hash := Capture(dir)
	assert.Len(t, hash, 40)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "file.txt"), []byte("v2\n"), 0o644))
	assert.Empty(t, Capture(dir), "dirty worktree yields no provenance")
}

func TestCapture_NotARepo(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	assert.Empty(t, Capture(t.TempDir()))
}
