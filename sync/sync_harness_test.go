package sync

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/gitgov-dev/gitgov-core/internal/gitexec"
	"github.com/stretchr/testify/require"
)

// newBareRemote creates an empty bare repository standing in for "origin".
func newBareRemote(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cmd := exec.Command("git", "init", "--bare", "-q", dir)
	require.NoError(t, cmd.Run())
	return dir
}

// newSyncRepo creates a main working tree wired to remoteDir as "origin",
// with an initial commit on "main" so the repository has a valid HEAD, and
// returns an Engine whose worktree lives under ".gitgov-worktree" inside it.
func newSyncRepo(t *testing.T, remoteDir string, identity IdentityResolver) (*Engine, string) {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) string {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		out, err := cmd.Output()
		require.NoError(t, err)
		return string(out)
	}
	run("init", "-q", "-b", "main")
	run("config", "user.email", "test@gitgov.dev")
	run("config", "user.name", "gitgov-test")
	run("remote", "add", "origin", remoteDir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("gitgov\n"), 0o644))
	run("add", "README.md")
	run("commit", "-q", "-m", "initial commit")

	worktreeDir := filepath.Join(dir, ".gitgov-worktree")
	engine := New(Config{
		Runner:      gitexec.New(dir),
		WorktreeDir: worktreeDir,
		Branch:      "gitgov-state",
		Remote:      "origin",
		Identity:    identity,
	})
	return engine, worktreeDir
}

func writeGitgovFile(t *testing.T, worktreeDir, relPath, content string) {
	t.Helper()
	full := filepath.Join(worktreeDir, ".gitgov", relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}
