package sync

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/gitgov-dev/gitgov-core/internal/gitexec"
	"github.com/gitgov-dev/gitgov-core/record"
)

// emptyTreeSHA is the well-known git empty-tree object id: hashing a
// zero-length blob as type "tree" always yields this value, independent of
// repository, which is what makes `git hash-object -t tree /dev/null` a
// portable way to seed an orphan branch (§4.5 "Worktree lifecycle" step 3).
const emptyTreeSHA = "4b825dc642cb6eb9a060e54bf8d69288fbee4904"

// isRebaseInProgress reports whether the worktree at worktreeDir is
// currently mid-rebase, by resolving its `.git` file to the real gitdir and
// checking for `rebase-merge/` or `rebase-apply/` (§4.5 "Detecting an
// in-progress rebase").
func isRebaseInProgress(worktreeDir string) bool {
	gitdir, err := resolveWorktreeGitdir(worktreeDir)
	if err != nil {
		return false
	}
	if _, err := os.Stat(filepath.Join(gitdir, "rebase-merge")); err == nil {
		return true
	}
	if _, err := os.Stat(filepath.Join(gitdir, "rebase-apply")); err == nil {
		return true
	}
	return false
}

// resolveWorktreeGitdir reads the `.git` file a linked worktree carries
// (`gitdir: <path>`) and returns the resolved absolute gitdir path.
func resolveWorktreeGitdir(worktreeDir string) (string, error) {
	raw, err := os.ReadFile(filepath.Join(worktreeDir, ".git"))
	if err != nil {
		return "", err
	}
	line := strings.TrimSpace(string(raw))
	const prefix = "gitdir:"
	if !strings.HasPrefix(line, prefix) {
		return "", record.NewKindError(record.ErrWorktreeSetupError, "malformed .git pointer at %q", worktreeDir)
	}
	gitdir := strings.TrimSpace(strings.TrimPrefix(line, prefix))
	if !filepath.IsAbs(gitdir) {
		gitdir = filepath.Join(worktreeDir, gitdir)
	}
	return gitdir, nil
}

// worktreeIsHealthy checks the three conditions of §4.5 step 1: the `.git`
// pointer resolves, and HEAD resolves to branch.
func (e *Engine) worktreeIsHealthy(ctx context.Context, branch string) bool {
	if _, err := os.Stat(filepath.Join(e.worktreeDir, ".git")); err != nil {
		return false
	}
	if _, err := resolveWorktreeGitdir(e.worktreeDir); err != nil {
		return false
	}
	head, err := e.worktreeRunner().Run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return false
	}
	return strings.TrimSpace(head) == branch
}

func (e *Engine) worktreeRunner() gitexec.Runner {
	return gitexec.New(e.worktreeDir)
}

// ensureBranchExists implements §4.5 step 3: look locally, then at
// origin/<branch>, otherwise initialize an orphan branch via plumbing.
func (e *Engine) ensureBranchExists(ctx context.Context) error {
	if _, err := e.runner.Run(ctx, "rev-parse", "--verify", "refs/heads/"+e.branch); err == nil {
		return nil
	}

	if _, err := e.runner.Run(ctx, "rev-parse", "--verify", "refs/remotes/"+e.remote+"/"+e.branch); err == nil {
		_, err := e.runner.Run(ctx, "branch", e.branch, e.remote+"/"+e.branch)
		if err != nil {
			return record.NewKindError(record.ErrStateBranchSetupError, "failed to create local tracking branch: %v", err)
		}
		return nil
	}

	if _, err := e.runner.Run(ctx, "hash-object", "-t", "tree", os.DevNull); err != nil {
		return record.NewKindError(record.ErrStateBranchSetupError, "failed to hash empty tree: %v", err)
	}
	commitSHA, err := e.runner.Run(ctx, "commit-tree", emptyTreeSHA, "-m", "gitgov: initialize state branch")
	if err != nil {
		return record.NewKindError(record.ErrStateBranchSetupError, "failed to create orphan commit: %v", err)
	}
	commitSHA = strings.TrimSpace(commitSHA)
	if _, err := e.runner.Run(ctx, "update-ref", "refs/heads/"+e.branch, commitSHA); err != nil {
		return record.NewKindError(record.ErrStateBranchSetupError, "failed to set state branch ref: %v", err)
	}
	return nil
}

// removeLegacyGitignore deletes and commits away a `.gitignore` left over
// on the state branch by an older version of the engine (§4.5 step 3 "No
// .gitignore is committed to the state branch").
func (e *Engine) removeLegacyGitignore(ctx context.Context) error {
	path := filepath.Join(e.worktreeDir, ".gitignore")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if _, err := e.worktreeRunner().Run(ctx, "rm", "-f", ".gitignore"); err != nil {
		return err
	}
	_, err := e.worktreeRunner().Run(ctx, "commit", "-m", "gitgov: remove legacy .gitignore from state branch")
	return err
}

// ensureWorktree implements §4.5's full worktree lifecycle.
func (e *Engine) ensureWorktree(ctx context.Context) error {
	if _, err := os.Stat(e.worktreeDir); err == nil {
		if e.worktreeIsHealthy(ctx, e.branch) {
			return nil
		}
		if err := e.removeWorktree(ctx); err != nil {
			return err
		}
	}

	if err := e.ensureBranchExists(ctx); err != nil {
		return err
	}

	if _, err := e.runner.Run(ctx, "worktree", "add", e.worktreeDir, e.branch); err != nil {
		return record.NewKindError(record.ErrWorktreeSetupError, "failed to create worktree at %q: %v", e.worktreeDir, err)
	}

	if err := e.removeLegacyGitignore(ctx); err != nil {
		e.logger.LogWarn("sync: failed to remove legacy .gitignore", "error", err.Error())
	}
	return nil
}

// removeWorktree implements §4.5 step 2's removal fallback: `worktree
// remove --force`, falling back to recursive delete + `worktree prune`.
func (e *Engine) removeWorktree(ctx context.Context) error {
	if _, err := e.runner.Run(ctx, "worktree", "remove", "--force", e.worktreeDir); err == nil {
		return nil
	}
	if err := os.RemoveAll(e.worktreeDir); err != nil {
		return record.NewKindError(record.ErrWorktreeSetupError, "failed to remove corrupted worktree at %q: %v", e.worktreeDir, err)
	}
	_, _ = e.runner.Run(ctx, "worktree", "prune")
	return nil
}
