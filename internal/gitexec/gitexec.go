// Package gitexec wraps `git` subprocess invocations for the worktree sync
// engine, grounded on vjache-cie's pkg/tools.GitExecutor (repo-root
// discovery via `git rev-parse --show-toplevel`, `exec.CommandContext` with
// separate stdout/stderr buffers, stderr surfaced in the returned error).
package gitexec

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
)

// Runner executes git commands against a fixed working directory. Separate
// instances point at the main worktree and at the `.gitgov-worktree/`
// worktree, since push/pull/resolve operate inside the latter (§4.5).
type Runner interface {
	Run(ctx context.Context, args ...string) (string, error)
	Dir() string
}

// Executor is the default Runner, invoking the `git` binary on PATH.
type Executor struct {
	dir string
}

// New builds an Executor rooted at dir (an absolute path to either the main
// working tree or a worktree directory).
func New(dir string) *Executor {
	return &Executor{dir: dir}
}

// Dir returns the directory commands are run in.
func (e *Executor) Dir() string {
	return e.dir
}

// Run executes `git <args...>` with e.dir as the working directory,
// returning stdout exactly as git printed it (not trimmed; callers trim
// where they need to). Failures carry stderr in the error message
// (§7 "errors should be actionable").
func (e *Executor) Run(ctx context.Context, args ...string) (string, error) {
	if len(args) == 0 {
		return "", errors.New("no git command specified")
	}

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = e.dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", errors.Wrap(ctx.Err(), "git command timed out or canceled")
		}
		stderrStr := strings.TrimSpace(stderr.String())
		if stderrStr != "" {
			return "", errors.Errorf("git %s failed: %s", args[0], stderrStr)
		}
		return "", errors.Wrapf(err, "git %s failed", args[0])
	}

	return stdout.String(), nil
}

// RepoRoot discovers the top-level directory of the git repository
// containing startPath (vjache-cie's NewGitExecutor discovery step).
func RepoRoot(ctx context.Context, startPath string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--show-toplevel")
	cmd.Dir = startPath

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		stderrStr := strings.TrimSpace(stderr.String())
		if stderrStr != "" {
			return "", errors.Errorf("not a git repository: %s", stderrStr)
		}
		return "", errors.Wrap(err, "git not found or not installed")
	}

	root := strings.TrimSpace(stdout.String())
	if root == "" {
		return "", errors.New("could not determine git repository root")
	}
	return root, nil
}

var _ Runner = (*Executor)(nil)
