package sync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushStateLifecycle(t *testing.T) {
	remote := newBareRemote(t)
	engine, worktreeDir := newSyncRepo(t, remote, func() string { return "actor-1" })
	ctx := context.Background()

	t.Run("initializes state branch on first push with no files", func(t *testing.T) {
		result, err := engine.PushState(ctx, PushOptions{ActorID: "actor-1"})
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.False(t, result.ConflictDetected)
	})

	t.Run("syncs a newly created record file", func(t *testing.T) {
		writeGitgovFile(t, worktreeDir, "tasks/1700000000-task-a.json", `{"id":"1700000000-task-a"}`)

		result, err := engine.PushState(ctx, PushOptions{ActorID: "actor-1"})
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, 1, result.FilesSynced)
		require.NotNil(t, result.CommitHash)
		assert.NotEmpty(t, *result.CommitHash)
	})

	t.Run("is a no-op when the worktree has no changes", func(t *testing.T) {
		result, err := engine.PushState(ctx, PushOptions{ActorID: "actor-1"})
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, 0, result.FilesSynced)
		assert.Nil(t, result.CommitHash)
	})

	t.Run("rejects a mismatched actor identity", func(t *testing.T) {
		_, err := engine.PushState(ctx, PushOptions{ActorID: "someone-else"})
		assert.Error(t, err)
	})

	t.Run("dry run previews without mutating state", func(t *testing.T) {
		writeGitgovFile(t, worktreeDir, "tasks/1700000001-task-b.json", `{"id":"1700000001-task-b"}`)

		result, err := engine.PushState(ctx, PushOptions{ActorID: "actor-1", DryRun: true})
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, 1, result.FilesSynced)
		assert.Nil(t, result.CommitHash)

		status, err := engine.worktreeRunner().Run(ctx, "status", "--porcelain")
		require.NoError(t, err)
		assert.NotEmpty(t, status, "dry run must not stage or commit")
	})
}

type erroringLinter struct {
	errorCount int
}

func (l erroringLinter) Lint(context.Context) (*LintReport, error) {
	return &LintReport{ErrorCount: l.errorCount, Messages: []string{"task missing required field"}}, nil
}

func TestPushStateFailsOnLintErrors(t *testing.T) {
	remote := newBareRemote(t)
	engine, _ := newSyncRepo(t, remote, func() string { return "actor-1" })
	engine.linter = erroringLinter{errorCount: 2}

	result, err := engine.PushState(context.Background(), PushOptions{ActorID: "actor-1"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "2 error(s)")
}
