package sync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditStateReportsCleanHistory(t *testing.T) {
	remote := newBareRemote(t)
	ctx := context.Background()

	engine, worktreeDir := newSyncRepo(t, remote, func() string { return "actor-a" })
	writeGitgovFile(t, worktreeDir, "tasks/1700000000-task-a.json", `{"id":"1700000000-task-a"}`)
	_, err := engine.PushState(ctx, PushOptions{ActorID: "actor-a"})
	require.NoError(t, err)

	result, err := engine.AuditState(ctx, AuditOptions{})
	require.NoError(t, err)
	assert.True(t, result.Passed)
	assert.Zero(t, result.RebaseCommits)
	assert.Zero(t, result.ResolutionCommits)
	assert.Empty(t, result.IntegrityViolations)
}

func TestAuditStateVerifyExpectedFilesFlagsMissingEntries(t *testing.T) {
	remote := newBareRemote(t)
	ctx := context.Background()

	engine, worktreeDir := newSyncRepo(t, remote, func() string { return "actor-a" })
	writeGitgovFile(t, worktreeDir, "tasks/1700000000-task-a.json", `{"id":"1700000000-task-a"}`)
	_, err := engine.PushState(ctx, PushOptions{ActorID: "actor-a"})
	require.NoError(t, err)

	result, err := engine.AuditState(ctx, AuditOptions{VerifyExpectedFiles: true})
	require.NoError(t, err)
	assert.False(t, result.Passed)

	var details []string
	for _, v := range result.IntegrityViolations {
		details = append(details, v.Detail)
	}
	assert.Contains(t, details, "missing expected entry: cycles/")
}

func TestAuditStateDetectsOrphanedRebaseCommit(t *testing.T) {
	remote := newBareRemote(t)
	ctx := context.Background()

	engine, worktreeDir := newSyncRepo(t, remote, func() string { return "actor-a" })
	writeGitgovFile(t, worktreeDir, "tasks/1700000000-task-a.json", `{"id":"1700000000-task-a"}`)
	_, err := engine.PushState(ctx, PushOptions{ActorID: "actor-a"})
	require.NoError(t, err)

	wt := engine.worktreeRunner()
	_, err = wt.Run(ctx, "commit", "--allow-empty", "-m", "gitgov: rebase in progress")
	require.NoError(t, err)
	_, err = wt.Run(ctx, "push", "origin", "gitgov-state")
	require.NoError(t, err)

	result, err := engine.AuditState(ctx, AuditOptions{})
	require.NoError(t, err)
	assert.False(t, result.Passed)
	assert.Equal(t, 1, result.RebaseCommits)
	require.Len(t, result.IntegrityViolations, 1)
	assert.Contains(t, result.IntegrityViolations[0].Detail, "orphaned rebase commit")
	assert.NotEmpty(t, result.IntegrityViolations[0].RebaseCommitHash)
}

func TestAuditStateRebaseFollowedByResolveIsClean(t *testing.T) {
	remote := newBareRemote(t)
	ctx := context.Background()

	engine, _ := newSyncRepo(t, remote, func() string { return "actor-a" })
	_, err := engine.PushState(ctx, PushOptions{ActorID: "actor-a"})
	require.NoError(t, err)
	wt := engine.worktreeRunner()

	_, err = wt.Run(ctx, "commit", "--allow-empty", "-m", "gitgov: rebase in progress")
	require.NoError(t, err)
	_, err = wt.Run(ctx, "commit", "--allow-empty", "-m", "gitgov: resolve conflict [actor:actor-a] reason: merged")
	require.NoError(t, err)
	_, err = wt.Run(ctx, "push", "origin", "gitgov-state")
	require.NoError(t, err)

	result, err := engine.AuditState(ctx, AuditOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.RebaseCommits)
	assert.Equal(t, 1, result.ResolutionCommits)
	assert.Empty(t, result.IntegrityViolations)
}

func TestAuditStateSurfacesLintFailures(t *testing.T) {
	remote := newBareRemote(t)
	ctx := context.Background()

	engine, _ := newSyncRepo(t, remote, func() string { return "actor-a" })
	_, err := engine.PushState(ctx, PushOptions{ActorID: "actor-a"})
	require.NoError(t, err)

	engine.linter = erroringLinter{errorCount: 1}

	result, err := engine.AuditState(ctx, AuditOptions{WithLint: true})
	require.NoError(t, err)
	assert.False(t, result.Passed)

	var details []string
	for _, v := range result.IntegrityViolations {
		details = append(details, v.Detail)
	}
	assert.Contains(t, details, "task missing required field")
}
