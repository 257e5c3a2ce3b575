package sync

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPullStateFetchesRemoteChanges(t *testing.T) {
	remote := newBareRemote(t)
	ctx := context.Background()

	publisher, publisherWorktree := newSyncRepo(t, remote, func() string { return "actor-a" })
	_, err := publisher.PushState(ctx, PushOptions{ActorID: "actor-a"})
	require.NoError(t, err)

	writeGitgovFile(t, publisherWorktree, "tasks/1700000000-task-a.json", `{"id":"1700000000-task-a"}`)
	_, err = publisher.PushState(ctx, PushOptions{ActorID: "actor-a"})
	require.NoError(t, err)

	subscriber, subscriberWorktree := newSyncRepo(t, remote, func() string { return "actor-b" })

	result, err := subscriber.PullState(ctx, PullOptions{ActorID: "actor-b"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.Updated)

	content, err := os.ReadFile(filepath.Join(subscriberWorktree, ".gitgov", "tasks", "1700000000-task-a.json"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "1700000000-task-a")
}

func TestPullStateIsNoopWhenUpToDate(t *testing.T) {
	remote := newBareRemote(t)
	ctx := context.Background()

	engine, _ := newSyncRepo(t, remote, func() string { return "actor-a" })
	_, err := engine.PushState(ctx, PushOptions{ActorID: "actor-a"})
	require.NoError(t, err)

	result, err := engine.PullState(ctx, PullOptions{ActorID: "actor-a"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, result.Updated)
}

func TestPullStateForceDiscardsLocalChanges(t *testing.T) {
	remote := newBareRemote(t)
	ctx := context.Background()

	engine, worktreeDir := newSyncRepo(t, remote, func() string { return "actor-a" })
	_, err := engine.PushState(ctx, PushOptions{ActorID: "actor-a"})
	require.NoError(t, err)

	writeGitgovFile(t, worktreeDir, "tasks/uncommitted.json", `{"id":"x"}`)

	result, err := engine.PullState(ctx, PullOptions{ActorID: "actor-a", Force: true})
	require.NoError(t, err)
	assert.True(t, result.Success)

	_, statErr := os.Stat(filepath.Join(worktreeDir, ".gitgov", "tasks", "uncommitted.json"))
	assert.Error(t, statErr, "force pull must discard the untracked local file")
}
