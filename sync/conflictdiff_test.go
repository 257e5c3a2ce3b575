package sync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetConflictDiffListsConflictedFile(t *testing.T) {
	remote := newBareRemote(t)
	ctx := context.Background()

	engineA, _, conflictPath := triggerConflict(t, ctx, remote)

	result, err := engineA.GetConflictDiff(ctx)
	require.NoError(t, err)
	require.Len(t, result.Files, 1)
	assert.Equal(t, conflictPath, result.Files[0].FilePath)
	assert.Contains(t, result.Files[0].LocalContent, "from-b")
	assert.Contains(t, result.Files[0].RemoteContent, "from-a")
}

func TestParseConflictMarkersSplitsLocalBaseRemote(t *testing.T) {
	content := "<<<<<<< HEAD\n" +
		"local value\n" +
		"||||||| base\n" +
		"base value\n" +
		"=======\n" +
		"remote value\n" +
		">>>>>>> origin/gitgov-state\n"

	diff := parseConflictMarkers(content)
	assert.Equal(t, "local value\n", diff.LocalContent)
	assert.Equal(t, "remote value\n", diff.RemoteContent)
	require.NotNil(t, diff.BaseContent)
	assert.Equal(t, "base value\n", *diff.BaseContent)
}

func TestParseConflictMarkersWithoutBaseSection(t *testing.T) {
	content := "<<<<<<< HEAD\n" +
		"local value\n" +
		"=======\n" +
		"remote value\n" +
		">>>>>>> origin/gitgov-state\n"

	diff := parseConflictMarkers(content)
	assert.Equal(t, "local value\n", diff.LocalContent)
	assert.Equal(t, "remote value\n", diff.RemoteContent)
	assert.Nil(t, diff.BaseContent)
}

func TestHasConflictMarkersDetectsUnresolvedContent(t *testing.T) {
	assert.True(t, hasConflictMarkers("<<<<<<< HEAD\nx\n=======\ny\n>>>>>>> theirs\n"))
	assert.False(t, hasConflictMarkers(`{"id":"clean"}`))
}
