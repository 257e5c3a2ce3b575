package fsstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitgov-dev/gitgov-core/record"
)

func mustWrapper(t *testing.T) *record.Wrapper {
	t.Helper()
	task := record.TaskRecord{
		ID:          "1700000000-task-demo",
		Title:       "Demo",
		Status:      "draft",
		Priority:    "medium",
		Description: "d",
		Tags:        []string{},
		References:  []string{},
		CycleIDs:    []string{},
	}
	w, err := record.New(record.TypeTask, task)
	require.NoError(t, err)
	return w
}

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := New(t.TempDir(), nil)
	require.NoError(t, err)

	w := mustWrapper(t)
	_, err = s.Put(ctx, "1700000000-task-demo", w)
	require.NoError(t, err)

	got, err := s.Get(ctx, "1700000000-task-demo")
	require.NoError(t, err)
	assert.Equal(t, w.Header.PayloadChecksum, got.Header.PayloadChecksum)

	canon, err := record.Canonicalize(got.Payload)
	require.NoError(t, err)
	assert.Equal(t, record.Checksum(canon), got.Header.PayloadChecksum)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	s, err := New(t.TempDir(), nil)
	require.NoError(t, err)

	_, err = s.Get(ctx, "1700000000-task-missing")
	require.Error(t, err)
	assert.True(t, record.IsKind(err, record.ErrRecordNotFound))
}

func TestListAndDelete(t *testing.T) {
	ctx := context.Background()
	s, err := New(t.TempDir(), nil)
	require.NoError(t, err)

	w := mustWrapper(t)
	_, err = s.Put(ctx, "1700000000-task-demo", w)
	require.NoError(t, err)

	ids, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"1700000000-task-demo"}, ids)

	require.NoError(t, s.Delete(ctx, "1700000000-task-demo"))

	ids, err = s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestActorIDEncodingRoundTrips(t *testing.T) {
	ctx := context.Background()
	s, err := New(t.TempDir(), nil)
	require.NoError(t, err)

	actor := record.ActorRecord{ID: "human:alice", Type: "human", DisplayName: "Alice", PublicKey: "pk", Roles: []string{"owner"}}
	w, err := record.New(record.TypeActor, actor)
	require.NoError(t, err)

	_, err = s.Put(ctx, "human:alice", w)
	require.NoError(t, err)

	ids, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"human:alice"}, ids)

	exists, err := s.Exists(ctx, "human:alice")
	require.NoError(t, err)
	assert.True(t, exists)
}
