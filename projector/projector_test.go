package projector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitgov-dev/gitgov-core/record"
	"github.com/gitgov-dev/gitgov-core/store"
	"github.com/gitgov-dev/gitgov-core/store/fsstore"
)

func putTask(t *testing.T, s store.Store, task record.TaskRecord) {
	t.Helper()
	w, err := record.New(record.TypeTask, task)
	require.NoError(t, err)
	_, err = s.Put(context.Background(), task.ID, w)
	require.NoError(t, err)
}

func putFeedback(t *testing.T, s store.Store, fb record.FeedbackRecord) {
	t.Helper()
	w, err := record.New(record.TypeFeedback, fb)
	require.NoError(t, err)
	_, err = s.Put(context.Background(), fb.ID, w)
	require.NoError(t, err)
}

func putExecution(t *testing.T, s store.Store, ex record.ExecutionRecord) {
	t.Helper()
	w, err := record.New(record.TypeExecution, ex)
	require.NoError(t, err)
	_, err = s.Put(context.Background(), ex.ID, w)
	require.NoError(t, err)
}

func TestComputeProjectionEnrichesTasksAndDerivedStates(t *testing.T) {
	taskStore, err := fsstore.New(t.TempDir(), nil)
	require.NoError(t, err)
	feedbackStore, err := fsstore.New(t.TempDir(), nil)
	require.NoError(t, err)
	executionStore, err := fsstore.New(t.TempDir(), nil)
	require.NoError(t, err)

	putTask(t, taskStore, record.TaskRecord{
		ID: "1700000000-task-a", Title: "A", Status: "blocked", Priority: "medium",
		Description: "d", Tags: []string{}, References: []string{}, CycleIDs: []string{},
	})
	putTask(t, taskStore, record.TaskRecord{
		ID: "1700000000-task-b", Title: "B", Status: "active", Priority: "medium",
		Description: "d", Tags: []string{}, References: []string{}, CycleIDs: []string{},
	})
	putFeedback(t, feedbackStore, record.FeedbackRecord{
		ID: "1700000001-feedback-a", EntityType: "task", EntityID: "1700000000-task-a",
		Type: "blocking", Status: "open", Content: "c",
	})
	putExecution(t, executionStore, record.ExecutionRecord{
		ID: "1700000002-exec-a", TaskID: "1700000000-task-b", Type: "progress",
		Title: "x", Result: "did something useful",
	})

	p := New(Stores{
		Tasks:      taskStore,
		Feedbacks:  feedbackStore,
		Executions: executionStore,
	}, nil, func() time.Time { return time.Unix(1700100000, 0).UTC() })

	data, err := p.ComputeProjection(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "ok", data.Metadata.IntegrityStatus)
	assert.Equal(t, 2, data.Metadata.RecordCounts["task"])
	assert.Len(t, data.Tasks, 2)

	byID := map[string]EnrichedTask{}
	for _, tk := range data.Tasks {
		byID[tk.ID] = tk
	}
	assert.True(t, byID["1700000000-task-a"].IsAtRisk)
	assert.True(t, byID["1700000000-task-a"].IsBlockedByDependency)
	assert.Equal(t, 1, byID["1700000000-task-b"].ExecutionCount)

	assert.ElementsMatch(t, []string{"1700000000-task-a"}, data.DerivedStates["blocked"])
	assert.ElementsMatch(t, []string{"1700000000-task-b"}, data.DerivedStates["active"])
}

func TestComputeProjectionOnEmptyStoresIsEmpty(t *testing.T) {
	taskStore, err := fsstore.New(t.TempDir(), nil)
	require.NoError(t, err)

	p := New(Stores{Tasks: taskStore}, nil, nil)
	data, err := p.ComputeProjection(context.Background())
	require.NoError(t, err)

	assert.Empty(t, data.Tasks)
	assert.Equal(t, "ok", data.Metadata.IntegrityStatus)
	assert.Empty(t, data.ActivityHistory)
}
