package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitgov-dev/gitgov-core/events"
	"github.com/gitgov-dev/gitgov-core/record"
	"github.com/gitgov-dev/gitgov-core/store"
	"github.com/gitgov-dev/gitgov-core/store/fsstore"
)

func newStores(t *testing.T) (agents, executions store.Store) {
	t.Helper()
	a, err := fsstore.New(t.TempDir(), nil)
	require.NoError(t, err)
	e, err := fsstore.New(t.TempDir(), nil)
	require.NoError(t, err)
	return a, e
}

func putAgent(t *testing.T, s store.Store, a record.AgentRecord) {
	t.Helper()
	w, err := record.New(record.TypeAgent, a)
	require.NoError(t, err)
	_, err = s.Put(context.Background(), a.ID, w)
	require.NoError(t, err)
}

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestRunReturnsAgentNotFoundWhenMissing(t *testing.T) {
	agents, executions := newStores(t)
	r := New(Config{Agents: agents, Executions: executions})

	_, err := r.Run(context.Background(), Input{AgentID: "1700000000-agent-missing", TaskID: "1700000000-task-a"})
	require.Error(t, err)
	assert.True(t, record.IsKind(err, record.ErrAgentNotFound))
}

func TestRunDispatchesToRegisteredRuntimeHandlerAndRecordsCompletion(t *testing.T) {
	agents, executions := newStores(t)
	putAgent(t, agents, record.AgentRecord{
		ID:     "1700000000-agent-a",
		Engine: record.AgentEngine{Type: "local", Runtime: "echo"},
	})

	registry := NewRuntimeHandlerRegistry()
	var seenCtx ExecutionContext
	registry.Register("echo", func(_ context.Context, execCtx ExecutionContext) (any, error) {
		seenCtx = execCtx
		return map[string]any{"echoed": execCtx.Input["msg"]}, nil
	})

	emitter := events.NewEmitter()
	var topics []string
	emitter.On(events.TopicAgentStarted, func(e events.Event) { topics = append(topics, e.Topic) })
	emitter.On(events.TopicAgentCompleted, func(e events.Event) { topics = append(topics, e.Topic) })

	r := New(Config{
		Agents:     agents,
		Executions: executions,
		Registry:   registry,
		Events:     emitter,
		Now:        fixedNow(time.Unix(1700000000, 0)),
	})

	resp, err := r.Run(context.Background(), Input{
		AgentID: "1700000000-agent-a",
		TaskID:  "1700000000-task-a",
		Input:   map[string]any{"msg": "hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, resp.Status)
	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, "1700000000-agent-a", seenCtx.AgentID)
	assert.Equal(t, "1700000000-agent-a", seenCtx.ActorID)
	assert.Equal(t, []string{events.TopicAgentStarted, events.TopicAgentCompleted}, topics)

	require.NotEmpty(t, resp.ExecutionRecordID)
	w, err := executions.Get(context.Background(), resp.ExecutionRecordID)
	require.NoError(t, err)
	var exec record.ExecutionRecord
	require.NoError(t, record.Decode(w, &exec))
	assert.Equal(t, "completion", exec.Type)
}

func TestRunUsesExplicitActorIDWhenProvided(t *testing.T) {
	agents, executions := newStores(t)
	putAgent(t, agents, record.AgentRecord{
		ID:     "1700000000-agent-a",
		Engine: record.AgentEngine{Type: "local", Runtime: "echo"},
	})

	registry := NewRuntimeHandlerRegistry()
	var seenCtx ExecutionContext
	registry.Register("echo", func(_ context.Context, execCtx ExecutionContext) (any, error) {
		seenCtx = execCtx
		return nil, nil
	})

	r := New(Config{Agents: agents, Executions: executions, Registry: registry})

	_, err := r.Run(context.Background(), Input{
		AgentID: "1700000000-agent-a",
		TaskID:  "1700000000-task-a",
		ActorID: "human:alice",
	})
	require.NoError(t, err)
	assert.Equal(t, "human:alice", seenCtx.ActorID)
}

// AgentEngine.Type is constrained to local|api|mcp by the record schema, so
// an unsupported type can never reach Run through a persisted AgentRecord;
// the default branch in dispatch is exercised directly instead.
func TestDispatchReturnsUnsupportedEngineTypeForUnknownType(t *testing.T) {
	agents, executions := newStores(t)
	r := New(Config{Agents: agents, Executions: executions})

	_, err := r.dispatch(context.Background(), record.AgentEngine{Type: "quantum"}, ExecutionContext{})
	require.Error(t, err)
	ke, ok := err.(*record.KindError)
	require.True(t, ok)
	assert.Equal(t, record.ErrUnsupportedEngineType, ke.Kind)
}

func TestRunFoldsHandlerErrorIntoErrorStatus(t *testing.T) {
	agents, executions := newStores(t)
	putAgent(t, agents, record.AgentRecord{
		ID:     "1700000000-agent-a",
		Engine: record.AgentEngine{Type: "local", Runtime: "boom"},
	})

	registry := NewRuntimeHandlerRegistry()
	registry.Register("boom", func(context.Context, ExecutionContext) (any, error) {
		return nil, assert.AnError
	})

	r := New(Config{Agents: agents, Executions: executions, Registry: registry})

	resp, err := r.Run(context.Background(), Input{AgentID: "1700000000-agent-a", TaskID: "1700000000-task-a"})
	require.NoError(t, err)
	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, assert.AnError.Error(), resp.Error)
}
