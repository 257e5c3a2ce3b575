// Package agent implements the agent runner (§4.9): given an agentId and
// taskId, it loads the AgentRecord, dispatches to the configured engine
// (local, api, or mcp), records an ExecutionRecord describing the result,
// and emits agent:started/agent:completed/agent:error through the shared
// events.Emitter. Grounded on the teacher's Cursor agent lifecycle
// (server/cursor.Client.LaunchAgent, server/handlers.go's launch-then-poll
// flow), generalized from one hosted backend to a pluggable engine.
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gitgov-dev/gitgov-core/events"
	"github.com/gitgov-dev/gitgov-core/logging"
	"github.com/gitgov-dev/gitgov-core/record"
	"github.com/gitgov-dev/gitgov-core/store"
)

// Status is the terminal state of an AgentResponse (§4.9 step 4).
type Status string

const (
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// ExecutionContext is handed to every engine backend (§4.9 step 2): "an
// execution context {agentId, actorId: actorId ?? agentId, taskId, runId:
// UUIDv4, input}".
type ExecutionContext struct {
	AgentID string         `json:"agentId"`
	ActorID string         `json:"actorId"`
	TaskID  string         `json:"taskId"`
	RunID   string         `json:"runId"`
	Input   map[string]any `json:"input,omitempty"`
}

// Response is what Run always returns once the agent record has loaded
// (§4.9 step 4): "never throws after the agent record is loaded; failures
// are signaled in status".
type Response struct {
	RunID             string `json:"runId"`
	AgentID           string `json:"agentId"`
	Status            Status `json:"status"`
	ExecutionRecordID string `json:"executionRecordId"`
	Output            any    `json:"output,omitempty"`
	Error             string `json:"error,omitempty"`
	StartedAt         int64  `json:"startedAt"`
	CompletedAt       int64  `json:"completedAt"`
	DurationMs        int64  `json:"durationMs"`
}

// Input is the Run request (§4.9): "{agentId, taskId, actorId?, input?}".
type Input struct {
	AgentID string
	TaskID  string
	ActorID string
	Input   map[string]any
}

// Runner dispatches agent runs per §4.9. The zero value is not usable;
// build one with New.
type Runner struct {
	agents     store.Store
	executions store.Store
	registry   *RuntimeHandlerRegistry
	loader     ModuleLoader
	identity   IdentityAdapter
	httpClient httpDoer
	events     *events.Emitter
	logger     logging.Logger
	now        func() time.Time
	newRunID   func() string
}

// Config configures a new Runner. Every field but Agents/Executions is
// optional; missing optional dependencies simply mean the corresponding
// engine type fails with MissingDependency/FunctionNotExported rather than
// succeeding, exactly per §4.9 step 2.
type Config struct {
	Agents     store.Store
	Executions store.Store
	Registry   *RuntimeHandlerRegistry
	Loader     ModuleLoader
	Identity   IdentityAdapter
	HTTPClient httpDoer
	Events     *events.Emitter
	Logger     logging.Logger
	Now        func() time.Time
}

// New builds a Runner from cfg.
func New(cfg Config) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop{}
	}
	emitter := cfg.Events
	if emitter == nil {
		emitter = events.NewEmitter()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	registry := cfg.Registry
	if registry == nil {
		registry = NewRuntimeHandlerRegistry()
	}
	client := cfg.HTTPClient
	if client == nil {
		client = defaultHTTPClient
	}
	return &Runner{
		agents:     cfg.Agents,
		executions: cfg.Executions,
		registry:   registry,
		loader:     cfg.Loader,
		identity:   cfg.Identity,
		httpClient: client,
		events:     emitter,
		logger:     logger,
		now:        now,
		newRunID:   uuid.NewString,
	}
}

// Run executes one agent run (§4.9). The returned error is non-nil only
// for the AgentNotFound case (step 1, before any ExecutionRecord exists);
// every other failure is folded into the returned Response's Status/Error
// fields per step 4.
func (r *Runner) Run(ctx context.Context, in Input) (*Response, error) {
	agentWrapper, err := r.agents.Get(ctx, in.AgentID)
	if err != nil {
		return nil, record.NewKindError(record.ErrAgentNotFound, "agent %q not found: %s", in.AgentID, err.Error())
	}
	var agentRecord record.AgentRecord
	if err := record.Decode(agentWrapper, &agentRecord); err != nil {
		return nil, record.NewKindError(record.ErrAgentNotFound, "agent %q record is malformed: %s", in.AgentID, err.Error())
	}

	actorID := in.ActorID
	if actorID == "" {
		actorID = in.AgentID
	}

	runID := r.newRunID()
	execCtx := ExecutionContext{
		AgentID: in.AgentID,
		ActorID: actorID,
		TaskID:  in.TaskID,
		RunID:   runID,
		Input:   in.Input,
	}

	startedAt := r.now()
	r.events.Emit(events.TopicAgentStarted, map[string]any{"runId": runID, "agentId": in.AgentID, "taskId": in.TaskID})

	output, dispatchErr := r.dispatch(ctx, agentRecord.Engine, execCtx)
	completedAt := r.now()

	resp := &Response{
		RunID:       runID,
		AgentID:     in.AgentID,
		StartedAt:   startedAt.UnixMilli(),
		CompletedAt: completedAt.UnixMilli(),
		DurationMs:  completedAt.Sub(startedAt).Milliseconds(),
	}

	execType := "completion"
	if dispatchErr != nil {
		resp.Status = StatusError
		resp.Error = dispatchErr.Error()
		execType = "blocker"
		r.logger.LogWarn("agent: run failed", "agentId", in.AgentID, "taskId", in.TaskID, "runId", runID, "error", dispatchErr.Error())
	} else {
		resp.Status = StatusCompleted
		resp.Output = output
	}

	result := fmt.Sprintf("Agent %s completed run %s successfully.", in.AgentID, runID)
	if dispatchErr != nil {
		result = fmt.Sprintf("Agent %s run %s failed: %s", in.AgentID, runID, dispatchErr.Error())
	}

	execRecord := record.ExecutionRecord{
		ID:     executionID(r.now, runID),
		TaskID: in.TaskID,
		Type:   execType,
		Title:  "Agent run " + runID,
		Result: result,
		Metadata: map[string]any{
			"agentId":    in.AgentID,
			"actorId":    actorID,
			"runId":      runID,
			"durationMs": resp.DurationMs,
		},
	}
	if dispatchErr != nil {
		execRecord.Notes = dispatchErr.Error()
	}

	execID, persistErr := r.persistExecution(ctx, execRecord)
	if persistErr != nil {
		r.logger.LogError("agent: failed to persist execution record", "agentId", in.AgentID, "runId", runID, "error", persistErr.Error())
	}
	resp.ExecutionRecordID = execID

	if dispatchErr != nil {
		r.events.Emit(events.TopicAgentError, map[string]any{"runId": runID, "agentId": in.AgentID, "error": dispatchErr.Error()})
	} else {
		r.events.Emit(events.TopicAgentCompleted, map[string]any{"runId": runID, "agentId": in.AgentID, "output": output})
	}

	return resp, nil
}

func (r *Runner) dispatch(ctx context.Context, engine record.AgentEngine, execCtx ExecutionContext) (any, error) {
	switch engine.Type {
	case "local":
		return r.dispatchLocal(ctx, engine, execCtx)
	case "api":
		return r.dispatchAPI(ctx, engine, execCtx)
	case "mcp":
		return r.dispatchMCP(ctx, engine, execCtx)
	default:
		return nil, record.NewKindError(record.ErrUnsupportedEngineType, "unsupported engine type %q", engine.Type)
	}
}

func (r *Runner) persistExecution(ctx context.Context, exec record.ExecutionRecord) (string, error) {
	w, err := record.New(record.TypeExecution, exec)
	if err != nil {
		return "", err
	}
	if _, err := r.executions.Put(ctx, exec.ID, w); err != nil {
		return "", err
	}
	return exec.ID, nil
}

// executionID builds a record ID matching the §3 shape
// `\d{10}-exec-[a-z0-9-]{1,50}`, deriving the slug from runID's first
// segment (a UUIDv4's leading hex group is already lowercase hex, which
// satisfies the slug character class).
func executionID(now func() time.Time, runID string) string {
	slug := strings.SplitN(runID, "-", 2)[0]
	if len(slug) > 50 {
		slug = slug[:50]
	}
	return fmt.Sprintf("%d-exec-%s", now().Unix(), slug)
}
