// Package projector composes the record store set and the metrics engine
// into a single denormalized snapshot (IndexData, §4.4), and persists that
// snapshot to one or more sinks. Grounded on the teacher's read-all +
// rebuild-view pattern in server/store/kvstore (the KV store's list-then-
// decode idiom), generalized from a single key space to the seven record
// directories (§6 "On-disk layout").
package projector

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gitgov-dev/gitgov-core/logging"
	"github.com/gitgov-dev/gitgov-core/metrics"
	"github.com/gitgov-dev/gitgov-core/record"
	"github.com/gitgov-dev/gitgov-core/store"
	"golang.org/x/sync/errgroup"
)

// Stores bundles the seven per-type record stores a projection reads from.
type Stores struct {
	Tasks       store.Store
	Cycles      store.Store
	Actors      store.Store
	Agents      store.Store
	Executions  store.Store
	Feedbacks   store.Store
	Changelogs  store.Store
}

// EnrichedTask is a TaskRecord plus the computed flags of §4.4 step 2.
type EnrichedTask struct {
	record.TaskRecord
	HealthScore            float64 `json:"healthScore"`
	IsStalled              bool    `json:"isStalled"`
	IsAtRisk               bool    `json:"isAtRisk"`
	NeedsClarification     bool    `json:"needsClarification"`
	IsBlockedByDependency  bool    `json:"isBlockedByDependency"`
	TimeInCurrentStage     float64 `json:"timeInCurrentStage"`
	ExecutionCount         int     `json:"executionCount"`
}

// ActivityEvent is one entry of IndexData.activityHistory (§4.4).
type ActivityEvent struct {
	Timestamp int64  `json:"timestamp"`
	Actor     string `json:"actor"`
	Kind      string `json:"kind"`
	EntityID  string `json:"entityId"`
}

// Metadata is IndexData.metadata (§4.4).
type Metadata struct {
	GeneratedAt     int64          `json:"generatedAt"`
	GenerationTime  int64          `json:"generationTimeMillis"`
	RecordCounts    map[string]int `json:"recordCounts"`
	IntegrityStatus string         `json:"integrityStatus"`
}

// IndexData is the full projection snapshot (§4.4).
type IndexData struct {
	Metadata        Metadata                 `json:"metadata"`
	Tasks           []EnrichedTask           `json:"tasks"`
	Cycles          []record.CycleRecord     `json:"cycles"`
	Actors          []record.ActorRecord     `json:"actors"`
	Feedback        []record.FeedbackRecord  `json:"feedback"`
	Executions      []record.ExecutionRecord `json:"executions"`
	Changelogs      []record.ChangelogRecord `json:"changelogs"`
	Agents          []record.AgentRecord     `json:"agents"`
	DerivedStates   map[string][]string      `json:"derivedStates"`
	ActivityHistory []ActivityEvent          `json:"activityHistory"`
}

// Sink persists and reconstructs an IndexData snapshot (§4.4 persist/read).
type Sink interface {
	Persist(ctx context.Context, data *IndexData) error
	Read(ctx context.Context) (*IndexData, error)
}

// Projector reads every record through the injected Stores and computes a
// fresh IndexData on demand. It is stateless after construction, so
// multiple Projectors may run concurrently against the same Stores
// (read-only).
type Projector struct {
	stores Stores
	logger logging.Logger
	now    func() time.Time
}

// New builds a Projector. logger may be nil (defaults to logging.Nop{});
// now may be nil (defaults to time.Now).
func New(stores Stores, logger logging.Logger, now func() time.Time) *Projector {
	if logger == nil {
		logger = logging.Nop{}
	}
	if now == nil {
		now = time.Now
	}
	return &Projector{stores: stores, logger: logger, now: now}
}

// readAllConcurrency caps how many record reads a single readAll call
// fans out at once, bounding subprocess/filesystem descriptor pressure on
// the hosted-backend store while still overlapping their I/O. Reads within
// one store overlap; the store sets themselves are read one after another.
const readAllConcurrency = 8

func readAll[T any](ctx context.Context, s store.Store, logger logging.Logger, kind string, decode func(*record.Wrapper) (T, error)) ([]T, map[string]*record.Wrapper, int) {
	out := []T{}
	wrappers := map[string]*record.Wrapper{}
	bad := 0
	if s == nil {
		return out, wrappers, bad
	}

	ids, err := s.List(ctx)
	if err != nil {
		logger.LogWarn("projector: failed to list store", "kind", kind, "error", err.Error())
		return out, wrappers, bad
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(readAllConcurrency)

	for _, id := range ids {
		id := id
		g.Go(func() error {
			w, err := s.Get(gctx, id)
			if err != nil {
				logger.LogWarn("projector: failed to read record, skipping", "kind", kind, "id", id, "error", err.Error())
				mu.Lock()
				bad++
				mu.Unlock()
				return nil
			}
			v, err := decode(w)
			if err != nil {
				logger.LogWarn("projector: failed to decode record, skipping", "kind", kind, "id", id, "error", err.Error())
				mu.Lock()
				bad++
				mu.Unlock()
				return nil
			}
			mu.Lock()
			out = append(out, v)
			wrappers[id] = w
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return out, wrappers, bad
}

// ComputeProjection reads every record through the injected stores and
// returns a fresh IndexData. Invalid wrappers are logged and skipped; the
// projection otherwise continues best-effort (§4.4 step 1).
func (p *Projector) ComputeProjection(ctx context.Context) (*IndexData, error) {
	start := p.now()

	tasks, taskWrappers, badTasks := readAll(ctx, p.stores.Tasks, p.logger, "task", func(w *record.Wrapper) (record.TaskRecord, error) {
		var t record.TaskRecord
		err := record.Decode(w, &t)
		return t, err
	})
	cycles, _, badCycles := readAll(ctx, p.stores.Cycles, p.logger, "cycle", func(w *record.Wrapper) (record.CycleRecord, error) {
		var c record.CycleRecord
		err := record.Decode(w, &c)
		return c, err
	})
	actors, _, badActors := readAll(ctx, p.stores.Actors, p.logger, "actor", func(w *record.Wrapper) (record.ActorRecord, error) {
		var a record.ActorRecord
		err := record.Decode(w, &a)
		return a, err
	})
	agents, _, badAgents := readAll(ctx, p.stores.Agents, p.logger, "agent", func(w *record.Wrapper) (record.AgentRecord, error) {
		var a record.AgentRecord
		err := record.Decode(w, &a)
		return a, err
	})
	executions, _, badExecutions := readAll(ctx, p.stores.Executions, p.logger, "execution", func(w *record.Wrapper) (record.ExecutionRecord, error) {
		var e record.ExecutionRecord
		err := record.Decode(w, &e)
		return e, err
	})
	feedback, _, badFeedback := readAll(ctx, p.stores.Feedbacks, p.logger, "feedback", func(w *record.Wrapper) (record.FeedbackRecord, error) {
		var f record.FeedbackRecord
		err := record.Decode(w, &f)
		return f, err
	})
	changelogs, _, badChangelogs := readAll(ctx, p.stores.Changelogs, p.logger, "changelog", func(w *record.Wrapper) (record.ChangelogRecord, error) {
		var c record.ChangelogRecord
		err := record.Decode(w, &c)
		return c, err
	})

	badCount := badTasks + badCycles + badActors + badAgents + badExecutions + badFeedback + badChangelogs
	integrityStatus := "ok"
	if badCount > 0 {
		integrityStatus = "degraded"
	}

	now := p.now()

	executionsByTask := map[string][]record.ExecutionRecord{}
	for _, ex := range executions {
		executionsByTask[ex.TaskID] = append(executionsByTask[ex.TaskID], ex)
	}
	openBlockingByTask := map[string]bool{}
	for _, fb := range feedback {
		if fb.EntityType == "task" && fb.Type == "blocking" && fb.Status == "open" {
			openBlockingByTask[fb.EntityID] = true
		}
	}
	openClarificationByTask := map[string]bool{}
	for _, fb := range feedback {
		if fb.EntityType == "task" && fb.Type == "question" && fb.Status == "open" {
			openClarificationByTask[fb.EntityID] = true
		}
	}

	enriched := make([]EnrichedTask, 0, len(tasks))
	for _, tk := range tasks {
		w := taskWrappers[tk.ID]
		stage := 0.0
		if w != nil {
			stage = metrics.TimeInCurrentStage(w, now)
		}
		execCount := len(executionsByTask[tk.ID])

		enriched = append(enriched, EnrichedTask{
			TaskRecord:            tk,
			HealthScore:           metrics.Health([]record.TaskRecord{tk}),
			IsStalled:             stage > 14 && tk.Status != "done" && tk.Status != "archived",
			IsAtRisk:              openBlockingByTask[tk.ID],
			NeedsClarification:    openClarificationByTask[tk.ID],
			IsBlockedByDependency: tk.Status == "blocked",
			TimeInCurrentStage:    stage,
			ExecutionCount:        execCount,
		})
	}

	activity := foldActivityHistory(taskWrappers, executions)

	derivedStates := map[string][]string{}
	for _, tk := range tasks {
		derivedStates[tk.Status] = append(derivedStates[tk.Status], tk.ID)
	}
	for _, ids := range derivedStates {
		sort.Strings(ids)
	}

	counts := map[string]int{
		"task":       len(tasks),
		"cycle":      len(cycles),
		"actor":      len(actors),
		"agent":      len(agents),
		"execution":  len(executions),
		"feedback":   len(feedback),
		"changelog":  len(changelogs),
	}

	data := &IndexData{
		Metadata: Metadata{
			GeneratedAt:     now.Unix(),
			GenerationTime:  p.now().Sub(start).Milliseconds(),
			RecordCounts:    counts,
			IntegrityStatus: integrityStatus,
		},
		Tasks:           enriched,
		Cycles:          cycles,
		Actors:          actors,
		Feedback:        feedback,
		Executions:      executions,
		Changelogs:      changelogs,
		Agents:          agents,
		DerivedStates:   derivedStates,
		ActivityHistory: activity,
	}
	return data, nil
}

// foldActivityHistory builds the activity timeline from signature
// timestamps and execution records, dropping any event whose timestamp is
// non-numeric, NaN, or <= 0 (§4.4 step 3 — such values can arise from
// non-temporal ID prefixes).
func foldActivityHistory(taskWrappers map[string]*record.Wrapper, executions []record.ExecutionRecord) []ActivityEvent {
	events := []ActivityEvent{}

	for taskID, w := range taskWrappers {
		for _, sig := range w.Header.Signatures {
			if sig.Timestamp <= 0 {
				continue
			}
			events = append(events, ActivityEvent{
				Timestamp: sig.Timestamp,
				Actor:     sig.KeyID,
				Kind:      "signature:" + string(sig.Role),
				EntityID:  taskID,
			})
		}
	}

	for _, ex := range executions {
		ts, ok := executionTimestamp(ex.ID)
		if !ok || ts <= 0 {
			continue
		}
		events = append(events, ActivityEvent{
			Timestamp: ts,
			Actor:     actorFromMetadata(ex.Metadata),
			Kind:      "execution:" + ex.Type,
			EntityID:  ex.TaskID,
		})
	}

	sort.Slice(events, func(i, j int) bool {
		if events[i].Timestamp != events[j].Timestamp {
			return events[i].Timestamp < events[j].Timestamp
		}
		return events[i].EntityID < events[j].EntityID
	})
	return events
}

func actorFromMetadata(metadata map[string]any) string {
	if metadata == nil {
		return ""
	}
	if v, ok := metadata["actorId"].(string); ok {
		return v
	}
	return ""
}

// executionTimestamp extracts the leading 10-digit Unix-seconds timestamp
// from an execution ID (§3 "Identifiers").
func executionTimestamp(id string) (int64, bool) {
	if len(id) < 10 {
		return 0, false
	}
	var sec int64
	for _, c := range id[:10] {
		if c < '0' || c > '9' {
			return 0, false
		}
		sec = sec*10 + int64(c-'0')
	}
	return sec, true
}
