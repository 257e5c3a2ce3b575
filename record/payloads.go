package record

// TaskRecord is the payload for header.type == task (§3).
type TaskRecord struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Status      string   `json:"status"`
	Priority    string   `json:"priority"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	References  []string `json:"references"`
	CycleIDs    []string `json:"cycleIds"`
}

var TaskStatuses = []string{
	"draft", "review", "ready", "active", "done", "archived", "paused", "discarded", "blocked",
}

var TaskPriorities = []string{"low", "medium", "high", "critical"}

// CycleRecord is the payload for header.type == cycle.
type CycleRecord struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Status        string   `json:"status"`
	TaskIDs       []string `json:"taskIds"`
	ChildCycleIDs []string `json:"childCycleIds"`
	Tags          []string `json:"tags"`
}

var CycleStatuses = []string{"planning", "active", "completed", "archived"}

// ActorRecord is the payload for header.type == actor.
type ActorRecord struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	DisplayName string   `json:"displayName"`
	PublicKey   string   `json:"publicKey"`
	Roles       []string `json:"roles"`
}

var ActorTypes = []string{"human", "agent"}

// AgentEngine is a tagged-union of the three supported runner backends (§3,
// §4.9). Only the fields relevant to Type are populated.
type AgentEngine struct {
	Type       string `json:"type"` // local | api | mcp
	Runtime    string `json:"runtime,omitempty"`
	Entrypoint string `json:"entrypoint,omitempty"`
	Function   string `json:"function,omitempty"`
	URL        string `json:"url,omitempty"`
	Auth       string `json:"auth,omitempty"`
}

// AgentRecord is the payload for header.type == agent.
type AgentRecord struct {
	ID                       string      `json:"id"`
	Engine                   AgentEngine `json:"engine"`
	Triggers                 []string    `json:"triggers,omitempty"`
	KnowledgeDependencies    []string    `json:"knowledge_dependencies,omitempty"`
	PromptEngineRequirements []string    `json:"prompt_engine_requirements,omitempty"`
}

// ExecutionRecord is the payload for header.type == execution. Metadata is
// an open bag (§9 "Extensible execution metadata") validated only as
// "object at the root", never typed further by the core.
type ExecutionRecord struct {
	ID         string         `json:"id"`
	TaskID     string         `json:"taskId"`
	Type       string         `json:"type"`
	Title      string         `json:"title"`
	Result     string         `json:"result"`
	Notes      string         `json:"notes,omitempty"`
	References []string       `json:"references,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

var ExecutionTypes = []string{"analysis", "progress", "blocker", "completion", "info", "correction"}

// FeedbackRecord is the payload for header.type == feedback.
type FeedbackRecord struct {
	ID                 string `json:"id"`
	EntityType          string `json:"entityType"`
	EntityID            string `json:"entityId"`
	Type                string `json:"type"`
	Status              string `json:"status"`
	Content             string `json:"content"`
	Assignee            string `json:"assignee,omitempty"`
	ResolvesFeedbackID  string `json:"resolvesFeedbackId,omitempty"`
}

var FeedbackEntityTypes = []string{"task", "cycle", "agent", "system", "configuration"}
var FeedbackTypes = []string{"question", "suggestion", "blocking", "assignment", "approval"}
var FeedbackStatuses = []string{"open", "resolved"}

// ChangelogReferences holds cross-entity references attached to a changelog
// entry; `Tasks` is the field whose non-emptiness is required when
// ChangeType == completion (§3 invariant 4).
type ChangelogReferences struct {
	Tasks []string `json:"tasks,omitempty"`
}

// ChangelogRecord is the payload for header.type == changelog.
type ChangelogRecord struct {
	ID                    string               `json:"id"`
	EntityType            string               `json:"entityType"`
	EntityID              string               `json:"entityId"`
	ChangeType            string               `json:"changeType"`
	Title                 string               `json:"title"`
	Description            string               `json:"description"`
	Timestamp             int64                `json:"timestamp"`
	Trigger               string               `json:"trigger"`
	TriggeredBy           string               `json:"triggeredBy"`
	Reason                string               `json:"reason"`
	RiskLevel             string               `json:"riskLevel"`
	RollbackInstructions  string               `json:"rollbackInstructions,omitempty"`
	UsersAffected         string               `json:"usersAffected,omitempty"`
	References            *ChangelogReferences `json:"references,omitempty"`
}

var ChangelogChangeTypes = []string{"creation", "completion", "update", "deletion", "hotfix"}
var ChangelogTriggers = []string{"manual", "automated", "emergency"}
var ChangelogRiskLevels = []string{"low", "medium", "high", "critical"}
