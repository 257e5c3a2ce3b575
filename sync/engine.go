package sync

import (
	"context"

	"github.com/gitgov-dev/gitgov-core/events"
	"github.com/gitgov-dev/gitgov-core/internal/gitexec"
	"github.com/gitgov-dev/gitgov-core/logging"
	"github.com/gitgov-dev/gitgov-core/projector"
	"github.com/gitgov-dev/gitgov-core/record"
)

// Reindexer recomputes and persists the IndexData projection after a sync
// operation changes `.gitgov/` content (§4.5 steps "re-index").
type Reindexer interface {
	Reindex(ctx context.Context) error
}

// ProjectorReindexer adapts a *projector.Projector plus its sinks to
// Reindexer.
type ProjectorReindexer struct {
	Projector *projector.Projector
	Sinks     []projector.Sink
}

func (r *ProjectorReindexer) Reindex(ctx context.Context) error {
	if r.Projector == nil {
		return nil
	}
	data, err := r.Projector.ComputeProjection(ctx)
	if err != nil {
		return err
	}
	for _, sink := range r.Sinks {
		if err := sink.Persist(ctx, data); err != nil {
			return err
		}
	}
	return nil
}

// IdentityResolver reports the actor ID authenticated for the current
// process (e.g. derived from the configured signing key), so push/resolve
// can reject a caller-asserted actorId that doesn't match (§4.5
// ActorIdentityMismatch).
type IdentityResolver func() string

// Signer re-signs a conflict-resolved record wrapper as role=resolver with
// the supplied reason, in place, before it is written back to disk (§4.5
// "resolveConflict" step 4). The engine holds no private key itself;
// callers inject this the same way Identity is injected, mirroring
// agent.IdentityAdapter's api-engine signing seam.
type Signer func(w *record.Wrapper, reason string) error

// Engine is the worktree-based state synchronization engine (§4.5). One
// Engine instance corresponds to one repository's `.gitgov-worktree/`.
type Engine struct {
	runner       gitexec.Runner // operates at the main working tree root
	worktreeDir  string
	branch       string
	remote       string
	logger       logging.Logger
	identity     IdentityResolver
	signer       Signer
	keyResolver  record.KeyResolver
	reindexer    Reindexer
	events       *events.Emitter
	linter       Linter
}

// Config configures a new Engine.
type Config struct {
	// Runner executes git commands at the main working tree root.
	Runner gitexec.Runner
	// WorktreeDir is the absolute path to the dedicated sync worktree,
	// conventionally "<repo>/.gitgov-worktree/" (§4.5).
	WorktreeDir string
	// Branch is the shared state branch name, default "gitgov-state" (§6).
	Branch string
	// Remote is the git remote the state branch is pushed to and pulled
	// from, default "origin".
	Remote string
	Logger logging.Logger
	// Identity resolves the actor ID authenticated for this process.
	Identity IdentityResolver
	// Signer re-signs conflict-resolved records as role=resolver
	// (§4.5 "resolveConflict" step 4). Resolving a conflict that touches
	// at least one signed record fails with MissingDependency if unset.
	Signer Signer
	// KeyResolver looks up the public key for a signature's KeyID, used by
	// AuditState's VerifySignatures check (§4.5 "auditState").
	KeyResolver record.KeyResolver
	Reindexer   Reindexer
	Events      *events.Emitter
	Linter      Linter
}

// New builds an Engine from cfg, applying defaults for Branch/Remote/Logger
// when unset.
func New(cfg Config) *Engine {
	branch := cfg.Branch
	if branch == "" {
		branch = "gitgov-state"
	}
	remote := cfg.Remote
	if remote == "" {
		remote = "origin"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop{}
	}
	emitter := cfg.Events
	if emitter == nil {
		emitter = events.NewEmitter()
	}
	linter := cfg.Linter
	if linter == nil {
		linter = NopLinter{}
	}
	return &Engine{
		runner:      cfg.Runner,
		worktreeDir: cfg.WorktreeDir,
		branch:      branch,
		remote:      remote,
		logger:      logger,
		identity:    cfg.Identity,
		signer:      cfg.Signer,
		keyResolver: cfg.KeyResolver,
		reindexer:   cfg.Reindexer,
		events:      emitter,
		linter:      linter,
	}
}

// Events exposes the engine's event emitter so callers (e.g. the pull
// scheduler) can subscribe to conflict/state-change notifications.
func (e *Engine) Events() *events.Emitter {
	return e.events
}

func (e *Engine) checkNoRebaseInProgress() error {
	if isRebaseInProgress(e.worktreeDir) {
		return record.NewKindError(record.ErrRebaseAlreadyInProgress, "a rebase is already in progress on the sync worktree")
	}
	return nil
}

func (e *Engine) checkActorIdentity(actorID string) error {
	if e.identity == nil {
		return nil
	}
	authenticated := e.identity()
	if authenticated != "" && authenticated != actorID {
		return record.NewKindError(record.ErrActorIdentityMismatch, "authenticated actor %q does not match requested actorId %q", authenticated, actorID)
	}
	return nil
}

// ConflictInfo describes a rebase/merge conflict surfaced to the caller
// (§4.5).
type ConflictInfo struct {
	Type             string   `json:"type"`
	AffectedFiles    []string `json:"affectedFiles"`
	ResolutionSteps  []string `json:"resolutionSteps"`
}

func defaultResolutionSteps() []string {
	return []string{
		"Inspect the conflicting files under .gitgov/ for conflict markers",
		"Resolve each conflict and re-sign the affected records",
		"Call resolveConflict with the actor id and a reason",
	}
}
