package sync

import (
	"context"
	"fmt"
	"strings"

	"github.com/gitgov-dev/gitgov-core/events"
)

// PushOptions parameterizes PushState (§4.5 "Push protocol").
type PushOptions struct {
	ActorID      string
	SourceBranch string
	DryRun       bool
	Force        bool
}

// PushResult is the outcome of PushState (§4.5).
type PushResult struct {
	Success         bool          `json:"success"`
	FilesSynced     int           `json:"filesSynced"`
	CommitHash      *string       `json:"commitHash"`
	CommitMessage   string        `json:"commitMessage,omitempty"`
	ConflictDetected bool         `json:"conflictDetected"`
	ConflictInfo    *ConflictInfo `json:"conflictInfo,omitempty"`
	Reindexed       bool          `json:"reindexed"`
	Error           string        `json:"error,omitempty"`
}

// PushState reconciles local `.gitgov/` changes onto the shared state
// branch (§4.5 "Push protocol").
func (e *Engine) PushState(ctx context.Context, opts PushOptions) (*PushResult, error) {
	if err := e.checkNoRebaseInProgress(); err != nil {
		return nil, err
	}
	if err := e.checkActorIdentity(opts.ActorID); err != nil {
		return nil, err
	}
	if err := e.ensureWorktree(ctx); err != nil {
		return nil, err
	}

	report, err := e.linter.Lint(ctx)
	if err != nil {
		return nil, err
	}
	if report.ErrorCount > 0 {
		return &PushResult{Success: false, Error: fmt.Sprintf("Lint validation failed: %d error(s)", report.ErrorCount)}, nil
	}

	wt := e.worktreeRunner()

	delta, err := computeDelta(ctx, wt)
	if err != nil {
		return nil, err
	}

	ahead, remoteMissing, err := e.localAheadOfRemote(ctx)
	if err != nil {
		return nil, err
	}

	if len(delta) == 0 {
		if !ahead && !remoteMissing {
			return &PushResult{Success: true, FilesSynced: 0, CommitHash: nil}, nil
		}
		// Local HEAD carries unpushed commits (or the remote branch does not
		// exist yet); fall through to push them without creating a new commit.
		return e.pushExistingCommits(ctx, opts)
	}

	if opts.DryRun {
		return &PushResult{
			Success:     true,
			FilesSynced: len(delta),
			CommitHash:  nil,
			CommitMessage: fmt.Sprintf("[dry-run] would sync %d file(s)", len(delta)),
		}, nil
	}

	for _, d := range delta {
		if d.Status == DeltaDeleted {
			if _, err := wt.Run(ctx, "rm", d.File); err != nil {
				return nil, err
			}
			continue
		}
		if _, err := wt.Run(ctx, "add", "-f", d.File); err != nil {
			return nil, err
		}
	}

	commitMessage := fmt.Sprintf("gitgov: sync state [actor:%s]", opts.ActorID)
	if _, err := wt.Run(ctx, "commit", "-m", commitMessage); err != nil {
		return nil, err
	}

	return e.finishPush(ctx, opts, len(delta), commitMessage)
}

// localAheadOfRemote reports whether the worktree's local HEAD carries
// commits the remote branch lacks, or whether the remote branch does not
// exist at all (§4.5 step 6).
func (e *Engine) localAheadOfRemote(ctx context.Context) (ahead bool, remoteMissing bool, err error) {
	wt := e.worktreeRunner()
	if _, err := wt.Run(ctx, "rev-parse", "--verify", e.remote+"/"+e.branch); err != nil {
		return false, true, nil
	}
	out, err := wt.Run(ctx, "rev-list", "--count", e.remote+"/"+e.branch+".."+"HEAD")
	if err != nil {
		return false, false, err
	}
	count := strings.TrimSpace(out)
	return count != "" && count != "0", false, nil
}

func (e *Engine) pushExistingCommits(ctx context.Context, opts PushOptions) (*PushResult, error) {
	if opts.DryRun {
		return &PushResult{Success: true, FilesSynced: 0, CommitMessage: "[dry-run] would push existing commits"}, nil
	}
	return e.finishPush(ctx, opts, 0, "")
}

// finishPush implements §4.5 steps 10-11: pull --rebase unless force, then
// push.
func (e *Engine) finishPush(ctx context.Context, opts PushOptions, filesSynced int, commitMessage string) (*PushResult, error) {
	wt := e.worktreeRunner()
	reindexed := false

	if !opts.Force {
		if _, err := wt.Run(ctx, "rev-parse", "--verify", e.remote+"/"+e.branch); err == nil {
			beforeHead, _ := wt.Run(ctx, "rev-parse", "HEAD")

			if _, err := wt.Run(ctx, "pull", "--rebase", e.remote, e.branch); err != nil {
				conflictFiles, diffErr := conflictedFiles(ctx, wt)
				if diffErr != nil {
					return nil, err
				}
				info := &ConflictInfo{
					Type:            "rebase_conflict",
					AffectedFiles:   conflictFiles,
					ResolutionSteps: defaultResolutionSteps(),
				}
				e.events.Emit(events.TopicConflictDetected, map[string]any{"conflictInfo": info})
				return &PushResult{Success: false, ConflictDetected: true, ConflictInfo: info}, nil
			}

			afterHead, _ := wt.Run(ctx, "rev-parse", "HEAD")
			if strings.TrimSpace(beforeHead) != strings.TrimSpace(afterHead) {
				if e.reindexer != nil {
					if err := e.reindexer.Reindex(ctx); err != nil {
						e.logger.LogWarn("sync: re-index after implicit pull failed", "error", err.Error())
					} else {
						reindexed = true
					}
				}
			}
		}
	}

	if _, err := wt.Run(ctx, "push", e.remote, e.branch); err != nil {
		return nil, err
	}

	head, err := wt.Run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return nil, err
	}
	hash := strings.TrimSpace(head)

	e.events.Emit(events.TopicStateUpdated, map[string]any{"hasChanges": filesSynced > 0})

	return &PushResult{
		Success:          true,
		FilesSynced:      filesSynced,
		CommitHash:       &hash,
		CommitMessage:    commitMessage,
		ConflictDetected: false,
		Reindexed:        reindexed,
	}, nil
}
