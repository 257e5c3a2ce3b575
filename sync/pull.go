package sync

import (
	"context"
	"strings"

	"github.com/gitgov-dev/gitgov-core/events"
)

// PullOptions parameterizes PullState (§4.5 "Pull protocol").
type PullOptions struct {
	ActorID string
	// Force discards local changes instead of auto-committing them before
	// pulling (§4.5 "Pull protocol" force mode).
	Force bool
}

// PullResult is the outcome of PullState (§4.5).
type PullResult struct {
	Success          bool          `json:"success"`
	Updated          bool          `json:"updated"`
	ConflictDetected bool          `json:"conflictDetected"`
	ConflictInfo     *ConflictInfo `json:"conflictInfo,omitempty"`
	Reindexed        bool          `json:"reindexed"`
	Error            string        `json:"error,omitempty"`
}

// PullState fetches and integrates the shared state branch into the local
// worktree (§4.5 "Pull protocol").
func (e *Engine) PullState(ctx context.Context, opts PullOptions) (*PullResult, error) {
	if err := e.checkNoRebaseInProgress(); err != nil {
		return nil, err
	}
	if err := e.ensureWorktree(ctx); err != nil {
		return nil, err
	}

	wt := e.worktreeRunner()

	if opts.Force {
		if _, err := wt.Run(ctx, "checkout", "--", ".gitgov"); err != nil {
			e.logger.LogWarn("sync: force checkout of .gitgov failed", "error", err.Error())
		}
		if _, err := wt.Run(ctx, "clean", "-fd", "--", ".gitgov"); err != nil {
			e.logger.LogWarn("sync: force clean of .gitgov failed", "error", err.Error())
		}
	} else {
		delta, err := computeDelta(ctx, wt)
		if err != nil {
			return nil, err
		}
		if len(delta) > 0 {
			for _, d := range delta {
				if d.Status == DeltaDeleted {
					_, _ = wt.Run(ctx, "rm", d.File)
					continue
				}
				_, _ = wt.Run(ctx, "add", "-f", d.File)
			}
			_, _ = wt.Run(ctx, "commit", "-m", "state: Auto-commit local changes before pull")
		}
	}

	beforeHead, _ := wt.Run(ctx, "rev-parse", "HEAD")

	if _, err := wt.Run(ctx, "fetch", e.remote, e.branch); err != nil {
		e.logger.LogWarn("sync: fetch failed, attempting pull against stale remote refs", "error", err.Error())
	}

	remoteHead, err := wt.Run(ctx, "rev-parse", "--verify", e.remote+"/"+e.branch)
	if err == nil && strings.TrimSpace(remoteHead) == strings.TrimSpace(beforeHead) {
		return &PullResult{Success: true, Updated: false}, nil
	}

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
		return &PullResult{Success: false, ConflictDetected: true, ConflictInfo: info}, nil
	}

	afterHead, err := wt.Run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return nil, err
	}

	updated := strings.TrimSpace(beforeHead) != strings.TrimSpace(afterHead)
	reindexed := false
	if updated && e.reindexer != nil {
		if err := e.reindexer.Reindex(ctx); err != nil {
			e.logger.LogWarn("sync: re-index after pull failed", "error", err.Error())
		} else {
			reindexed = true
		}
	}

	if updated {
		e.events.Emit(events.TopicStateUpdated, map[string]any{"hasChanges": true})
	}

	return &PullResult{Success: true, Updated: updated, Reindexed: reindexed}, nil
}
