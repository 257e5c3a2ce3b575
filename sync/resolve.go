package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gitgov-dev/gitgov-core/events"
	"github.com/gitgov-dev/gitgov-core/record"
)

// readWorktreeFile reads a path relative to the worktree root.
func readWorktreeFile(worktreeDir, relPath string) (string, error) {
	raw, err := os.ReadFile(filepath.Join(worktreeDir, relPath))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// ResolveOptions parameterizes ResolveConflict (§4.5 "resolveConflict
// ({reason, actorId})"). The conflicted files themselves are read from the
// worktree on disk, where the caller has already edited them to remove
// conflict markers (§4.5 scenario S5).
type ResolveOptions struct {
	ActorID string
	Reason  string
}

// ResolveResult is the outcome of ResolveConflict (§4.5).
type ResolveResult struct {
	Success    bool     `json:"success"`
	Resolved   []string `json:"resolved"`
	CommitHash *string  `json:"commitHash"`
	Error      string   `json:"error,omitempty"`
}

// ResolveConflict reads every conflicted file from the worktree, fails if
// any still carries conflict markers, re-signs every resolved record as
// role=resolver with the supplied reason, continues the in-progress
// rebase, and pushes an audit-trail commit (§4.5 "resolveConflict" steps
// 2-6).
func (e *Engine) ResolveConflict(ctx context.Context, opts ResolveOptions) (*ResolveResult, error) {
	if !isRebaseInProgress(e.worktreeDir) {
		return nil, record.NewKindError(record.ErrNoRebaseInProgress, "resolveConflict called with no rebase in progress")
	}
	if err := e.checkActorIdentity(opts.ActorID); err != nil {
		return nil, err
	}

	wt := e.worktreeRunner()

	files, err := conflictedFiles(ctx, wt)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, record.NewKindError(record.ErrNoRebaseInProgress, "no conflicted files found despite rebase in progress")
	}

	// Step 3: scan every conflicted file before mutating anything, so a
	// still-conflicted file fails the whole call without touching git
	// state.
	contents := make(map[string][]byte, len(files))
	for _, f := range files {
		content, err := readWorktreeFile(e.worktreeDir, f)
		if err != nil {
			return nil, err
		}
		if hasConflictMarkers(content) {
			return nil, record.NewKindError(record.ErrConflictMarkersPresent, "%q still contains conflict markers", f)
		}
		contents[f] = []byte(content)
	}

	// Step 4: re-sign every resolved record as role=resolver. Files that
	// don't decode as a signed record wrapper (e.g. config.json) are left
	// as the caller already wrote them.
	for _, f := range files {
		w, err := record.DecodeWrapper(contents[f])
		if err != nil {
			continue
		}
		if e.signer == nil {
			return nil, record.NewKindError(record.ErrMissingDependency, "resolving %q requires an injected Signer to re-sign it as role=resolver", f)
		}
		if err := e.signer(w, opts.Reason); err != nil {
			return nil, fmt.Errorf("sync: failed to re-sign %q: %w", f, err)
		}
		raw, err := json.MarshalIndent(w, "", "  ")
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(filepath.Join(e.worktreeDir, f), raw, 0o644); err != nil {
			return nil, err
		}
	}

	if _, err := wt.Run(ctx, "add", ".gitgov/"); err != nil {
		return nil, err
	}

	if _, err := wt.Run(ctx, "-c", "core.editor=true", "rebase", "--continue"); err != nil {
		remaining, _ := conflictedFiles(ctx, wt)
		if len(remaining) > 0 {
			return &ResolveResult{Success: false, Error: "rebase --continue left further conflicts"}, nil
		}
		return nil, err
	}

	auditMessage := "gitgov: resolve conflict [actor:" + opts.ActorID + "] reason: " + opts.Reason
	if _, err := wt.Run(ctx, "commit", "--allow-empty", "-m", auditMessage); err != nil {
		return nil, err
	}

	if _, err := wt.Run(ctx, "push", e.remote, e.branch); err != nil {
		return nil, err
	}

	if e.reindexer != nil {
		if err := e.reindexer.Reindex(ctx); err != nil {
			e.logger.LogWarn("sync: re-index after conflict resolution failed", "error", err.Error())
		}
	}

	head, err := wt.Run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return nil, err
	}
	hash := strings.TrimSpace(head)

	e.events.Emit(events.TopicRebaseResolved, map[string]any{"actorId": opts.ActorID, "reason": opts.Reason, "files": files})

	return &ResolveResult{Success: true, Resolved: files, CommitHash: &hash}, nil
}
