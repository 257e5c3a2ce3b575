package sync

import (
	"context"
	"strings"

	"github.com/gitgov-dev/gitgov-core/internal/gitexec"
)

// conflictedFiles lists the paths with unresolved merge/rebase conflicts
// (§4.5 "resolveConflict" step "collect conflicted files").
func conflictedFiles(ctx context.Context, runner gitexec.Runner) ([]string, error) {
	out, err := runner.Run(ctx, "diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return nil, err
	}
	var files []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}

// hasConflictMarkers reports whether content still carries unresolved
// conflict markers (§4.5 "resolveConflict" conflict-marker scan).
func hasConflictMarkers(content string) bool {
	return strings.Contains(content, "<<<<<<<") ||
		strings.Contains(content, "=======") ||
		strings.Contains(content, ">>>>>>>")
}

// conflictDiffSection is the per-marker-section state of the
// getConflictDiff mini state machine.
type conflictDiffSection int

const (
	sectionNone conflictDiffSection = iota
	sectionLocal
	sectionBase
	sectionRemote
)

// FileConflictDiff is a single conflicted file's three-way content (§4.5
// "getConflictDiff").
type FileConflictDiff struct {
	FilePath      string  `json:"filePath"`
	LocalContent  string  `json:"localContent"`
	RemoteContent string  `json:"remoteContent"`
	BaseContent   *string `json:"baseContent,omitempty"`
}

// ConflictDiffResult is the aggregate return value of getConflictDiff.
type ConflictDiffResult struct {
	Files           []FileConflictDiff `json:"files"`
	Message         string             `json:"message"`
	ResolutionSteps []string           `json:"resolutionSteps"`
}

// parseConflictMarkers walks raw file content split on the standard
// conflict-marker set (`<<<<<<<`, `|||||||`, `=======`, `>>>>>>>`),
// extracting the local/base/remote sections via a none→local→base?→
// remote→none state machine (§4.5 "getConflictDiff").
func parseConflictMarkers(content string) FileConflictDiff {
	var diff FileConflictDiff
	var local, base, remote strings.Builder
	state := sectionNone
	haveBase := false

	for _, line := range strings.Split(content, "\n") {
		switch {
		case strings.HasPrefix(line, "<<<<<<<"):
			state = sectionLocal
			continue
		case strings.HasPrefix(line, "|||||||"):
			state = sectionBase
			haveBase = true
			continue
		case strings.HasPrefix(line, "======="):
			state = sectionRemote
			continue
		case strings.HasPrefix(line, ">>>>>>>"):
			state = sectionNone
			continue
		}

		switch state {
		case sectionLocal:
			local.WriteString(line)
			local.WriteString("\n")
		case sectionBase:
			base.WriteString(line)
			base.WriteString("\n")
		case sectionRemote:
			remote.WriteString(line)
			remote.WriteString("\n")
		}
	}

	diff.LocalContent = local.String()
	diff.RemoteContent = remote.String()
	if haveBase {
		b := base.String()
		diff.BaseContent = &b
	}
	return diff
}

// GetConflictDiff reads every conflicted file in the worktree and extracts
// its three-way diff content (§4.5 "getConflictDiff").
func (e *Engine) GetConflictDiff(ctx context.Context) (*ConflictDiffResult, error) {
	if err := e.ensureWorktree(ctx); err != nil {
		return nil, err
	}
	wt := e.worktreeRunner()

	files, err := conflictedFiles(ctx, wt)
	if err != nil {
		return nil, err
	}

	result := &ConflictDiffResult{ResolutionSteps: defaultResolutionSteps()}
	for _, f := range files {
		content, err := readWorktreeFile(e.worktreeDir, f)
		if err != nil {
			continue
		}
		d := parseConflictMarkers(content)
		d.FilePath = f
		result.Files = append(result.Files, d)
	}
	if len(result.Files) == 0 {
		result.Message = "No conflicts detected"
	} else {
		result.Message = "Resolve the conflict markers in each file, then call resolveConflict"
	}
	return result, nil
}
