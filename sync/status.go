package sync

import (
	"context"
	"strings"

	"github.com/gitgov-dev/gitgov-core/internal/gitexec"
)

// parsePorcelainStatus parses the output of
// `git status --porcelain -uall --ignored=traditional`, classifying every
// entry into a DeltaElement (§4.5 "Delta element"). Renames ("R  old ->
// new") are split into a deletion of the old path and an addition of the
// new one.
func parsePorcelainStatus(output string) []DeltaElement {
	var out []DeltaElement
	for _, line := range strings.Split(output, "\n") {
		if len(line) < 3 {
			continue
		}
		xy := line[:2]
		rest := strings.TrimSpace(line[3:])
		if rest == "" {
			continue
		}

		if strings.Contains(rest, " -> ") {
			parts := strings.SplitN(rest, " -> ", 2)
			out = append(out, DeltaElement{File: parts[0], Status: DeltaDeleted})
			out = append(out, DeltaElement{File: parts[1], Status: DeltaAdded})
			continue
		}

		out = append(out, DeltaElement{File: rest, Status: classifyStatus(xy)})
	}
	return out
}

func classifyStatus(xy string) DeltaStatus {
	switch {
	case xy == "??" || xy == "!!":
		return DeltaAdded
	case strings.Contains(xy, "D"):
		return DeltaDeleted
	default:
		return DeltaModified
	}
}

// computeDelta runs `git status --porcelain -uall --ignored=traditional`
// inside the worktree and filters the result to syncable paths, resolved
// relative to the `.gitgov/` root (§4.5 step 5).
func computeDelta(ctx context.Context, runner gitexec.Runner) ([]DeltaElement, error) {
	out, err := runner.Run(ctx, "status", "--porcelain", "-uall", "--ignored=traditional")
	if err != nil {
		return nil, err
	}

	all := parsePorcelainStatus(out)
	delta := make([]DeltaElement, 0, len(all))
	for _, d := range all {
		rel, ok := relativeToGitgov(d.File)
		if !ok || !ShouldSyncFile(rel) {
			continue
		}
		delta = append(delta, d)
	}
	return delta, nil
}

// relativeToGitgov strips the ".gitgov/" prefix every path on the state
// branch carries (§6 "Record files live under .gitgov/<dir>/<id>.json
// exactly as in the working tree").
func relativeToGitgov(file string) (string, bool) {
	const prefix = ".gitgov/"
	if !strings.HasPrefix(file, prefix) {
		return "", false
	}
	return strings.TrimPrefix(file, prefix), true
}
