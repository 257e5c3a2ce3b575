// Package sync implements the worktree-based state synchronization engine
// of §4.5: it reconciles `.gitgov/` records between the working tree and a
// shared `gitgov-state` branch through a dedicated git worktree, via push,
// pull, resolve, and integrity-audit operations.
package sync

import (
	"path"
	"strings"
)

// LocalOnlyFiles never leave the working tree (§4.5, §6).
var LocalOnlyFiles = map[string]bool{
	".session.json": true,
	"index.json":    true,
	"gitgov":        true,
}

// ExcludedPatterns are glob-style suffix/prefix markers for files that are
// never syncable regardless of directory (§4.5).
var ExcludedPatterns = []string{"*.key", "*.backup", "*.backup-*", "*.tmp", "*.bak"}

// SyncDirectories are the first path segment (relative to `.gitgov/`) that
// is syncable (§4.5, §6).
var SyncDirectories = map[string]bool{
	"tasks":      true,
	"cycles":     true,
	"actors":     true,
	"agents":     true,
	"executions": true,
	"feedbacks":  true,
	"changelogs": true,
	"workflows":  true,
}

// SyncRootFiles are syncable files that sit directly under `.gitgov/`
// rather than in one of SyncDirectories (§4.5, §6).
var SyncRootFiles = map[string]bool{
	"config.json": true,
}

func matchesExcludedPattern(name string) bool {
	for _, pattern := range ExcludedPatterns {
		if ok, _ := path.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// ShouldSyncFile reports whether relPath (a path relative to `.gitgov/`,
// using forward slashes) is syncable per §4.5's "Syncable path filter".
func ShouldSyncFile(relPath string) bool {
	relPath = strings.TrimPrefix(relPath, "./")
	name := path.Base(relPath)

	if path.Ext(name) != ".json" {
		return false
	}
	if LocalOnlyFiles[name] {
		return false
	}
	if matchesExcludedPattern(name) {
		return false
	}

	segments := strings.Split(relPath, "/")
	if len(segments) > 1 {
		return SyncDirectories[segments[0]]
	}
	return SyncRootFiles[name]
}

// DeltaStatus is one of A (added), M (modified), D (deleted).
type DeltaStatus string

const (
	DeltaAdded    DeltaStatus = "A"
	DeltaModified DeltaStatus = "M"
	DeltaDeleted  DeltaStatus = "D"
)

// DeltaElement is one entry of a computed sync delta (§4.5).
type DeltaElement struct {
	File   string
	Status DeltaStatus
}
