package diagram

import (
	"testing"

	"github.com/gitgov-dev/gitgov-core/record"
	"github.com/stretchr/testify/assert"
)

func sampleCycles() []record.CycleRecord {
	return []record.CycleRecord{
		{ID: "cycle-root", Title: "Root Cycle", Status: "active", ChildCycleIDs: []string{"cycle-child"}, TaskIDs: []string{"task-1"}},
		{ID: "cycle-child", Title: "Child Cycle", Status: "active", TaskIDs: []string{"task-2"}},
		{ID: "cycle-archived", Title: "Old Cycle", Status: "archived", TaskIDs: []string{"task-3"}},
	}
}

func sampleTasks() []record.TaskRecord {
	return []record.TaskRecord{
		{ID: "task-1", Title: "First Task", Status: "active"},
		{ID: "task-2", Title: "Second Task", Status: "done"},
		{ID: "task-3", Title: "Archived Task", Status: "archived"},
		{ID: "task-orphan", Title: "No Cycle", Status: "active"},
	}
}

func TestAnalyzeRelationshipsBuildsFullGraphByDefault(t *testing.T) {
	g := AnalyzeRelationships(sampleCycles(), sampleTasks(), Filters{})

	ids := map[string]bool{}
	for _, n := range g.Nodes {
		ids[n.ID] = true
	}
	assert.True(t, ids["cycle-root"])
	assert.True(t, ids["cycle-child"])
	assert.True(t, ids["task-1"])
	assert.True(t, ids["task-2"])
	assert.False(t, ids["cycle-archived"], "archived cycle excluded by default")
	assert.False(t, ids["task-3"], "archived task excluded by default")
	assert.True(t, ids["task-orphan"], "unscoped view still surfaces tasks with no cycle edge")

	assert.Contains(t, g.Edges, Edge{From: "cycle-root", To: "cycle-child", Kind: EdgeChildCycle})
	assert.Contains(t, g.Edges, Edge{From: "cycle-root", To: "task-1", Kind: EdgeHasTask})
	assert.Contains(t, g.Edges, Edge{From: "cycle-child", To: "task-2", Kind: EdgeHasTask})
}

func TestAnalyzeRelationshipsIncludeArchivedShowsEverything(t *testing.T) {
	g := AnalyzeRelationships(sampleCycles(), sampleTasks(), Filters{IncludeArchived: true})

	ids := map[string]bool{}
	for _, n := range g.Nodes {
		ids[n.ID] = true
	}
	assert.True(t, ids["cycle-archived"])
	assert.True(t, ids["task-3"])
}

func TestAnalyzeRelationshipsCycleIDFilterScopesToSubtree(t *testing.T) {
	g := AnalyzeRelationships(sampleCycles(), sampleTasks(), Filters{CycleID: "cycle-child"})

	ids := map[string]bool{}
	for _, n := range g.Nodes {
		ids[n.ID] = true
	}
	assert.True(t, ids["cycle-child"])
	assert.True(t, ids["task-2"])
	assert.False(t, ids["cycle-root"])
	assert.False(t, ids["task-1"])
}

func TestAnalyzeRelationshipsTaskIDFilterIncludesOwningCycle(t *testing.T) {
	g := AnalyzeRelationships(sampleCycles(), sampleTasks(), Filters{TaskID: "task-1"})

	ids := map[string]bool{}
	for _, n := range g.Nodes {
		ids[n.ID] = true
	}
	assert.True(t, ids["task-1"])
	assert.True(t, ids["cycle-root"])
	assert.False(t, ids["task-2"])
}

func TestAnalyzeRelationshipsPackageTagFilter(t *testing.T) {
	cycles := []record.CycleRecord{
		{ID: "cycle-a", Title: "A", Status: "active", Tags: []string{"package:core"}, TaskIDs: []string{"task-a"}},
		{ID: "cycle-b", Title: "B", Status: "active", Tags: []string{"package:ui"}, TaskIDs: []string{"task-b"}},
	}
	tasks := []record.TaskRecord{
		{ID: "task-a", Title: "Task A", Status: "active", Tags: []string{"package:core"}},
		{ID: "task-b", Title: "Task B", Status: "active", Tags: []string{"package:ui"}},
	}

	g := AnalyzeRelationships(cycles, tasks, Filters{PackageName: "core"})

	ids := map[string]bool{}
	for _, n := range g.Nodes {
		ids[n.ID] = true
	}
	assert.True(t, ids["cycle-a"])
	assert.True(t, ids["task-a"])
	assert.False(t, ids["cycle-b"])
	assert.False(t, ids["task-b"])
}

func TestAnalyzeRelationshipsDropsEdgesToMissingRecords(t *testing.T) {
	cycles := []record.CycleRecord{
		{ID: "cycle-a", Title: "A", Status: "active", ChildCycleIDs: []string{"cycle-missing"}, TaskIDs: []string{"task-missing"}},
	}
	g := AnalyzeRelationships(cycles, nil, Filters{})

	assert.Len(t, g.Nodes, 1)
	assert.Empty(t, g.Edges)
}
