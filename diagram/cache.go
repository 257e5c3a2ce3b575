package diagram

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"

	"github.com/gitgov-dev/gitgov-core/record"
)

// fingerprint builds the cache key §4.8 describes: the sorted cycle/task
// IDs plus the filter options, hashed so the cache entry stays small
// regardless of how many records went in.
func fingerprint(cycleIDs, taskIDs []string, filters Filters) string {
	sortedCycles := append([]string(nil), cycleIDs...)
	sort.Strings(sortedCycles)
	sortedTasks := append([]string(nil), taskIDs...)
	sort.Strings(sortedTasks)

	h := sha256.New()
	fmt.Fprintf(h, "cycles:%v|tasks:%v|cycleId:%s|taskId:%s|package:%s|archived:%t",
		sortedCycles, sortedTasks, filters.CycleID, filters.TaskID, filters.PackageName, filters.IncludeArchived)
	return hex.EncodeToString(h.Sum(nil))
}

type cacheEntry struct {
	graph   Graph
	mermaid string
}

// Cache avoids rebuilding the graph (and re-rendering Mermaid) when the
// same record set and filters are requested again (§4.8 "A fingerprint
// cache keyed by the sorted IDs plus options avoids rebuilding the graph
// when inputs are unchanged").
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

// NewCache builds an empty Cache.
func NewCache() *Cache {
	return &Cache{entries: map[string]cacheEntry{}}
}

func recordIDs[T any](records []T, idOf func(T) string) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = idOf(r)
	}
	return ids
}

// GraphAndMermaid returns the cached Graph and rendered Mermaid text for the
// given cycle/task ID sets and filters, computing and storing them on a
// cache miss.
func (c *Cache) GraphAndMermaid(cycleIDs, taskIDs []string, filters Filters, build func() Graph) (Graph, string, error) {
	key := fingerprint(cycleIDs, taskIDs, filters)

	c.mu.Lock()
	entry, ok := c.entries[key]
	c.mu.Unlock()
	if ok {
		return entry.graph, entry.mermaid, nil
	}

	graph := build()
	mermaid, err := RenderMermaid(graph)
	if err != nil {
		return Graph{}, "", err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{graph: graph, mermaid: mermaid}
	c.mu.Unlock()

	return graph, mermaid, nil
}

// Invalidate drops every cached entry, forcing the next GraphAndMermaid
// call to rebuild regardless of fingerprint.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.entries = map[string]cacheEntry{}
	c.mu.Unlock()
}

// AnalyzeRelationshipsCached is the cached entry point callers use instead
// of calling AnalyzeRelationships and RenderMermaid directly: it derives
// the fingerprint from the record sets themselves, so a caller never has
// to track IDs separately from the records it already holds.
func (c *Cache) AnalyzeRelationshipsCached(cycles []record.CycleRecord, tasks []record.TaskRecord, filters Filters) (Graph, string, error) {
	cycleIDs := recordIDs(cycles, func(c record.CycleRecord) string { return c.ID })
	taskIDs := recordIDs(tasks, func(t record.TaskRecord) string { return t.ID })
	return c.GraphAndMermaid(cycleIDs, taskIDs, filters, func() Graph {
		return AnalyzeRelationships(cycles, tasks, filters)
	})
}
