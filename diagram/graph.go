// Package diagram builds the relationship graph between cycles and tasks
// and renders it as Mermaid text (§4.8). It is deliberately thin: the only
// edges are the ones CycleRecord.ChildCycleIDs and CycleRecord.TaskIDs name
// explicitly, no implicit inference.
package diagram

import (
	"sort"

	"github.com/gitgov-dev/gitgov-core/record"
)

// NodeKind distinguishes the two node shapes the renderer draws.
type NodeKind string

const (
	NodeCycle NodeKind = "cycle"
	NodeTask  NodeKind = "task"
)

// Node is one vertex of the relationship graph (§4.8).
type Node struct {
	ID     string   `json:"id"`
	Kind   NodeKind `json:"kind"`
	Title  string   `json:"title"`
	Status string   `json:"status"`
}

// EdgeKind names the relationship an edge represents.
type EdgeKind string

const (
	EdgeChildCycle EdgeKind = "childCycle"
	EdgeHasTask    EdgeKind = "hasTask"
)

// Edge is one directed relationship in the graph (§4.8).
type Edge struct {
	From string   `json:"from"`
	To   string   `json:"to"`
	Kind EdgeKind `json:"kind"`
}

// Graph is the output of AnalyzeRelationships (§4.8).
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Filters narrows AnalyzeRelationships to a subgraph (§4.8). PackageName
// matches a task or cycle carrying a "package:<name>" tag in its Tags list,
// the convention this implementation adopts since neither TaskRecord nor
// CycleRecord carries a dedicated package field.
type Filters struct {
	CycleID         string
	TaskID          string
	PackageName     string
	IncludeArchived bool
}

func hasPackageTag(tags []string, pkg string) bool {
	if pkg == "" {
		return true
	}
	want := "package:" + pkg
	for _, t := range tags {
		if t == want {
			return true
		}
	}
	return false
}

// AnalyzeRelationships builds the authoritative cycle/task relationship
// graph, deriving edges only from CycleRecord.ChildCycleIDs and
// CycleRecord.TaskIDs, then narrows it per filters (§4.8).
func AnalyzeRelationships(cycles []record.CycleRecord, tasks []record.TaskRecord, filters Filters) Graph {
	taskByID := make(map[string]record.TaskRecord, len(tasks))
	for _, t := range tasks {
		taskByID[t.ID] = t
	}

	nodes := map[string]Node{}
	var edges []Edge

	for _, c := range cycles {
		nodes[c.ID] = Node{ID: c.ID, Kind: NodeCycle, Title: c.Title, Status: c.Status}
		for _, childID := range c.ChildCycleIDs {
			edges = append(edges, Edge{From: c.ID, To: childID, Kind: EdgeChildCycle})
		}
		for _, taskID := range c.TaskIDs {
			edges = append(edges, Edge{From: c.ID, To: taskID, Kind: EdgeHasTask})
		}
	}
	for _, t := range tasks {
		nodes[t.ID] = Node{ID: t.ID, Kind: NodeTask, Title: t.Title, Status: t.Status}
	}

	// Drop edges that reference a node absent from either record set
	// (e.g. a childCycleId pointing at a cycle not passed in).
	edges = filterEdges(edges, func(e Edge) bool {
		_, fromOK := nodes[e.From]
		_, toOK := nodes[e.To]
		return fromOK && toOK
	})

	allowed := func(n Node) bool {
		if !filters.IncludeArchived && n.Status == "archived" {
			return false
		}
		tags := taskByID[n.ID].Tags
		if n.Kind == NodeCycle {
			for _, c := range cycles {
				if c.ID == n.ID {
					tags = c.Tags
					break
				}
			}
		}
		return hasPackageTag(tags, filters.PackageName)
	}

	for id, n := range nodes {
		if !allowed(n) {
			delete(nodes, id)
		}
	}
	edges = filterEdges(edges, func(e Edge) bool {
		_, fromOK := nodes[e.From]
		_, toOK := nodes[e.To]
		return fromOK && toOK
	})

	if filters.CycleID != "" || filters.TaskID != "" {
		reachable := reachableFrom(nodes, edges, filters.CycleID, filters.TaskID)
		for id := range nodes {
			if !reachable[id] {
				delete(nodes, id)
			}
		}
		edges = filterEdges(edges, func(e Edge) bool {
			return reachable[e.From] && reachable[e.To]
		})
	}

	return Graph{Nodes: sortedNodes(nodes), Edges: sortedEdges(edges)}
}

// reachableFrom computes the set of node IDs relevant to a cycleId/taskId
// focus. A cycleId focus pulls in everything reachable downward from that
// cycle (its full subtree). A taskId focus given alone pulls in only that
// task plus the cycles that directly own it, without expanding into their
// subtrees; combined with a cycleId focus, the taskId further narrows the
// subtree to the path leading to that task.
func reachableFrom(nodes map[string]Node, edges []Edge, cycleID, taskID string) map[string]bool {
	reachable := map[string]bool{}

	if cycleID != "" {
		queue := []string{cycleID}
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			if reachable[id] {
				continue
			}
			if _, ok := nodes[id]; !ok {
				continue
			}
			reachable[id] = true
			for _, e := range edges {
				if e.From == id {
					queue = append(queue, e.To)
				}
			}
		}
	}

	if taskID != "" {
		if cycleID == "" {
			if _, ok := nodes[taskID]; ok {
				reachable[taskID] = true
			}
			for _, e := range edges {
				if e.Kind == EdgeHasTask && e.To == taskID {
					reachable[e.From] = true
				}
			}
		} else {
			// Narrow the cycle subtree down to ancestors of taskID plus
			// the task itself, dropping sibling branches that don't lead
			// to it.
			keep := map[string]bool{}
			var mark func(string) bool
			mark = func(id string) bool {
				if id == taskID {
					keep[id] = true
					return true
				}
				found := false
				for _, e := range edges {
					if e.From == id && reachable[e.To] && mark(e.To) {
						keep[id] = true
						found = true
					}
				}
				return found
			}
			mark(cycleID)
			if len(keep) > 0 {
				reachable = keep
			}
		}
	}

	return reachable
}

func filterEdges(edges []Edge, keep func(Edge) bool) []Edge {
	out := edges[:0:0]
	for _, e := range edges {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func sortedNodes(set map[string]Node) []Node {
	out := make([]Node, 0, len(set))
	for _, n := range set {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortedEdges(edges []Edge) []Edge {
	out := append([]Edge(nil), edges...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		if out[i].To != out[j].To {
			return out[i].To < out[j].To
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}
