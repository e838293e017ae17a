// internal/orchestrator/graph.go
package orchestrator

import (
	"sort"
	"time"

	"github.com/fawad-mazhar/taskflow/internal/models"
)

// Graph maps a task ID to the IDs it depends on
type Graph map[string][]string

// BuildGraph creates a dependency graph from a task snapshot. Dependencies
// that are not part of the snapshot become leaf nodes.
func BuildGraph(tasks []*models.Task) Graph {
	g := make(Graph, len(tasks))
	for _, t := range tasks {
		g[t.ID] = append(g[t.ID], t.Dependencies...)
	}
	for _, t := range tasks {
		for _, dep := range t.Dependencies {
			if _, ok := g[dep]; !ok {
				g[dep] = nil
			}
		}
	}
	return g
}

// nodes returns all node IDs in sorted order
func (g Graph) nodes() []string {
	ids := make([]string, 0, len(g))
	for id := range g {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DetectDeadlocks runs a depth first search over every node and reports the
// cycles closed by back edges. Participants are the members of every strongly
// connected component that contains a cycle, so a node whose cycle closes
// through an already finished node is reported as well.
func DetectDeadlocks(g Graph) models.DeadlockReport {
	d := &detector{
		graph:   g,
		index:   make(map[string]int, len(g)),
		low:     make(map[string]int, len(g)),
		onPath:  make(map[string]int, len(g)),
		onStack: make(map[string]bool, len(g)),
		members: make(map[string]bool),
	}

	for _, id := range g.nodes() {
		if _, seen := d.index[id]; !seen {
			d.visit(id)
		}
	}

	participants := make([]string, 0, len(d.members))
	for id := range d.members {
		participants = append(participants, id)
	}
	sort.Strings(participants)

	return models.DeadlockReport{
		HasDeadlock:  len(participants) > 0,
		Participants: participants,
		Cycles:       d.cycles,
	}
}

// detector is Tarjan's algorithm plus the current DFS path for cycle reports
type detector struct {
	graph Graph
	next  int
	index map[string]int
	low   map[string]int

	path   []string
	onPath map[string]int // node -> position in path

	stack   []string
	onStack map[string]bool

	members map[string]bool
	cycles  [][]string
}

func (d *detector) visit(id string) {
	d.index[id] = d.next
	d.low[id] = d.next
	d.next++

	d.onPath[id] = len(d.path)
	d.path = append(d.path, id)
	d.stack = append(d.stack, id)
	d.onStack[id] = true

	deps := append([]string(nil), d.graph[id]...)
	sort.Strings(deps)

	selfLoop := false
	for _, dep := range deps {
		if dep == id {
			selfLoop = true
		}
		if pos, ok := d.onPath[dep]; ok {
			d.cycles = append(d.cycles, append([]string(nil), d.path[pos:]...))
		}

		if _, seen := d.index[dep]; !seen {
			d.visit(dep)
			d.low[id] = min(d.low[id], d.low[dep])
		} else if d.onStack[dep] {
			d.low[id] = min(d.low[id], d.index[dep])
		}
	}

	d.path = d.path[:len(d.path)-1]
	delete(d.onPath, id)

	if d.low[id] != d.index[id] {
		return
	}

	// id is the root of a component: pop it
	var component []string
	for {
		n := d.stack[len(d.stack)-1]
		d.stack = d.stack[:len(d.stack)-1]
		delete(d.onStack, n)
		component = append(component, n)
		if n == id {
			break
		}
	}
	if len(component) > 1 || selfLoop {
		for _, n := range component {
			d.members[n] = true
		}
	}
}

// WouldCreateCycle reports whether adding the edge taskID -> dependencyID
// closes a cycle, i.e. whether dependencyID already reaches taskID.
func WouldCreateCycle(g Graph, taskID, dependencyID string) bool {
	if taskID == dependencyID {
		return true
	}

	seen := map[string]bool{dependencyID: true}
	pending := []string{dependencyID}
	for len(pending) > 0 {
		id := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		for _, dep := range g[id] {
			if dep == taskID {
				return true
			}
			if !seen[dep] {
				seen[dep] = true
				pending = append(pending, dep)
			}
		}
	}
	return false
}

// ReadyTasks returns the tasks of the snapshot that can be dispatched at now
func ReadyTasks(tasks []*models.Task, now time.Time) []*models.Task {
	done := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		if t.Completed {
			done[t.ID] = true
		}
	}
	isDone := func(id string) bool { return done[id] }

	var ready []*models.Task
	for _, t := range tasks {
		if t.IsReadyToRun(now, isDone) {
			ready = append(ready, t)
		}
	}
	return ready
}
