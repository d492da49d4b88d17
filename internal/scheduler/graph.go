// Package scheduler builds a dependency graph over planned batches and
// drives concurrent execution against the fixing backend under
// concurrency, timeout, budget and retry discipline.
package scheduler

import (
	"sort"

	"github.com/lintmender/lintmender/internal/common"
	"github.com/lintmender/lintmender/internal/model"
)

// Graph is an acyclic dependency graph over batches. An edge A → B means
// B must wait for A: either the two batches share a file and must
// serialize, or B was planned from state produced by A.
type Graph struct {
	batches    map[string]*model.Batch
	dependents map[string][]string // edge source → targets
	depends    map[string][]string // edge target → sources
	order      []string            // insertion order, used for deterministic scheduling
}

// BuildGraph constructs the dependency graph for a set of batches.
// File-sharing edges are oriented by plan order. Construction rejects
// any edge set that would introduce a cycle and reports a
// SchedulingError rather than executing.
func BuildGraph(batches []*model.Batch) (*Graph, error) {
	g := &Graph{
		batches:    make(map[string]*model.Batch, len(batches)),
		dependents: make(map[string][]string),
		depends:    make(map[string][]string),
	}

	for _, b := range batches {
		if _, ok := g.batches[b.ID]; ok {
			return nil, &common.SchedulingError{Reason: "duplicate batch id " + b.ID}
		}
		g.batches[b.ID] = b
		g.order = append(g.order, b.ID)
	}

	// Serialize batches sharing a file, earlier plan position first.
	for i := 0; i < len(batches); i++ {
		for j := i + 1; j < len(batches); j++ {
			if batches[i].SharesFile(batches[j]) {
				g.addEdge(batches[i].ID, batches[j].ID)
			}
		}
	}

	// Planning lineage: a batch planned from state produced by another
	// waits for that batch's re-lint.
	for _, b := range batches {
		if b.AfterBatch == "" {
			continue
		}
		if _, ok := g.batches[b.AfterBatch]; !ok {
			return nil, &common.SchedulingError{Reason: "batch " + b.ID + " depends on unknown batch " + b.AfterBatch}
		}
		g.addEdge(b.AfterBatch, b.ID)
	}

	if cycle := g.findCycle(); len(cycle) > 0 {
		return nil, &common.SchedulingError{
			Reason: "dependency graph contains a cycle",
			Cycle:  cycle,
		}
	}

	return g, nil
}

func (g *Graph) addEdge(from, to string) {
	for _, existing := range g.dependents[from] {
		if existing == to {
			return
		}
	}
	g.dependents[from] = append(g.dependents[from], to)
	g.depends[to] = append(g.depends[to], from)
}

// findCycle runs Kahn's algorithm and returns the batches left on any
// cycle, or nil when the graph is acyclic.
func (g *Graph) findCycle() []string {
	indegree := make(map[string]int, len(g.batches))
	for id := range g.batches {
		indegree[id] = len(g.depends[id])
	}

	queue := make([]string, 0, len(g.batches))
	for _, id := range g.order {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++

		for _, dep := range g.dependents[id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if visited == len(g.batches) {
		return nil
	}

	var cycle []string
	for id, deg := range indegree {
		if deg > 0 {
			cycle = append(cycle, id)
		}
	}
	sort.Strings(cycle)
	return cycle
}

// Batch returns a batch by id.
func (g *Graph) Batch(id string) *model.Batch {
	return g.batches[id]
}

// Batches returns all batches in insertion order.
func (g *Graph) Batches() []*model.Batch {
	out := make([]*model.Batch, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.batches[id])
	}
	return out
}

// Dependencies returns the ids a batch waits on.
func (g *Graph) Dependencies(id string) []string {
	return g.depends[id]
}

// Dependents returns the ids waiting on a batch.
func (g *Graph) Dependents(id string) []string {
	return g.dependents[id]
}

// Size returns the number of batches in the graph.
func (g *Graph) Size() int {
	return len(g.batches)
}
