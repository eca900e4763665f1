// Package graph implements the task dependency graph: nodes wrapping
// tasks, directed dependency edges, cycle detection, topological ordering,
// and the readiness query the scheduler polls.
package graph

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/darianrosebrook/minebot/internal/task"
)

// ErrCyclicGraph is returned when a topological order is requested on a
// graph that contains a cycle.
var ErrCyclicGraph = errors.New("graph contains a cycle")

// ErrSelfEdge is returned when an edge would make a node its own dependency.
var ErrSelfEdge = errors.New("self-referential edge not allowed")

// MissingNodeError is returned by AddEdge when an endpoint does not exist.
type MissingNodeError struct {
	ID string
}

func (e *MissingNodeError) Error() string {
	return "node not found: " + e.ID
}

// DependencyGraph owns all task nodes and their dependency edges. Edges
// run dependency -> dependent: AddEdge(a, b) means b cannot run until a
// completes or is skipped.
//
// All operations are guarded by a single mutex; the graph assumes one
// writer at a time to node and edge state.
type DependencyGraph struct {
	mu    sync.RWMutex
	nodes map[string]*TaskNode
	seq   int
}

// New creates an empty dependency graph.
func New() *DependencyGraph {
	return &DependencyGraph{
		nodes: make(map[string]*TaskNode),
	}
}

// AddNode wraps the task in a new node and stores it. If id is empty a
// unique id is generated. If a node with the id already exists it is
// returned unchanged: replacing it would leave other nodes' adjacency
// sets pointing at a node that no longer points back.
func (g *DependencyGraph) AddNode(t task.Task, id string) *TaskNode {
	g.mu.Lock()
	defer g.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
	} else if existing, ok := g.nodes[id]; ok {
		return existing
	}

	n := NewTaskNode(id, t)
	n.seq = g.seq
	g.seq++
	g.nodes[id] = n
	return n
}

// Node returns the node with the given id, or nil if absent.
func (g *DependencyGraph) Node(id string) *TaskNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[id]
}

// Len returns the number of nodes in the graph.
func (g *DependencyGraph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// RemoveNode deletes a node and scrubs its id from every other node's
// adjacency sets. Removing an absent id is a no-op. Removal never fails,
// even if the node has live dependents; deciding whether a dangling
// dependent should become invalid is the caller's call.
func (g *DependencyGraph) RemoveNode(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.nodes[id]
	if !ok {
		return
	}

	for depID := range n.dependencies {
		if dep, ok := g.nodes[depID]; ok {
			dep.RemoveDependent(id)
		}
	}
	for depID := range n.dependents {
		if dep, ok := g.nodes[depID]; ok {
			dep.RemoveDependency(id)
		}
	}

	delete(g.nodes, id)
}

// AddEdge declares that toID depends on fromID. Both nodes must exist and
// the edge may not be self-referential; otherwise the graph is left
// unmodified. Adding an existing edge is a no-op.
func (g *DependencyGraph) AddEdge(fromID, toID string) error {
	if fromID == toID {
		return fmt.Errorf("%w: %s", ErrSelfEdge, fromID)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	from, ok := g.nodes[fromID]
	if !ok {
		return &MissingNodeError{ID: fromID}
	}
	to, ok := g.nodes[toID]
	if !ok {
		return &MissingNodeError{ID: toID}
	}

	to.AddDependency(fromID)
	from.AddDependent(toID)
	return nil
}

// RemoveEdge removes the dependency of toID on fromID. A no-op if either
// node or the edge is absent.
func (g *DependencyGraph) RemoveEdge(fromID, toID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	from, ok := g.nodes[fromID]
	if !ok {
		return
	}
	to, ok := g.nodes[toID]
	if !ok {
		return
	}

	to.RemoveDependency(fromID)
	from.RemoveDependent(toID)
}

// HasCycle reports whether the dependency relation contains a cycle.
//
// Classic depth-first search over the dependents direction with two sets:
// temporary marks nodes on the current recursion stack, permanent marks
// nodes fully explored and known safe. Every node is tried as a root so
// disconnected graphs are covered.
func (g *DependencyGraph) HasCycle() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	permanent := make(map[string]bool, len(g.nodes))
	temporary := make(map[string]bool)

	var visit func(n *TaskNode) bool
	visit = func(n *TaskNode) bool {
		if permanent[n.ID] {
			return false
		}
		if temporary[n.ID] {
			return true
		}

		temporary[n.ID] = true
		for depID := range n.dependents {
			if dep, ok := g.nodes[depID]; ok {
				if visit(dep) {
					return true
				}
			}
		}
		delete(temporary, n.ID)
		permanent[n.ID] = true
		return false
	}

	for _, n := range g.nodes {
		if !permanent[n.ID] {
			if visit(n) {
				return true
			}
		}
	}
	return false
}

// TopologicalOrder returns an ordering in which every dependency appears
// before its dependents. Returns ErrCyclicGraph if the graph has a cycle.
//
// DFS postorder over the dependents direction, reversed. Every node is
// visited exactly once regardless of connectivity.
func (g *DependencyGraph) TopologicalOrder() ([]string, error) {
	if g.HasCycle() {
		return nil, ErrCyclicGraph
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	visited := make(map[string]bool, len(g.nodes))
	order := make([]string, 0, len(g.nodes))

	var visit func(n *TaskNode)
	visit = func(n *TaskNode) {
		if visited[n.ID] {
			return
		}
		visited[n.ID] = true
		for depID := range n.dependents {
			if dep, ok := g.nodes[depID]; ok {
				visit(dep)
			}
		}
		order = append(order, n.ID)
	}

	for _, n := range g.nodes {
		visit(n)
	}

	// Postorder places dependents before their dependencies; reverse it.
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order, nil
}

// ReadyNodes returns every node eligible for dispatch: the node itself is
// valid and pending, and every dependency is satisfied. A dependency is
// satisfied when its execution state is completed or its validation
// status is skipped. A dependency id that no longer resolves to a node
// (already pruned) counts as satisfied. A dependency that is running,
// pending, failed, or cancelled blocks the node.
func (g *DependencyGraph) ReadyNodes() []*TaskNode {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ready []*TaskNode
	for _, n := range g.nodes {
		if !n.IsReady() {
			continue
		}
		if g.dependenciesSatisfied(n) {
			ready = append(ready, n)
		}
	}
	return ready
}

func (g *DependencyGraph) dependenciesSatisfied(n *TaskNode) bool {
	for depID := range n.dependencies {
		dep, ok := g.nodes[depID]
		if !ok {
			continue
		}
		if dep.IsCompleted() || dep.ValidationStatus() == ValidationSkipped {
			continue
		}
		return false
	}
	return true
}

// Dependencies returns a copy of the dependency set for id. An absent id
// yields an empty slice.
func (g *DependencyGraph) Dependencies(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return []string{}
	}
	return n.Dependencies()
}

// Dependents returns a copy of the dependent set for id. An absent id
// yields an empty slice.
func (g *DependencyGraph) Dependents(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return []string{}
	}
	return n.Dependents()
}

// Nodes returns all nodes in the graph in unspecified order.
func (g *DependencyGraph) Nodes() []*TaskNode {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]*TaskNode, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	return out
}

// Clear drops all nodes and edges.
func (g *DependencyGraph) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes = make(map[string]*TaskNode)
	g.seq = 0
}
