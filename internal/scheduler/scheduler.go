// Package scheduler turns the graph's readiness signal into a
// deterministic dispatch order and prevents double-dispatch.
package scheduler

import (
	"fmt"
	"sort"
	"sync"

	"github.com/darianrosebrook/minebot/internal/graph"
)

// Scheduler tracks which nodes are running, completed, and failed, and
// orders ready nodes by task priority for dispatch. The three id sets are
// cached views over node execution state and are kept consistent with it
// on every transition.
type Scheduler struct {
	mu    sync.Mutex
	graph *graph.DependencyGraph

	running   map[string]struct{}
	completed map[string]struct{}
	failed    map[string]struct{}
}

// Status is a snapshot of the scheduler's current state counts.
type Status struct {
	Total     int `json:"total"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// New creates a scheduler over the given graph.
func New(g *graph.DependencyGraph) *Scheduler {
	return &Scheduler{
		graph:     g,
		running:   make(map[string]struct{}),
		completed: make(map[string]struct{}),
		failed:    make(map[string]struct{}),
	}
}

// NextBatch returns the nodes eligible for dispatch, highest priority
// first. Nodes already running are filtered out; ties are broken by
// insertion order so the result is deterministic. The caller must mark a
// node running before the next tick or it will be returned again.
func (s *Scheduler) NextBatch() []*graph.TaskNode {
	ready := s.graph.ReadyNodes()

	s.mu.Lock()
	defer s.mu.Unlock()

	batch := ready[:0]
	for _, n := range ready {
		if _, ok := s.running[n.ID]; !ok {
			batch = append(batch, n)
		}
	}

	sort.Slice(batch, func(i, j int) bool {
		if batch[i].Task.Priority != batch[j].Task.Priority {
			return batch[i].Task.Priority > batch[j].Task.Priority
		}
		return batch[i].Seq() < batch[j].Seq()
	})

	return batch
}

// MarkRunning transitions the node to running and records it in the
// running set. Returns an error if the node is absent or already running,
// so the same node is never dispatched twice.
func (s *Scheduler) MarkRunning(id string) error {
	n := s.graph.Node(id)
	if n == nil {
		return fmt.Errorf("node not found: %s", id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.running[id]; ok {
		return fmt.Errorf("node already running: %s", id)
	}

	n.SetExecutionState(graph.ExecutionRunning)
	s.running[id] = struct{}{}
	return nil
}

// MarkCompleted transitions the node to completed and moves its id from
// the running set to the completed set.
func (s *Scheduler) MarkCompleted(id string) error {
	return s.finish(id, graph.ExecutionCompleted)
}

// MarkFailed transitions the node to failed and moves its id from the
// running set to the failed set. Dependents stay permanently blocked
// until the caller intervenes (retry, edge removal, or invalidation).
func (s *Scheduler) MarkFailed(id string) error {
	return s.finish(id, graph.ExecutionFailed)
}

// MarkCancelled transitions the node to cancelled and removes it from the
// running set. Cancellation does not cascade to dependents.
func (s *Scheduler) MarkCancelled(id string) error {
	return s.finish(id, graph.ExecutionCancelled)
}

func (s *Scheduler) finish(id string, state graph.ExecutionState) error {
	n := s.graph.Node(id)
	if n == nil {
		return fmt.Errorf("node not found: %s", id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n.SetExecutionState(state)
	delete(s.running, id)
	delete(s.completed, id)
	delete(s.failed, id)

	switch state {
	case graph.ExecutionCompleted:
		s.completed[id] = struct{}{}
	case graph.ExecutionFailed:
		s.failed[id] = struct{}{}
	}
	return nil
}

// Retry resets a failed or cancelled node back to pending so the graph
// reports it ready again once its own dependencies allow. Returns an
// error if the node is absent or not in a retryable state.
func (s *Scheduler) Retry(id string) error {
	n := s.graph.Node(id)
	if n == nil {
		return fmt.Errorf("node not found: %s", id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !n.IsFailed() && !n.IsCancelled() {
		return fmt.Errorf("node %s is %s, not retryable", id, n.ExecutionState())
	}

	n.SetExecutionState(graph.ExecutionPending)
	delete(s.failed, id)
	delete(s.completed, id)
	return nil
}

// IsRunning returns true if the node is in the running set.
func (s *Scheduler) IsRunning(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.running[id]
	return ok
}

// Forget drops an id from all bookkeeping sets. Use after removing a
// node from the graph.
func (s *Scheduler) Forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, id)
	delete(s.completed, id)
	delete(s.failed, id)
}

// Status returns current state counts.
func (s *Scheduler) Status() Status {
	total := s.graph.Len()

	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Total:     total,
		Running:   len(s.running),
		Completed: len(s.completed),
		Failed:    len(s.failed),
	}
}

// Clear resets all bookkeeping. Use together with graph.Clear.
func (s *Scheduler) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = make(map[string]struct{})
	s.completed = make(map[string]struct{})
	s.failed = make(map[string]struct{})
}
