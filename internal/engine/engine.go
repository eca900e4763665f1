// Package engine ties the dependency graph and scheduler to the outside
// world: it accepts task submissions and plans, dispatches ready tasks to
// executors, applies their results, and emits an event for every
// transition.
package engine

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/darianrosebrook/minebot/internal/events"
	"github.com/darianrosebrook/minebot/internal/graph"
	"github.com/darianrosebrook/minebot/internal/mqtt"
	"github.com/darianrosebrook/minebot/internal/scheduler"
	"github.com/darianrosebrook/minebot/internal/task"
)

// MetadataResult is the node metadata key the task result is attached to.
const MetadataResult = "result"

// Engine owns the graph and scheduler behind a single mutex. All
// structural mutation and state transitions are serialized here; task
// execution itself runs concurrently in external executors.
type Engine struct {
	mu         sync.Mutex
	graph      *graph.DependencyGraph
	sched      *scheduler.Scheduler
	dispatcher Dispatcher
}

// New creates an engine with an empty graph.
func New(dispatcher Dispatcher) *Engine {
	g := graph.New()
	return &Engine{
		graph:      g,
		sched:      scheduler.New(g),
		dispatcher: dispatcher,
	}
}

// Graph returns the underlying graph for read-side consumers (API).
func (e *Engine) Graph() *graph.DependencyGraph { return e.graph }

// Submit wraps the task in a node and links its prerequisites. If a
// prerequisite id is unknown the node is stored but marked invalid, so it
// can never dispatch against a half-declared contract. Resubmitting an
// existing task id returns the live node untouched: a planner retrying a
// publish must not reset state or grow edges.
func (e *Engine) Submit(t task.Task, dependsOn []string) *graph.TaskNode {
	e.mu.Lock()
	defer e.mu.Unlock()

	if t.ID != "" {
		if existing := e.graph.Node(t.ID); existing != nil {
			events.Emit("warning", "task.submitted", "duplicate task id, submission ignored", map[string]interface{}{
				"task_id": t.ID,
			})
			return existing
		}
	}

	n := e.graph.AddNode(t, t.ID)
	events.Emit("info", "task.submitted", "", map[string]interface{}{
		"task_id":  n.ID,
		"type":     t.Type,
		"priority": int(t.Priority),
	})
	events.Emit("info", "graph.node_added", "", map[string]interface{}{
		"task_id": n.ID,
	})

	for _, dep := range dependsOn {
		if err := e.graph.AddEdge(dep, n.ID); err != nil {
			n.SetValidationStatus(graph.ValidationInvalid)
			events.Emit("error", "task.invalidated", "unknown dependency", map[string]interface{}{
				"task_id":    n.ID,
				"depends_on": dep,
				"error":      err.Error(),
			})
			continue
		}
		events.Emit("info", "graph.edge_added", "", map[string]interface{}{
			"from": dep,
			"to":   n.ID,
		})
	}

	return n
}

// ApplyPlan loads a full plan into the graph. Tasks arrive pre-validated
// by the planner, so they enter as valid/pending. If the plan's edges
// form a cycle the plan is rejected and the graph is left as it was.
func (e *Engine) ApplyPlan(p *Plan) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	added := make([]string, 0, len(p.Tasks))
	rollback := func() {
		for _, id := range added {
			e.graph.RemoveNode(id)
			e.sched.Forget(id)
		}
	}

	for _, pt := range p.Tasks {
		if e.graph.Node(pt.ID) != nil {
			rollback()
			return fmt.Errorf("plan task %q already exists in graph", pt.ID)
		}
		e.graph.AddNode(pt.Task(), pt.ID)
		added = append(added, pt.ID)
	}

	for _, pt := range p.Tasks {
		for _, dep := range pt.DependsOn {
			if err := e.graph.AddEdge(dep, pt.ID); err != nil {
				rollback()
				return fmt.Errorf("plan edge %s -> %s: %w", dep, pt.ID, err)
			}
		}
	}

	if e.graph.HasCycle() {
		rollback()
		return graph.ErrCyclicGraph
	}

	for _, id := range added {
		e.graph.Node(id).SetValidationStatus(graph.ValidationValid)
	}

	events.Emit("info", "graph.plan_loaded", "", map[string]interface{}{
		"name":  p.Name,
		"tasks": len(p.Tasks),
	})
	return nil
}

// Validate records the external validator's judgment for a node.
func (e *Engine) Validate(id string, status graph.ValidationStatus) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := e.graph.Node(id)
	if n == nil {
		return fmt.Errorf("node not found: %s", id)
	}
	n.SetValidationStatus(status)

	name := "task.validated"
	switch status {
	case graph.ValidationInvalid:
		name = "task.invalidated"
	case graph.ValidationSkipped:
		name = "task.skipped"
	}
	events.Emit("info", name, "", map[string]interface{}{
		"task_id": id,
		"status":  string(status),
	})
	return nil
}

// Link adds a dependency edge between two existing nodes.
func (e *Engine) Link(fromID, toID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.graph.AddEdge(fromID, toID); err != nil {
		return err
	}
	events.Emit("info", "graph.edge_added", "", map[string]interface{}{
		"from": fromID,
		"to":   toID,
	})
	return nil
}

// Unlink removes a dependency edge.
func (e *Engine) Unlink(fromID, toID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.graph.RemoveEdge(fromID, toID)
	events.Emit("info", "graph.edge_removed", "", map[string]interface{}{
		"from": fromID,
		"to":   toID,
	})
}

// Remove deletes a node and its bookkeeping. Dependents keep their other
// edges; a removed dependency counts as satisfied under the readiness rule.
func (e *Engine) Remove(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.graph.RemoveNode(id)
	e.sched.Forget(id)
	events.Emit("info", "graph.node_removed", "", map[string]interface{}{
		"task_id": id,
	})
}

// Tick runs one scheduling pass: dispatch every ready node, highest
// priority first. A node whose dispatch fails stays pending and is
// retried on the next tick. Returns the number of tasks dispatched.
func (e *Engine) Tick() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	dispatched := 0
	for _, n := range e.sched.NextBatch() {
		if err := e.dispatcher.Dispatch(n); err != nil {
			events.Emit("warning", "executor.error", "dispatch failed", map[string]interface{}{
				"task_id": n.ID,
				"type":    n.Task.Type,
				"error":   err.Error(),
			})
			continue
		}

		if err := e.sched.MarkRunning(n.ID); err != nil {
			// Lost the race against a concurrent transition; skip.
			continue
		}
		events.Emit("info", "task.dispatched", "", map[string]interface{}{
			"task_id":  n.ID,
			"type":     n.Task.Type,
			"priority": int(n.Task.Priority),
		})
		events.Emit("info", "task.started", "", map[string]interface{}{
			"task_id": n.ID,
		})
		dispatched++
	}
	return dispatched
}

// Run polls the scheduler at the given interval until ctx is done.
func (e *Engine) Run(done <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			e.Tick()
		}
	}
}

// HandleResult applies an executor's result to the node: completed on
// success, failed otherwise. The result is attached as node metadata for
// downstream consumers.
func (e *Engine) HandleResult(res *mqtt.ResultPayload) {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := e.graph.Node(res.TaskID)
	if n == nil {
		events.Emit("warning", "system.error", "result for unknown task", map[string]interface{}{
			"task_id": res.TaskID,
		})
		return
	}

	n.SetMetadata(MetadataResult, task.Result{
		Success:  res.Success,
		Error:    res.Error,
		Duration: time.Duration(res.DurationMS) * time.Millisecond,
	})

	if res.Success {
		e.sched.MarkCompleted(n.ID)
		events.Emit("info", "task.completed", "", map[string]interface{}{
			"task_id":     n.ID,
			"executor_id": res.ExecutorID,
			"duration_ms": res.DurationMS,
		})
		return
	}

	e.sched.MarkFailed(n.ID)
	events.Emit("error", "task.failed", res.Error, map[string]interface{}{
		"task_id":     n.ID,
		"executor_id": res.ExecutorID,
		"duration_ms": res.DurationMS,
	})
}

// HandleSubmission implements mqtt.Handler for planner submissions.
func (e *Engine) HandleSubmission(sub *mqtt.TaskSubmission) {
	e.Submit(sub.Task, sub.DependsOn)
}

// Cancel marks a node cancelled. Dependents are not cascaded; they stay
// blocked until the operator retries this node, unlinks them, or
// invalidates them.
func (e *Engine) Cancel(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.graph.Node(id) == nil {
		return fmt.Errorf("node not found: %s", id)
	}
	if err := e.sched.MarkCancelled(id); err != nil {
		return err
	}
	events.Emit("info", "task.cancelled", "", map[string]interface{}{
		"task_id": id,
	})
	return nil
}

// Retry resets a failed or cancelled node back to pending.
func (e *Engine) Retry(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.sched.Retry(id); err != nil {
		return err
	}
	events.Emit("info", "task.retried", "", map[string]interface{}{
		"task_id": id,
	})
	return nil
}

// Invalidate permanently blocks a node.
func (e *Engine) Invalidate(id string) error {
	return e.Validate(id, graph.ValidationInvalid)
}

// HasNode returns true if the node exists.
func (e *Engine) HasNode(id string) bool {
	return e.graph.Node(id) != nil
}

// Status returns the scheduler's state counts.
func (e *Engine) Status() scheduler.Status {
	return e.sched.Status()
}

// NodeView is the serializable form of one node; a full-graph dump is
// simply the array of these, since edges are reproducible from the
// per-node dependency sets.
type NodeView struct {
	ID               string                 `json:"id"`
	Task             task.Task              `json:"task"`
	Dependencies     []string               `json:"dependencies"`
	Dependents       []string               `json:"dependents"`
	ValidationStatus graph.ValidationStatus `json:"validation_status"`
	ExecutionState   graph.ExecutionState   `json:"execution_state"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

// Snapshot returns a full-graph dump ordered by node insertion.
func (e *Engine) Snapshot() []NodeView {
	e.mu.Lock()
	defer e.mu.Unlock()

	nodes := e.graph.Nodes()
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Seq() < nodes[j].Seq() })

	views := make([]NodeView, 0, len(nodes))
	for _, n := range nodes {
		views = append(views, NodeView{
			ID:               n.ID,
			Task:             n.Task,
			Dependencies:     n.Dependencies(),
			Dependents:       n.Dependents(),
			ValidationStatus: n.ValidationStatus(),
			ExecutionState:   n.ExecutionState(),
			Metadata:         n.MetadataSnapshot(),
		})
	}
	return views
}

// ReadyView returns the ids of currently dispatchable nodes in priority order.
func (e *Engine) ReadyView() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	batch := e.sched.NextBatch()
	ids := make([]string, 0, len(batch))
	for _, n := range batch {
		ids = append(ids, n.ID)
	}
	return ids
}

// Clear drops all graph and scheduler state.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.graph.Clear()
	e.sched.Clear()
	events.Emit("info", "graph.cleared", "", nil)
}
