package graph

import (
	"github.com/darianrosebrook/minebot/internal/task"
)

// ValidationStatus is the declarative judgment of whether a node's
// preconditions can ever be satisfied. It is set by an external validator
// and is independent of the execution lifecycle.
type ValidationStatus string

const (
	ValidationPending ValidationStatus = "pending"
	ValidationValid   ValidationStatus = "valid"
	ValidationInvalid ValidationStatus = "invalid"
	ValidationSkipped ValidationStatus = "skipped"
)

// ExecutionState is the run-time lifecycle of a node.
type ExecutionState string

const (
	ExecutionPending   ExecutionState = "pending"
	ExecutionReady     ExecutionState = "ready"
	ExecutionRunning   ExecutionState = "running"
	ExecutionCompleted ExecutionState = "completed"
	ExecutionFailed    ExecutionState = "failed"
	ExecutionCancelled ExecutionState = "cancelled"
)

// IsTerminal returns true if the state is a final state.
func (s ExecutionState) IsTerminal() bool {
	return s == ExecutionCompleted || s == ExecutionFailed || s == ExecutionCancelled
}

// TaskNode wraps one task with identity, the two state machines, and its
// dependency/dependent adjacency sets.
//
// A TaskNode is a dumb state container: setters are unconditional and do
// not enforce transition legality. That is scheduler-level policy. The
// node is not safe for concurrent use on its own; all access must go
// through the owning DependencyGraph (or another single owner).
type TaskNode struct {
	ID   string
	Task task.Task

	dependencies map[string]struct{}
	dependents   map[string]struct{}
	validation   ValidationStatus
	execution    ExecutionState
	metadata     map[string]interface{}

	// seq is the node's insertion order within its graph, used as the
	// deterministic tie-break when priorities are equal.
	seq int
}

// NewTaskNode creates a node in the initial state: validation and
// execution both pending, empty adjacency sets, empty metadata.
func NewTaskNode(id string, t task.Task) *TaskNode {
	return &TaskNode{
		ID:           id,
		Task:         t,
		dependencies: make(map[string]struct{}),
		dependents:   make(map[string]struct{}),
		validation:   ValidationPending,
		execution:    ExecutionPending,
		metadata:     make(map[string]interface{}),
	}
}

// Seq returns the node's insertion order within its graph.
func (n *TaskNode) Seq() int { return n.seq }

// AddDependency records that this node depends on the given id.
// Adding an existing id is a no-op.
func (n *TaskNode) AddDependency(id string) {
	n.dependencies[id] = struct{}{}
}

// RemoveDependency removes a dependency. Removing a missing id is a no-op.
func (n *TaskNode) RemoveDependency(id string) {
	delete(n.dependencies, id)
}

// AddDependent records that the given id depends on this node.
// Adding an existing id is a no-op.
func (n *TaskNode) AddDependent(id string) {
	n.dependents[id] = struct{}{}
}

// RemoveDependent removes a dependent. Removing a missing id is a no-op.
func (n *TaskNode) RemoveDependent(id string) {
	delete(n.dependents, id)
}

// SetValidationStatus sets the validation status unconditionally.
func (n *TaskNode) SetValidationStatus(s ValidationStatus) {
	n.validation = s
}

// SetExecutionState sets the execution state unconditionally.
func (n *TaskNode) SetExecutionState(s ExecutionState) {
	n.execution = s
}

// ValidationStatus returns the current validation status.
func (n *TaskNode) ValidationStatus() ValidationStatus { return n.validation }

// ExecutionState returns the current execution state.
func (n *TaskNode) ExecutionState() ExecutionState { return n.execution }

// SetMetadata stores an arbitrary annotation on the node.
func (n *TaskNode) SetMetadata(key string, value interface{}) {
	n.metadata[key] = value
}

// Metadata returns the annotation for key, with ok reporting presence.
func (n *TaskNode) Metadata(key string) (interface{}, bool) {
	v, ok := n.metadata[key]
	return v, ok
}

// MetadataSnapshot returns a copy of all annotations.
func (n *TaskNode) MetadataSnapshot() map[string]interface{} {
	out := make(map[string]interface{}, len(n.metadata))
	for k, v := range n.metadata {
		out[k] = v
	}
	return out
}

// IsReady returns true if the node itself is eligible to run: validated
// and not yet started. Dependency satisfaction is the graph's concern.
func (n *TaskNode) IsReady() bool {
	return n.validation == ValidationValid && n.execution == ExecutionPending
}

// IsRunning returns true if the node is currently executing.
func (n *TaskNode) IsRunning() bool { return n.execution == ExecutionRunning }

// IsCompleted returns true if the node finished successfully.
func (n *TaskNode) IsCompleted() bool { return n.execution == ExecutionCompleted }

// IsFailed returns true if the node failed.
func (n *TaskNode) IsFailed() bool { return n.execution == ExecutionFailed }

// IsCancelled returns true if the node was cancelled.
func (n *TaskNode) IsCancelled() bool { return n.execution == ExecutionCancelled }

// HasDependencies returns true if the node has at least one dependency.
func (n *TaskNode) HasDependencies() bool { return len(n.dependencies) > 0 }

// HasDependents returns true if at least one node depends on this one.
func (n *TaskNode) HasDependents() bool { return len(n.dependents) > 0 }

// Dependencies returns a copy of the dependency id set.
func (n *TaskNode) Dependencies() []string {
	out := make([]string, 0, len(n.dependencies))
	for id := range n.dependencies {
		out = append(out, id)
	}
	return out
}

// Dependents returns a copy of the dependent id set.
func (n *TaskNode) Dependents() []string {
	out := make([]string, 0, len(n.dependents))
	for id := range n.dependents {
		out = append(out, id)
	}
	return out
}
