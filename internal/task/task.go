// Package task defines the task payload exchanged between the planner,
// the dependency graph, and game-action executors.
package task

import "time"

// Priority orders tasks for dispatch. Higher values dispatch first.
type Priority int

const (
	PriorityLow    Priority = 20
	PriorityMedium Priority = 50
	PriorityHigh   Priority = 80
)

// Task is an opaque unit of work produced by the planner. The graph does
// not interpret Parameters; it only reads ID and Priority.
type Task struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
	Priority   Priority               `json:"priority"`
}

// Result is the outcome reported by an executor after running a task.
type Result struct {
	Success  bool          `json:"success"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}
