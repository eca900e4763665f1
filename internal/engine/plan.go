package engine

import (
	"github.com/darianrosebrook/minebot/internal/task"
)

// Plan is the top-level task plan document produced by the planner. It is
// the JSON form of a full graph: edges are carried per-task as depends_on
// and reconstructed on load.
type Plan struct {
	Version int        `json:"version"`
	Name    string     `json:"name,omitempty"`
	Tasks   []PlanTask `json:"tasks"`
}

// PlanTask describes one task and its prerequisites.
type PlanTask struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	Priority   task.Priority          `json:"priority"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
	DependsOn  []string               `json:"depends_on,omitempty"`
}

// Task converts the plan entry to a task payload.
func (pt PlanTask) Task() task.Task {
	return task.Task{
		ID:         pt.ID,
		Type:       pt.Type,
		Parameters: pt.Parameters,
		Priority:   pt.Priority,
	}
}
