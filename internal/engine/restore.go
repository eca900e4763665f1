package engine

import (
	"github.com/darianrosebrook/minebot/internal/events"
	"github.com/darianrosebrook/minebot/internal/graph"
	"github.com/darianrosebrook/minebot/internal/storage/postgres"
)

// DefaultRestoreLimit is the default number of events to load for restore.
const DefaultRestoreLimit = 1000

// RestoredState is the minimal node state reconstructed from the event
// log: per-task validation and execution outcomes. Tasks that were
// running at crash time are deliberately left pending so they dispatch
// again.
type RestoredState struct {
	Validations map[string]graph.ValidationStatus
	Executions  map[string]graph.ExecutionState
}

// RestoreFromEvents loads events from Postgres and reconstructs node
// state. Returns nil state if no relevant events were found or if the
// client is nil.
func RestoreFromEvents(client *postgres.Client, limit int) (*RestoredState, int, error) {
	if client == nil {
		return nil, 0, nil
	}

	if limit <= 0 {
		limit = DefaultRestoreLimit
	}

	rows, err := client.Query(limit)
	if err != nil {
		return nil, 0, err
	}

	if len(rows) == 0 {
		return nil, 0, nil
	}

	// Reverse to chronological order (Query returns DESC)
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}

	return replayRows(rows), len(rows), nil
}

// replayRows folds chronologically ordered event rows into node state.
func replayRows(rows []postgres.EventRow) *RestoredState {
	state := &RestoredState{
		Validations: make(map[string]graph.ValidationStatus),
		Executions:  make(map[string]graph.ExecutionState),
	}

	for _, row := range rows {
		taskID, ok := row.Fields["task_id"].(string)

		switch row.Event {
		case "graph.cleared":
			state.Validations = make(map[string]graph.ValidationStatus)
			state.Executions = make(map[string]graph.ExecutionState)

		case "task.validated":
			if ok {
				state.Validations[taskID] = graph.ValidationValid
			}

		case "task.invalidated":
			if ok {
				state.Validations[taskID] = graph.ValidationInvalid
			}

		case "task.skipped":
			if ok {
				state.Validations[taskID] = graph.ValidationSkipped
			}

		case "task.completed":
			if ok {
				state.Executions[taskID] = graph.ExecutionCompleted
			}

		case "task.failed":
			if ok {
				state.Executions[taskID] = graph.ExecutionFailed
			}

		case "task.cancelled":
			if ok {
				state.Executions[taskID] = graph.ExecutionCancelled
			}

		case "task.retried":
			if ok {
				state.Executions[taskID] = graph.ExecutionPending
			}

		case "graph.node_removed":
			if ok {
				delete(state.Validations, taskID)
				delete(state.Executions, taskID)
			}
		}
	}

	return state
}

// ApplyRestoredState applies restored state onto the engine's graph.
// Nodes must already exist (a plan reload precedes restore); unknown ids
// are skipped. This does not re-emit task events or dispatch anything.
func (e *Engine) ApplyRestoredState(state *RestoredState) {
	if state == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for id, vs := range state.Validations {
		if n := e.graph.Node(id); n != nil {
			n.SetValidationStatus(vs)
		}
	}

	for id, es := range state.Executions {
		if e.graph.Node(id) == nil {
			continue
		}
		// Route terminal states through the scheduler so its bookkeeping
		// sets stay consistent with node state.
		switch es {
		case graph.ExecutionCompleted:
			e.sched.MarkCompleted(id)
		case graph.ExecutionFailed:
			e.sched.MarkFailed(id)
		case graph.ExecutionCancelled:
			e.sched.MarkCancelled(id)
		default:
			e.graph.Node(id).SetExecutionState(es)
		}
	}
}

// EmitStartupRestore emits the system.startup_restore event.
func EmitStartupRestore(restored int, botID string) {
	events.Emit("info", "system.startup_restore", "", map[string]interface{}{
		"restored": restored,
		"bot_id":   botID,
	})
}
