package events

import "fmt"

var allowedEvents = map[string]struct{}{
	// task lifecycle
	"task.submitted":   {},
	"task.validated":   {},
	"task.invalidated": {},
	"task.skipped":     {},
	"task.dispatched":  {},
	"task.started":     {},
	"task.completed":   {},
	"task.failed":      {},
	"task.cancelled":   {},
	"task.retried":     {},

	// graph structure
	"graph.node_added":   {},
	"graph.node_removed": {},
	"graph.edge_added":   {},
	"graph.edge_removed": {},
	"graph.plan_loaded":  {},
	"graph.cleared":      {},

	// executor
	"executor.connected":    {},
	"executor.disconnected": {},
	"executor.result":       {},
	"executor.error":        {},

	// operator
	"operator.cancel":     {},
	"operator.retry":      {},
	"operator.invalidate": {},

	// system
	"system.startup":         {},
	"system.shutdown":        {},
	"system.error":           {},
	"system.startup_restore": {},
}

func Validate(event string) error {
	if _, ok := allowedEvents[event]; !ok {
		return fmt.Errorf("unknown event: %s", event)
	}
	return nil
}
