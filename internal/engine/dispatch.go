package engine

import (
	"encoding/json"
	"fmt"

	"github.com/darianrosebrook/minebot/internal/graph"
	"github.com/darianrosebrook/minebot/internal/mqtt"
)

// Dispatcher hands a ready node to whatever executes tasks. The engine
// only cares whether handoff succeeded; execution itself is external.
type Dispatcher interface {
	Dispatch(n *graph.TaskNode) error
}

// DispatchCommand is the payload published to an executor's command topic.
type DispatchCommand struct {
	TaskID     string                 `json:"task_id"`
	Type       string                 `json:"type"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// MQTTDispatcher routes ready tasks to registered executors over MQTT,
// matching on task type.
type MQTTDispatcher struct {
	client   *mqtt.Client
	registry *mqtt.ExecutorRegistry
	monitor  *mqtt.Monitor
}

// NewMQTTDispatcher creates a dispatcher over the given transport.
func NewMQTTDispatcher(client *mqtt.Client, registry *mqtt.ExecutorRegistry, monitor *mqtt.Monitor) *MQTTDispatcher {
	return &MQTTDispatcher{
		client:   client,
		registry: registry,
		monitor:  monitor,
	}
}

// Dispatch publishes a dispatch command for the node's task to the
// executor that handles its type. Fails if no connected executor handles
// the type; the node stays pending and is retried on the next tick.
func (d *MQTTDispatcher) Dispatch(n *graph.TaskNode) error {
	ex, err := d.registry.DispatchTarget(n.Task.Type)
	if err != nil {
		return err
	}
	if d.monitor != nil && !d.monitor.IsConnected(ex.ID) {
		return fmt.Errorf("executor %s is offline", ex.ID)
	}

	cmd := DispatchCommand{
		TaskID:     n.ID,
		Type:       n.Task.Type,
		Parameters: n.Task.Parameters,
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to marshal dispatch command: %w", err)
	}

	if err := d.client.Publish(ex.CommandTopic, payload); err != nil {
		return fmt.Errorf("failed to publish dispatch for %s: %w", n.ID, err)
	}
	return nil
}
