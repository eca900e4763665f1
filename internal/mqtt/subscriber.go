package mqtt

import (
	"encoding/json"
	"fmt"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/darianrosebrook/minebot/internal/events"
	"github.com/darianrosebrook/minebot/internal/task"
)

// TaskSubmission is a v1 task submission message from a planner. DependsOn
// names previously submitted task ids that must complete first.
type TaskSubmission struct {
	Version   int       `json:"version"`
	Task      task.Task `json:"task"`
	DependsOn []string  `json:"depends_on,omitempty"`
}

// ResultPayload is a task result message from an executor.
type ResultPayload struct {
	TaskID     string `json:"task_id"`
	ExecutorID string `json:"executor_id"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// ParseSubmission parses a task submission from JSON bytes.
func ParseSubmission(data []byte) (*TaskSubmission, error) {
	var sub TaskSubmission
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, fmt.Errorf("invalid submission JSON: %w", err)
	}
	if sub.Version != 1 {
		return nil, fmt.Errorf("unsupported submission version: %d", sub.Version)
	}
	if sub.Task.Type == "" {
		return nil, fmt.Errorf("task.type is required")
	}
	return &sub, nil
}

// ParseResult parses a result payload from JSON bytes.
func ParseResult(data []byte) (*ResultPayload, error) {
	var res ResultPayload
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("invalid result JSON: %w", err)
	}
	if res.TaskID == "" {
		return nil, fmt.Errorf("task_id is required")
	}
	return &res, nil
}

// Handler receives parsed task traffic. The engine implements this.
type Handler interface {
	HandleSubmission(sub *TaskSubmission)
	HandleResult(res *ResultPayload)
}

// TaskSubscriber manages the bot's subscriptions: plan submissions and
// executor announce/heartbeat/result topics. Subscription handling is
// idempotent across reconnects.
type TaskSubscriber struct {
	mu         sync.RWMutex
	client     *Client
	botID      string
	monitor    *Monitor
	handler    Handler
	subscribed map[string]bool // topic -> subscribed
}

// NewTaskSubscriber creates a new task subscriber.
func NewTaskSubscriber(client *Client, botID string, monitor *Monitor, handler Handler) *TaskSubscriber {
	return &TaskSubscriber{
		client:     client,
		botID:      botID,
		monitor:    monitor,
		handler:    handler,
		subscribed: make(map[string]bool),
	}
}

// SubscribeAll subscribes to all of the bot's topics. Safe to call again
// after a reconnect; already-subscribed topics are skipped.
func (s *TaskSubscriber) SubscribeAll() error {
	routes := map[string]paho.MessageHandler{
		Topic(s.botID, TopicTaskSubmit):        s.handleSubmit,
		Topic(s.botID, TopicTaskResult):        s.handleResult,
		Topic(s.botID, TopicExecutorAnnounce):  s.handleAnnounce,
		Topic(s.botID, TopicExecutorHeartbeat): s.handleHeartbeat,
	}

	for topic, handler := range routes {
		if err := s.subscribe(topic, handler); err != nil {
			events.Emit("error", "system.error", "failed to subscribe", map[string]interface{}{
				"topic": topic,
				"error": err.Error(),
			})
			return err
		}
	}
	return nil
}

func (s *TaskSubscriber) subscribe(topic string, handler paho.MessageHandler) error {
	s.mu.Lock()
	if s.subscribed[topic] {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.client.Subscribe(topic, handler); err != nil {
		return err
	}

	s.mu.Lock()
	s.subscribed[topic] = true
	s.mu.Unlock()
	return nil
}

func (s *TaskSubscriber) handleSubmit(_ paho.Client, msg paho.Message) {
	sub, err := ParseSubmission(msg.Payload())
	if err != nil {
		events.Emit("error", "system.error", "bad task submission", map[string]interface{}{
			"topic": msg.Topic(),
			"error": err.Error(),
		})
		return
	}
	s.handler.HandleSubmission(sub)
}

func (s *TaskSubscriber) handleResult(_ paho.Client, msg paho.Message) {
	res, err := ParseResult(msg.Payload())
	if err != nil {
		events.Emit("error", "system.error", "bad task result", map[string]interface{}{
			"topic": msg.Topic(),
			"error": err.Error(),
		})
		return
	}
	events.Emit("info", "executor.result", "", map[string]interface{}{
		"task_id":     res.TaskID,
		"executor_id": res.ExecutorID,
		"success":     res.Success,
	})
	s.handler.HandleResult(res)
}

func (s *TaskSubscriber) handleAnnounce(_ paho.Client, msg paho.Message) {
	payload, err := ParseAnnounce(msg.Payload())
	if err != nil {
		events.Emit("error", "executor.error", "bad announce payload", map[string]interface{}{
			"topic": msg.Topic(),
			"error": err.Error(),
		})
		return
	}
	s.monitor.HandleAnnounce(payload)
}

func (s *TaskSubscriber) handleHeartbeat(_ paho.Client, msg paho.Message) {
	payload, err := ParseHeartbeat(msg.Payload())
	if err != nil {
		return // malformed heartbeats are dropped silently
	}
	s.monitor.HandleHeartbeat(payload)
}

// IsSubscribed returns true if the topic is already subscribed.
func (s *TaskSubscriber) IsSubscribed(topic string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subscribed[topic]
}

// ClearSubscriptions clears subscription tracking.
// Call on disconnect to allow re-subscription on reconnect.
func (s *TaskSubscriber) ClearSubscriptions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribed = make(map[string]bool)
}
