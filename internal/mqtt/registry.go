package mqtt

import (
	"fmt"
	"sync"
)

// RegisteredExecutor holds runtime information about an announced executor.
type RegisteredExecutor struct {
	ID           string
	Kind         string
	TaskTypes    []string
	CommandTopic string // topics.command from the announce payload
	ResultTopic  string // topics.result from the announce payload
}

// ExecutorRegistry maps executor ids to their topics and task types. The
// engine consults it to pick a dispatch target for a ready task.
type ExecutorRegistry struct {
	mu        sync.RWMutex
	executors map[string]*RegisteredExecutor
}

// NewExecutorRegistry creates a new empty executor registry.
func NewExecutorRegistry() *ExecutorRegistry {
	return &ExecutorRegistry{
		executors: make(map[string]*RegisteredExecutor),
	}
}

// Register adds or updates an executor in the registry.
func (r *ExecutorRegistry) Register(ex *RegisteredExecutor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[ex.ID] = ex
}

// RegisterFromPayload registers the executor described by an announce payload.
func (r *ExecutorRegistry) RegisterFromPayload(payload *AnnouncePayload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[payload.Executor.ID] = &RegisteredExecutor{
		ID:           payload.Executor.ID,
		Kind:         payload.Executor.Kind,
		TaskTypes:    append([]string{}, payload.Executor.TaskTypes...),
		CommandTopic: payload.Topics.Command,
		ResultTopic:  payload.Topics.Result,
	}
}

// Unregister removes an executor from the registry.
func (r *ExecutorRegistry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.executors, id)
}

// Get returns a copy of the executor, or nil if not found.
func (r *ExecutorRegistry) Get(id string) *RegisteredExecutor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if ex, ok := r.executors[id]; ok {
		cpy := *ex
		cpy.TaskTypes = append([]string{}, ex.TaskTypes...)
		return &cpy
	}
	return nil
}

// Exists returns true if the executor is registered.
func (r *ExecutorRegistry) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.executors[id]
	return ok
}

// FindByTaskType returns the first registered executor handling the given
// task type, or nil if none does.
func (r *ExecutorRegistry) FindByTaskType(taskType string) *RegisteredExecutor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ex := range r.executors {
		for _, tt := range ex.TaskTypes {
			if tt == taskType {
				cpy := *ex
				cpy.TaskTypes = append([]string{}, ex.TaskTypes...)
				return &cpy
			}
		}
	}
	return nil
}

// DispatchTarget resolves the executor for a task type under one lock,
// so a concurrent re-announce cannot change the registry between the
// dispatchability check and the lookup. Returns a copy of the executor,
// or an error when no registered executor can take the task.
func (r *ExecutorRegistry) DispatchTarget(taskType string) (*RegisteredExecutor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ex := range r.executors {
		for _, tt := range ex.TaskTypes {
			if tt != taskType {
				continue
			}
			if ex.CommandTopic == "" {
				return nil, fmt.Errorf("executor %s has no command topic", ex.ID)
			}
			cpy := *ex
			cpy.TaskTypes = append([]string{}, ex.TaskTypes...)
			return &cpy, nil
		}
	}
	return nil, fmt.Errorf("no executor registered for task type: %s", taskType)
}

// ValidateDispatch checks that an executor exists for the task type and
// has a command topic. Returns a descriptive error if not dispatchable.
func (r *ExecutorRegistry) ValidateDispatch(taskType string) error {
	_, err := r.DispatchTarget(taskType)
	return err
}

// All returns a copy of all registered executors.
func (r *ExecutorRegistry) All() []*RegisteredExecutor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*RegisteredExecutor, 0, len(r.executors))
	for _, ex := range r.executors {
		cpy := *ex
		cpy.TaskTypes = append([]string{}, ex.TaskTypes...)
		result = append(result, &cpy)
	}
	return result
}

// Clear removes all executors from the registry.
func (r *ExecutorRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors = make(map[string]*RegisteredExecutor)
}
