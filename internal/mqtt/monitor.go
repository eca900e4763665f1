package mqtt

import (
	"sync"
	"time"

	"github.com/darianrosebrook/minebot/internal/config"
	"github.com/darianrosebrook/minebot/internal/events"
)

// ExecutorState tracks an announced executor's health.
type ExecutorState struct {
	ExecutorID   string
	LastSeen     time.Time
	HeartbeatSec int
	Connected    bool
}

// Monitor tracks executor announcements and heartbeat health. An executor
// that misses heartbeats beyond the tolerance window is marked offline;
// the engine stops dispatching to offline executors.
type Monitor struct {
	mu        sync.RWMutex
	states    map[string]*ExecutorState
	registry  *ExecutorRegistry
	specs     map[string]config.ExecutorSpec
	tolerance float64 // multiplier on heartbeat interval before offline
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// NewMonitor creates a new executor monitor.
// tolerance is the multiplier for the heartbeat interval before an
// executor is considered disconnected.
func NewMonitor(registry *ExecutorRegistry, specs map[string]config.ExecutorSpec, tolerance float64) *Monitor {
	if tolerance <= 1.0 {
		tolerance = 2.0 // default: miss one heartbeat
	}
	return &Monitor{
		states:    make(map[string]*ExecutorState),
		registry:  registry,
		specs:     specs,
		tolerance: tolerance,
		stopCh:    make(chan struct{}),
	}
}

// HandleAnnounce processes an announce payload: validates it, registers
// the executor, and emits executor.connected or executor.error.
func (m *Monitor) HandleAnnounce(payload *AnnouncePayload) *ValidationResult {
	result := ValidateAnnounce(payload, m.specs)

	m.mu.Lock()
	defer m.mu.Unlock()

	id := payload.Executor.ID
	now := time.Now()

	existing, seen := m.states[id]
	isReconnect := seen && existing != nil && !existing.Connected

	if result.Valid {
		m.registry.RegisterFromPayload(payload)
		m.states[id] = &ExecutorState{
			ExecutorID:   id,
			LastSeen:     now,
			HeartbeatSec: payload.Executor.HeartbeatSec,
			Connected:    true,
		}

		events.Emit("info", "executor.connected", "", map[string]interface{}{
			"executor_id": id,
			"kind":        payload.Executor.Kind,
			"task_types":  payload.Executor.TaskTypes,
			"reconnect":   isReconnect,
		})
	} else {
		events.Emit("error", "executor.error", "announce validation failed", map[string]interface{}{
			"executor_id": id,
			"errors":      result.Errors,
		})
	}

	return result
}

// HandleHeartbeat refreshes an executor's liveness window.
func (m *Monitor) HandleHeartbeat(payload *HeartbeatPayload) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.states[payload.ExecutorID]
	if !ok {
		return // heartbeat before announce; ignore
	}
	state.LastSeen = time.Now()
	if !state.Connected {
		state.Connected = true
		events.Emit("info", "executor.connected", "", map[string]interface{}{
			"executor_id": payload.ExecutorID,
			"reconnect":   true,
		})
	}
}

// Start begins the background health check loop.
func (m *Monitor) Start(checkInterval time.Duration) {
	m.wg.Add(1)
	go m.healthCheckLoop(checkInterval)
}

// Stop stops the background health check loop.
func (m *Monitor) Stop() {
	close(m.stopCh)
	m.wg.Wait()
}

func (m *Monitor) healthCheckLoop(interval time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.checkHealth()
		}
	}
}

func (m *Monitor) checkHealth() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()

	for id, state := range m.states {
		if !state.Connected || state.HeartbeatSec <= 0 {
			continue
		}

		timeout := time.Duration(float64(state.HeartbeatSec)*m.tolerance) * time.Second
		if now.Sub(state.LastSeen) > timeout {
			state.Connected = false
			events.Emit("warning", "executor.disconnected", "heartbeat timeout", map[string]interface{}{
				"executor_id": id,
				"last_seen":   state.LastSeen.Format(time.RFC3339),
				"timeout_sec": timeout.Seconds(),
			})
		}
	}
}

// GetExecutorState returns a copy of the executor's state, or nil.
func (m *Monitor) GetExecutorState(id string) *ExecutorState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if state, ok := m.states[id]; ok {
		cpy := *state
		return &cpy
	}
	return nil
}

// IsConnected returns true if the executor is currently connected.
func (m *Monitor) IsConnected(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.states[id]
	return ok && state.Connected
}

// ConnectedExecutors returns the ids of currently connected executors.
func (m *Monitor) ConnectedExecutors() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for id, state := range m.states {
		if state.Connected {
			ids = append(ids, id)
		}
	}
	return ids
}
