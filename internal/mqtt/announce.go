package mqtt

import (
	"encoding/json"
	"fmt"

	"github.com/darianrosebrook/minebot/internal/config"
)

// AnnouncePayload represents a v1 executor announce message. An executor
// publishes one on connect (and on reconnect) to declare which task types
// it handles and where it listens for dispatch commands.
type AnnouncePayload struct {
	Version  int          `json:"version"`
	Executor ExecutorInfo `json:"executor"`
	Topics   TaskTopics   `json:"topics"`
}

// ExecutorInfo contains executor metadata.
type ExecutorInfo struct {
	ID           string   `json:"id"`
	Kind         string   `json:"kind"`
	TaskTypes    []string `json:"task_types"`
	HeartbeatSec int      `json:"heartbeat_sec"`
	UptimeMS     int64    `json:"uptime_ms"`
}

// TaskTopics defines the MQTT topics the executor uses.
type TaskTopics struct {
	Command string `json:"command"` // bot publishes dispatches here
	Result  string `json:"result"`  // executor publishes results here
}

// HeartbeatPayload is the periodic liveness message from an executor.
type HeartbeatPayload struct {
	ExecutorID string `json:"executor_id"`
	UptimeMS   int64  `json:"uptime_ms"`
}

// ParseAnnounce parses an announce payload from JSON bytes.
func ParseAnnounce(data []byte) (*AnnouncePayload, error) {
	var payload AnnouncePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("invalid announce JSON: %w", err)
	}

	if payload.Version != 1 {
		return nil, fmt.Errorf("unsupported announce version: %d", payload.Version)
	}

	if payload.Executor.ID == "" {
		return nil, fmt.Errorf("executor.id is required")
	}

	return &payload, nil
}

// ParseHeartbeat parses a heartbeat payload from JSON bytes.
func ParseHeartbeat(data []byte) (*HeartbeatPayload, error) {
	var payload HeartbeatPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("invalid heartbeat JSON: %w", err)
	}
	if payload.ExecutorID == "" {
		return nil, fmt.Errorf("executor_id is required")
	}
	return &payload, nil
}

// ValidationResult contains the outcome of validating an announce payload
// against executors.yaml.
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// ValidateAnnounce validates an announce payload against the configured
// executor specs. An executor not listed in executors.yaml is accepted
// with a warning; a configured executor announcing the wrong task types
// is an error.
func ValidateAnnounce(payload *AnnouncePayload, specs map[string]config.ExecutorSpec) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if payload.Topics.Command == "" {
		result.Errors = append(result.Errors, "topics.command is required")
		result.Valid = false
	}
	if len(payload.Executor.TaskTypes) == 0 {
		result.Errors = append(result.Errors, "executor announces no task types")
		result.Valid = false
	}

	spec, known := specs[payload.Executor.ID]
	if !known {
		result.Warnings = append(result.Warnings, fmt.Sprintf("unrecognized executor: %s", payload.Executor.ID))
		return result
	}

	for _, tt := range spec.TaskTypes {
		if !containsString(payload.Executor.TaskTypes, tt) {
			result.Errors = append(result.Errors, fmt.Sprintf("executor %s: missing task type %s", payload.Executor.ID, tt))
			result.Valid = false
		}
	}

	return result
}

// MissingRequired returns the names of required executors from
// executors.yaml that are not present in the registry.
func MissingRequired(specs map[string]config.ExecutorSpec, reg *ExecutorRegistry) []string {
	var missing []string
	for id, spec := range specs {
		if spec.Required && !reg.Exists(id) {
			missing = append(missing, id)
		}
	}
	return missing
}

func containsString(slice []string, val string) bool {
	for _, s := range slice {
		if s == val {
			return true
		}
	}
	return false
}
