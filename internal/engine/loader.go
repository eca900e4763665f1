package engine

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadPlan loads a task plan from a JSON file.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}

	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse plan JSON: %w", err)
	}

	if p.Version != 1 {
		return nil, fmt.Errorf("unsupported plan version: %d", p.Version)
	}

	for i, pt := range p.Tasks {
		if pt.ID == "" {
			return nil, fmt.Errorf("plan task %d: id is required", i)
		}
		if pt.Type == "" {
			return nil, fmt.Errorf("plan task %q: type is required", pt.ID)
		}
	}

	return &p, nil
}
