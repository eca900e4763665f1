package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadBotConfig(t *testing.T) {
	cfg, err := LoadBotConfig("../../config/bot.yaml")
	if err != nil {
		t.Fatalf("failed to load bot.yaml: %v", err)
	}

	if cfg.Bot.ID != "miner-01" {
		t.Errorf("expected bot id miner-01, got %s", cfg.Bot.ID)
	}
	if cfg.APIPort() != 8080 {
		t.Errorf("expected api port 8080, got %d", cfg.APIPort())
	}
}

func TestAPIPortDefault(t *testing.T) {
	cfg := &BotConfig{}
	if cfg.APIPort() != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.APIPort())
	}

	cfg.Network.APIPort = 9090
	if cfg.APIPort() != 9090 {
		t.Errorf("expected configured port 9090, got %d", cfg.APIPort())
	}
}

func TestLoadBotConfigRejectsBadVersion(t *testing.T) {
	path := writeConfig(t, "bot.yaml", "version: 2\nbot:\n  id: x\n")
	if _, err := LoadBotConfig(path); err == nil {
		t.Fatal("expected error for unsupported version")
	}
}

func TestLoadBotConfigMissingFile(t *testing.T) {
	if _, err := LoadBotConfig("does/not/exist.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadExecutorsConfig(t *testing.T) {
	cfg, err := LoadExecutorsConfig("../../config/executors.yaml")
	if err != nil {
		t.Fatalf("failed to load executors.yaml: %v", err)
	}

	mining, ok := cfg.Executors["mining"]
	if !ok {
		t.Fatalf("mining executor not declared")
	}
	if !mining.Required {
		t.Errorf("expected mining to be required")
	}
	if len(mining.TaskTypes) != 2 {
		t.Errorf("unexpected mining task types: %v", mining.TaskTypes)
	}

	inventory, ok := cfg.Executors["inventory"]
	if !ok {
		t.Fatalf("inventory executor not declared")
	}
	if inventory.Required {
		t.Errorf("expected inventory to be optional")
	}
}

func TestLoadExecutorsConfigRejectsBadVersion(t *testing.T) {
	path := writeConfig(t, "executors.yaml", "version: 3\nexecutors: {}\n")
	if _, err := LoadExecutorsConfig(path); err == nil {
		t.Fatal("expected error for unsupported version")
	}
}
