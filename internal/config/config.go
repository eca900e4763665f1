// Package config loads the bot's YAML configuration files.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type BotConfig struct {
	Version int `yaml:"version"`
	Bot     struct {
		ID          string `yaml:"id"`
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
	} `yaml:"bot"`
	Network struct {
		APIPort  int `yaml:"api_port"`
		MQTTPort int `yaml:"mqtt_port"`
		DBPort   int `yaml:"db_port"`
	} `yaml:"network"`
}

// APIPort returns the configured status API port, defaulting to 8080 if not set.
func (c *BotConfig) APIPort() int {
	if c.Network.APIPort == 0 {
		return 8080
	}
	return c.Network.APIPort
}

// ExecutorSpec describes an expected executor from executors.yaml.
type ExecutorSpec struct {
	TaskTypes []string `yaml:"task_types"`
	Required  bool     `yaml:"required"`
}

// ExecutorsConfig declares the game-action executors the bot expects and
// the task types each one handles.
type ExecutorsConfig struct {
	Version   int                     `yaml:"version"`
	Executors map[string]ExecutorSpec `yaml:"executors"`
}

func LoadBotConfig(path string) (*BotConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg BotConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}

	if cfg.Version != 1 {
		return nil, fmt.Errorf("unsupported bot.yaml version: %d", cfg.Version)
	}

	return &cfg, nil
}

func LoadExecutorsConfig(path string) (*ExecutorsConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg ExecutorsConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}

	if cfg.Version != 1 {
		return nil, fmt.Errorf("unsupported executors.yaml version: %d", cfg.Version)
	}

	return &cfg, nil
}
