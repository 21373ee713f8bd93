// Package config loads the embedding application's YAML configuration
// for the companion core, aggregating the per-package config blocks.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kokoro-ai/kokoro/agent"
	"github.com/kokoro-ai/kokoro/janitor"
	"github.com/kokoro-ai/kokoro/memory/sqlite"
	"github.com/kokoro-ai/kokoro/provider/openai"
	"github.com/kokoro-ai/kokoro/telemetry"
)

// defaultMemoryPath is used when no store path is configured.
const defaultMemoryPath = "kokoro.db"

// Config is the aggregate configuration document.
type Config struct {
	Provider  openai.Config    `yaml:"provider"`
	Agent     agent.Config     `yaml:"agent"`
	Memory    sqlite.Config    `yaml:"memory"`
	Janitor   janitor.Config   `yaml:"janitor"`
	Telemetry telemetry.Config `yaml:"telemetry"`
}

// Load reads and validates the configuration at path. Unknown keys are
// rejected so typos fail loudly instead of silently using defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a configuration document.
func Parse(data []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) defaults() {
	if c.Memory.Path == "" {
		c.Memory.Path = defaultMemoryPath
	}
}

func (c *Config) validate() error {
	if c.Provider.APIKey == "" {
		return fmt.Errorf("config: provider.api_key is required")
	}
	if c.Provider.Model == "" {
		return fmt.Errorf("config: provider.model is required")
	}
	return nil
}
