package openai

import (
	"fmt"
	"time"
)

// Config holds the configuration for the OpenAI-compatible chat adapter.
type Config struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
}

// defaults fills zero-valued fields with sensible defaults.
func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if c.Timeout == "" {
		c.Timeout = "60s"
	}
}

// parsedTimeout returns the timeout as a time.Duration.
// Assumes the value has been validated by validate.
func (c *Config) parsedTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// validate checks required fields and the timeout format.
func (c *Config) validate() error {
	if c.Model == "" {
		return fmt.Errorf("openai: model is required")
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("openai: invalid timeout %q: %w", c.Timeout, err)
	}
	return nil
}
