// Package config loads application configuration from a dotfile, merged
// over defaults.
package config

import "fmt"

// Config holds all application configuration values.
// Values in the config file override defaults, including explicit zero
// values. Missing keys are left at their default values.
type Config struct {
	Provider string        `json:"provider"` // "openai" or "gemini"
	Model    string        `json:"model"`
	BaseURL  string        `json:"base_url,omitempty"` // OpenAI-compatible override
	Tools    ToolsConfig   `json:"tools"`
	Loop     LoopConfig    `json:"loop"`
	Compact  CompactConfig `json:"compact"`
	Store    StoreConfig   `json:"store"`

	// APIKey is resolved from the environment at load time and never
	// read from or written to the config file.
	APIKey string `json:"-"`
}

type ToolsConfig struct {
	// Enabled names the tools turned on at startup. Empty means all.
	Enabled []string `json:"enabled"`

	RequireApproval bool `json:"require_approval"`

	// MaxParallel bounds concurrent tool execution within one batch.
	MaxParallel int `json:"max_parallel"`

	CallTimeoutSeconds int `json:"call_timeout_seconds"`

	// UserToolDirs are scanned for YAML tool manifests.
	UserToolDirs []string `json:"user_tool_dirs"`
}

type LoopConfig struct {
	MaxIterations int `json:"max_iterations"`
}

type CompactConfig struct {
	MinMessages    int `json:"min_messages"`
	TimeoutSeconds int `json:"timeout_seconds"`
}

type StoreConfig struct {
	// Path of the SQLite database. Empty disables persistence.
	Path string `json:"path"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Provider: "openai",
		Model:    "gpt-4o",
		Tools: ToolsConfig{
			MaxParallel:        4,
			CallTimeoutSeconds: 30,
		},
		Loop: LoopConfig{
			MaxIterations: 10,
		},
		Compact: CompactConfig{
			MinMessages:    2,
			TimeoutSeconds: 60,
		},
	}
}

// Validate checks the merged configuration.
func (c *Config) Validate() error {
	switch c.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("unknown provider %q (want openai or gemini)", c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("model must not be empty")
	}
	if c.Tools.MaxParallel < 1 {
		return fmt.Errorf("tools.max_parallel must be at least 1, got %d", c.Tools.MaxParallel)
	}
	if c.Tools.CallTimeoutSeconds < 1 {
		return fmt.Errorf("tools.call_timeout_seconds must be at least 1, got %d", c.Tools.CallTimeoutSeconds)
	}
	if c.Loop.MaxIterations < 1 {
		return fmt.Errorf("loop.max_iterations must be at least 1, got %d", c.Loop.MaxIterations)
	}
	if c.Compact.MinMessages < 2 {
		return fmt.Errorf("compact.min_messages must be at least 2, got %d", c.Compact.MinMessages)
	}
	if c.Compact.TimeoutSeconds < 1 {
		return fmt.Errorf("compact.timeout_seconds must be at least 1, got %d", c.Compact.TimeoutSeconds)
	}
	return nil
}
