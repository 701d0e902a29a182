package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// ConfigDir is the directory name under ~/.config
	ConfigDir = "loopchat"
	// ConfigFile is the config file name
	ConfigFile = "config.json"
)

// Runtime abstracts the host environment so loading is testable. API keys
// come from the environment only; the dotfile never carries credentials.
type Runtime interface {
	UserHomeDir() (string, error)
	ReadFile(path string) ([]byte, error)
	Getenv(key string) string
}

type osRuntime struct{}

func (osRuntime) UserHomeDir() (string, error) { return os.UserHomeDir() }

func (osRuntime) ReadFile(path string) ([]byte, error) { return os.ReadFile(path) }

func (osRuntime) Getenv(key string) string { return os.Getenv(key) }

// keyVars names the environment variable holding each provider's API key.
var keyVars = map[string]string{
	"openai": "OPENAI_API_KEY",
	"gemini": "GEMINI_API_KEY",
}

// Loader resolves the configuration from the dotfile and the environment.
type Loader struct {
	rt Runtime
}

// NewLoader creates a production Loader using the real host environment.
func NewLoader() *Loader {
	return &Loader{rt: osRuntime{}}
}

// NewLoaderWithRuntime creates a Loader with a custom runtime (for testing).
func NewLoaderWithRuntime(rt Runtime) *Loader {
	return &Loader{rt: rt}
}

// Load builds the effective configuration: defaults, then the dotfile at
// ~/.config/loopchat/config.json, then the provider's API key from the
// environment. Present dotfile keys overwrite defaults, even with zero
// values; missing keys leave the defaults untouched. A missing file or home
// directory yields the defaults; parse and validation failures are errors.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	home, err := l.rt.UserHomeDir()
	if err != nil {
		cfg.APIKey = l.rt.Getenv(keyVars[cfg.Provider])
		return cfg, nil
	}

	if err := l.mergeDotfile(cfg, filepath.Join(home, ".config", ConfigDir, ConfigFile)); err != nil {
		return nil, err
	}

	cfg.APIKey = l.rt.Getenv(keyVars[cfg.Provider])
	cfg.Store.Path = expandHome(cfg.Store.Path, home)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeDotfile unmarshals the file directly over the defaults. A missing
// file is not an error; permission and parse failures are.
func (l *Loader) mergeDotfile(cfg *Config, path string) error {
	data, err := l.rt.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// expandHome rewrites a leading "~/" so the store path in the dotfile can be
// home-relative.
func expandHome(path, home string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

// Load is a convenience function using the default loader.
func Load() (*Config, error) {
	return NewLoader().Load()
}
