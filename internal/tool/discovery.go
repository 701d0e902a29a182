package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Source supplies tool definitions during discovery.
type Source interface {
	// Name identifies the source in load error reports.
	Name() string

	// Load returns the source's tools. A source may return both tools and
	// an error when it partially loaded; a failure never aborts other
	// sources.
	Load() ([]Tool, error)
}

// LoadError records a source (or file within a source) that failed to load.
type LoadError struct {
	Source string
	Err    error
}

func (e LoadError) Error() string {
	return fmt.Sprintf("loading tools from %s: %v", e.Source, e.Err)
}

// Scan loads tools from every source, collecting per-source failures instead
// of aborting. Valid tools from healthy sources always load.
func Scan(sources ...Source) ([]Tool, []LoadError) {
	var tools []Tool
	var errs []LoadError
	for _, src := range sources {
		loaded, err := src.Load()
		tools = append(tools, loaded...)
		if err != nil {
			errs = append(errs, LoadError{Source: src.Name(), Err: err})
		}
	}
	return tools, errs
}

// StaticSource wraps a fixed tool list (the built-in set).
type StaticSource struct {
	SourceName string
	Tools      []Tool
}

func (s StaticSource) Name() string          { return s.SourceName }
func (s StaticSource) Load() ([]Tool, error) { return s.Tools, nil }

// manifest is the on-disk YAML description of a user-supplied tool. The
// declared command is executed with the JSON-encoded arguments on stdin and
// its stdout becomes the observation.
type manifest struct {
	Name             string   `yaml:"name"`
	Description      string   `yaml:"description"`
	Command          []string `yaml:"command"`
	Params           []Param  `yaml:"params"`
	RequiresApproval bool     `yaml:"requires_approval"`
}

func (m manifest) validate() error {
	if m.Name == "" {
		return fmt.Errorf("missing tool name")
	}
	if len(m.Command) == 0 {
		return fmt.Errorf("tool %q: missing command", m.Name)
	}
	for _, p := range m.Params {
		switch p.Type {
		case TypeString, TypeNumber, TypeInteger, TypeBoolean, TypeArray, TypeObject:
		case "":
			return fmt.Errorf("tool %q: param %q has no type", m.Name, p.Name)
		default:
			return fmt.Errorf("tool %q: param %q has unknown type %q", m.Name, p.Name, p.Type)
		}
	}
	return nil
}

// manifestDirSource loads tool manifests (*.yaml) from a user directory.
type manifestDirSource struct {
	dir string
}

// ManifestDir creates a source that scans a directory of YAML tool
// manifests. Each manifest describes an external executable exposed as a
// tool. Malformed manifests are reported but do not prevent the valid ones
// in the same directory from loading.
func ManifestDir(dir string) Source {
	return manifestDirSource{dir: dir}
}

func (s manifestDirSource) Name() string { return s.dir }

func (s manifestDirSource) Load() ([]Tool, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	var tools []Tool
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var fileErrs []error
	for _, name := range names {
		path := filepath.Join(s.dir, name)
		m, err := loadManifest(path)
		if err != nil {
			fileErrs = append(fileErrs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		tools = append(tools, Tool{
			Name:             m.Name,
			Description:      m.Description,
			Params:           m.Params,
			Handler:          commandHandler(m.Command),
			RequiresApproval: m.RequiresApproval,
		})
	}
	return tools, errors.Join(fileErrs...)
}

func loadManifest(path string) (manifest, error) {
	var m manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, err
	}
	if err := m.validate(); err != nil {
		return m, err
	}
	return m, nil
}

// commandHandler runs an external executable with the call arguments as JSON
// on stdin. Stdout is the observation; a non-zero exit combines stderr into
// the returned error.
func commandHandler(command []string) Handler {
	return func(ctx context.Context, args map[string]any) (string, error) {
		payload, err := json.Marshal(args)
		if err != nil {
			return "", fmt.Errorf("encoding arguments: %w", err)
		}

		cmd := exec.CommandContext(ctx, command[0], command[1:]...)
		cmd.Stdin = bytes.NewReader(payload)
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			detail := strings.TrimSpace(stderr.String())
			if detail == "" {
				detail = err.Error()
			}
			return "", fmt.Errorf("command failed: %s", detail)
		}
		return strings.TrimSpace(stdout.String()), nil
	}
}
