package config

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRuntime struct {
	homeDir     string
	homeDirErr  error
	fileContent []byte
	fileErr     error
	env         map[string]string
}

func (m *mockRuntime) UserHomeDir() (string, error) {
	if m.homeDirErr != nil {
		return "", m.homeDirErr
	}
	return m.homeDir, nil
}

func (m *mockRuntime) ReadFile(path string) ([]byte, error) {
	if m.fileErr != nil {
		return nil, m.fileErr
	}
	return m.fileContent, nil
}

func (m *mockRuntime) Getenv(key string) string {
	return m.env[key]
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	loader := NewLoaderWithRuntime(&mockRuntime{homeDir: "/home/u", fileErr: os.ErrNotExist})

	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_HomeDirFailureReturnsDefaults(t *testing.T) {
	loader := NewLoaderWithRuntime(&mockRuntime{homeDirErr: errors.New("no home")})

	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	content := `{
		"provider": "gemini",
		"model": "gemini-2.0-flash",
		"tools": {"require_approval": true, "max_parallel": 2, "call_timeout_seconds": 10},
		"loop": {"max_iterations": 5},
		"compact": {"min_messages": 4, "timeout_seconds": 30}
	}`
	loader := NewLoaderWithRuntime(&mockRuntime{homeDir: "/home/u", fileContent: []byte(content)})

	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "gemini", cfg.Provider)
	assert.Equal(t, "gemini-2.0-flash", cfg.Model)
	assert.True(t, cfg.Tools.RequireApproval)
	assert.Equal(t, 2, cfg.Tools.MaxParallel)
	assert.Equal(t, 5, cfg.Loop.MaxIterations)
	assert.Equal(t, 4, cfg.Compact.MinMessages)
}

func TestLoad_PartialFileKeepsOtherDefaults(t *testing.T) {
	content := `{"model": "gpt-4o-mini", "tools": {"max_parallel": 4, "call_timeout_seconds": 30}}`
	loader := NewLoaderWithRuntime(&mockRuntime{homeDir: "/home/u", fileContent: []byte(content)})

	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", cfg.Model)
	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, 10, cfg.Loop.MaxIterations)
}

func TestLoad_APIKeyComesFromEnvironmentForActiveProvider(t *testing.T) {
	content := `{"provider": "gemini", "model": "gemini-2.0-flash"}`
	loader := NewLoaderWithRuntime(&mockRuntime{
		homeDir:     "/home/u",
		fileContent: []byte(content),
		env: map[string]string{
			"OPENAI_API_KEY": "sk-wrong-provider",
			"GEMINI_API_KEY": "gm-secret",
		},
	})

	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "gm-secret", cfg.APIKey)
}

func TestLoad_APIKeyNeverReadFromFile(t *testing.T) {
	content := `{"api_key": "leaked-into-dotfile"}`
	loader := NewLoaderWithRuntime(&mockRuntime{homeDir: "/home/u", fileContent: []byte(content)})

	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.APIKey)
}

func TestLoad_ExpandsHomeRelativeStorePath(t *testing.T) {
	content := `{"store": {"path": "~/.local/share/loopchat/sessions.db"}}`
	loader := NewLoaderWithRuntime(&mockRuntime{homeDir: "/home/u", fileContent: []byte(content)})

	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "/home/u/.local/share/loopchat/sessions.db", cfg.Store.Path)
}

func TestLoad_MalformedJSONIsError(t *testing.T) {
	loader := NewLoaderWithRuntime(&mockRuntime{homeDir: "/home/u", fileContent: []byte(`{broken`)})
	_, err := loader.Load()
	assert.Error(t, err)
}

func TestLoad_PermissionErrorSurfaces(t *testing.T) {
	loader := NewLoaderWithRuntime(&mockRuntime{homeDir: "/home/u", fileErr: os.ErrPermission})
	_, err := loader.Load()
	assert.Error(t, err)
}

func TestLoad_InvalidProviderRejected(t *testing.T) {
	content := `{"provider": "alien"}`
	loader := NewLoaderWithRuntime(&mockRuntime{homeDir: "/home/u", fileContent: []byte(content)})
	_, err := loader.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider")
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Loop.MaxIterations = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Compact.MinMessages = 1
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Model = ""
	assert.Error(t, cfg.Validate())
}
