package builtin

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSource_ProvidesAllBuiltins(t *testing.T) {
	tools, err := Source().Load()
	require.NoError(t, err)

	names := make(map[string]bool, len(tools))
	for _, tl := range tools {
		names[tl.Name] = true
		assert.NotNil(t, tl.Handler, tl.Name)
		assert.NotEmpty(t, tl.Description, tl.Name)
	}
	for _, want := range []string{
		"get_current_time", "get_current_directory", "list_directory",
		"read_file", "create_file", "get_system_info", "calculate",
		"git_log", "git_status",
	} {
		assert.True(t, names[want], want)
	}
}

func TestCreateFile_RequiresApproval(t *testing.T) {
	assert.True(t, createFileTool().RequiresApproval)
	assert.False(t, readFileTool().RequiresApproval)
}

func TestCreateFileAndReadFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "notes", "hello.txt")

	out, err := createFileTool().Handler(ctx, map[string]any{
		"path":    path,
		"content": "line one\nline two",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "hello.txt")

	got, err := readFileTool().Handler(ctx, map[string]any{"file_path": path})
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", got)
}

func TestCreateFile_RefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "existing.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := createFileTool().Handler(context.Background(), map[string]any{
		"path":    path,
		"content": "y",
	})
	assert.Error(t, err)
}

func TestReadFile_TruncatesLongFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "long.txt")
	content := ""
	for i := 0; i < 10; i++ {
		content += "line\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	got, err := readFileTool().Handler(context.Background(), map[string]any{
		"file_path": path,
		"max_lines": int64(3),
	})
	require.NoError(t, err)
	assert.Contains(t, got, "truncated after 3 lines")
}

func TestListDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("hi"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "a"), 0o755))

	got, err := listDirectoryTool().Handler(context.Background(), map[string]any{"path": dir})
	require.NoError(t, err)
	assert.Contains(t, got, "a/")
	assert.Contains(t, got, "b.txt")
}

func TestListDirectory_Empty(t *testing.T) {
	dir := t.TempDir()
	got, err := listDirectoryTool().Handler(context.Background(), map[string]any{"path": dir})
	require.NoError(t, err)
	assert.Contains(t, got, "empty")
}
