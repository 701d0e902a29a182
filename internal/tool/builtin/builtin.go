// Package builtin holds the tools that ship with loopchat.
package builtin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/loopchat/loopchat/internal/tool"
)

const maxReadFileSize = 1 << 20 // 1MB

// Source returns the built-in tool source for discovery.
func Source() tool.Source {
	return tool.StaticSource{
		SourceName: "builtin",
		Tools: []tool.Tool{
			currentTimeTool(),
			currentDirectoryTool(),
			listDirectoryTool(),
			readFileTool(),
			createFileTool(),
			systemInfoTool(),
			calculateTool(),
			gitLogTool(),
			gitStatusTool(),
		},
	}
}

func currentTimeTool() tool.Tool {
	return tool.Tool{
		Name:        "get_current_time",
		Description: "Get the current date and time",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return time.Now().Format("2006-01-02 15:04:05 MST"), nil
		},
	}
}

func currentDirectoryTool() tool.Tool {
	return tool.Tool{
		Name:        "get_current_directory",
		Description: "Get the current working directory path",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return os.Getwd()
		},
	}
}

func listDirectoryTool() tool.Tool {
	return tool.Tool{
		Name:        "list_directory",
		Description: "List files and directories in a given path",
		Params: []tool.Param{
			{Name: "path", Type: tool.TypeString, Description: "Directory path to list", Default: "."},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			path, _ := args["path"].(string)
			if path == "" {
				path = "."
			}
			entries, err := os.ReadDir(path)
			if err != nil {
				return "", fmt.Errorf("listing %q: %w", path, err)
			}
			if len(entries) == 0 {
				return fmt.Sprintf("Directory %q is empty", path), nil
			}
			sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
			var b strings.Builder
			fmt.Fprintf(&b, "Contents of %q:\n", path)
			for _, e := range entries {
				if e.IsDir() {
					fmt.Fprintf(&b, "%s/\n", e.Name())
					continue
				}
				info, err := e.Info()
				if err != nil {
					fmt.Fprintf(&b, "%s\n", e.Name())
					continue
				}
				fmt.Fprintf(&b, "%s (%s)\n", e.Name(), humanSize(info.Size()))
			}
			return strings.TrimRight(b.String(), "\n"), nil
		},
	}
}

func readFileTool() tool.Tool {
	return tool.Tool{
		Name:        "read_file",
		Description: "Read the contents of a text file",
		Params: []tool.Param{
			{Name: "file_path", Type: tool.TypeString, Description: "Path to the file to read", Required: true},
			{Name: "max_lines", Type: tool.TypeInteger, Description: "Maximum number of lines to read", Default: int64(100)},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			path, _ := args["file_path"].(string)
			maxLines := int64(100)
			if v, ok := args["max_lines"].(int64); ok && v > 0 {
				maxLines = v
			}

			info, err := os.Stat(path)
			if err != nil {
				return "", fmt.Errorf("reading %q: %w", path, err)
			}
			if info.Size() > maxReadFileSize {
				return "", fmt.Errorf("file %q is too large (%s > 1MB)", path, humanSize(info.Size()))
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return "", fmt.Errorf("reading %q: %w", path, err)
			}
			lines := strings.Split(string(data), "\n")
			if int64(len(lines)) > maxLines {
				lines = append(lines[:maxLines], fmt.Sprintf("... (truncated after %d lines)", maxLines))
			}
			return strings.Join(lines, "\n"), nil
		},
	}
}

func createFileTool() tool.Tool {
	return tool.Tool{
		Name:        "create_file",
		Description: "Create a text file with the given content",
		Params: []tool.Param{
			{Name: "path", Type: tool.TypeString, Description: "Path where to create the file", Required: true},
			{Name: "content", Type: tool.TypeString, Description: "Content to write to the file", Required: true},
		},
		RequiresApproval: true,
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			path, _ := args["path"].(string)
			content, _ := args["content"].(string)

			if _, err := os.Stat(path); err == nil {
				return "", fmt.Errorf("file %q already exists", path)
			}
			if dir := filepath.Dir(path); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return "", fmt.Errorf("creating parent directories for %q: %w", path, err)
				}
			}
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				return "", fmt.Errorf("creating %q: %w", path, err)
			}
			return fmt.Sprintf("Created file %q with %d bytes", path, len(content)), nil
		},
	}
}

func systemInfoTool() tool.Tool {
	return tool.Tool{
		Name:        "get_system_info",
		Description: "Get basic system information",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			hostname, _ := os.Hostname()
			var b strings.Builder
			b.WriteString("System Information:\n")
			fmt.Fprintf(&b, "  Operating System: %s\n", runtime.GOOS)
			fmt.Fprintf(&b, "  Architecture: %s\n", runtime.GOARCH)
			fmt.Fprintf(&b, "  Go Version: %s\n", runtime.Version())
			fmt.Fprintf(&b, "  CPUs: %d\n", runtime.NumCPU())
			fmt.Fprintf(&b, "  Hostname: %s", hostname)
			return b.String(), nil
		},
	}
}

func humanSize(size int64) string {
	switch {
	case size < 1024:
		return fmt.Sprintf("%dB", size)
	case size < 1024*1024:
		return fmt.Sprintf("%dKB", size/1024)
	default:
		return fmt.Sprintf("%dMB", size/(1024*1024))
	}
}
