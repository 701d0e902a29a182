package builtin

import (
	"context"
	"fmt"
	"sort"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/loopchat/loopchat/internal/tool"
)

func gitLogTool() tool.Tool {
	return tool.Tool{
		Name:        "git_log",
		Description: "Show recent commits of a git repository",
		Params: []tool.Param{
			{Name: "path", Type: tool.TypeString, Description: "Repository path", Default: "."},
			{Name: "limit", Type: tool.TypeInteger, Description: "Maximum number of commits", Default: int64(10)},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			path, _ := args["path"].(string)
			if path == "" {
				path = "."
			}
			limit := int64(10)
			if v, ok := args["limit"].(int64); ok && v > 0 {
				limit = v
			}

			repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
			if err != nil {
				return "", fmt.Errorf("opening repository at %q: %w", path, err)
			}
			iter, err := repo.Log(&git.LogOptions{})
			if err != nil {
				return "", fmt.Errorf("reading log: %w", err)
			}
			defer iter.Close()

			var b strings.Builder
			var count int64
			err = iter.ForEach(func(c *object.Commit) error {
				if count >= limit {
					return fmt.Errorf("done")
				}
				subject := strings.SplitN(c.Message, "\n", 2)[0]
				fmt.Fprintf(&b, "%s %s (%s, %s)\n",
					c.Hash.String()[:8], subject,
					c.Author.Name, c.Author.When.Format("2006-01-02"))
				count++
				return nil
			})
			if err != nil && count < limit {
				return "", fmt.Errorf("walking commits: %w", err)
			}
			if count == 0 {
				return "Repository has no commits", nil
			}
			return strings.TrimRight(b.String(), "\n"), nil
		},
	}
}

func gitStatusTool() tool.Tool {
	return tool.Tool{
		Name:        "git_status",
		Description: "Show the working tree status of a git repository",
		Params: []tool.Param{
			{Name: "path", Type: tool.TypeString, Description: "Repository path", Default: "."},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			path, _ := args["path"].(string)
			if path == "" {
				path = "."
			}

			repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
			if err != nil {
				return "", fmt.Errorf("opening repository at %q: %w", path, err)
			}
			wt, err := repo.Worktree()
			if err != nil {
				return "", fmt.Errorf("opening worktree: %w", err)
			}
			status, err := wt.Status()
			if err != nil {
				return "", fmt.Errorf("reading status: %w", err)
			}
			if status.IsClean() {
				return "Working tree clean", nil
			}

			files := make([]string, 0, len(status))
			for file := range status {
				files = append(files, file)
			}
			sort.Strings(files)

			var b strings.Builder
			for _, file := range files {
				fs := status[file]
				fmt.Fprintf(&b, "%c%c %s\n", statusCode(fs.Staging), statusCode(fs.Worktree), file)
			}
			return strings.TrimRight(b.String(), "\n"), nil
		},
	}
}

func statusCode(c git.StatusCode) rune {
	if c == git.Unmodified {
		return ' '
	}
	return rune(c)
}
