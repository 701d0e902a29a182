package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

var (
	userStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	toolStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	warningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	approvalStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	detailStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).PaddingLeft(2)
)

// renderer renders transcript entries, with markdown for assistant text.
type renderer struct {
	markdown *glamour.TermRenderer
}

func newRenderer() *renderer {
	md, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		md = nil
	}
	return &renderer{markdown: md}
}

func (r *renderer) renderEntry(entry transcriptEntry) string {
	switch entry.role {
	case "user":
		return userStyle.Render("You: ") + entry.content
	case "assistant":
		return r.renderMarkdown(entry.content)
	case "tool":
		return toolStyle.Render(entry.content)
	case "warning":
		return warningStyle.Render(entry.content)
	default:
		return entry.content
	}
}

func (r *renderer) renderMarkdown(content string) string {
	if r.markdown == nil {
		return content
	}
	out, err := r.markdown.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(out, "\n")
}

// FormatToolLine renders the one-line progress entry for a tool call.
func FormatToolLine(name, outcome string) string {
	return fmt.Sprintf("  [%s] %s", name, outcome)
}
