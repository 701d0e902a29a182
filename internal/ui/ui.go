// Package ui is the terminal chat interface, built on Bubble Tea. The
// conversation loop runs in its own goroutine and talks to the UI over
// channels.
package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/loopchat/loopchat/internal/chat"
	"github.com/loopchat/loopchat/internal/workflow/toolmanager"
)

type inputRequest struct {
	prompt string
}

type approvalRequest struct {
	call       chat.ToolCall
	showDetail bool
}

type statusMsg struct {
	text string
}

type displayMsg struct {
	role    string
	content string
}

// UI bridges the Bubble Tea program and the conversation loop.
type UI struct {
	program *tea.Program

	inputReq     chan inputRequest
	inputResp    chan string
	approvalReq  chan approvalRequest
	approvalResp chan toolmanager.Decision
	statusChan   chan statusMsg
	displayChan  chan displayMsg
	readyChan    chan struct{}
}

// New creates the UI with its Bubble Tea program.
func New() *UI {
	// Response channels are buffered so the model never blocks answering a
	// prompt the requesting side has already abandoned; the requester drops
	// any stale answer before arming a new prompt.
	u := &UI{
		inputReq:     make(chan inputRequest),
		inputResp:    make(chan string, 1),
		approvalReq:  make(chan approvalRequest),
		approvalResp: make(chan toolmanager.Decision, 1),
		statusChan:   make(chan statusMsg, 16),
		displayChan:  make(chan displayMsg, 16),
		readyChan:    make(chan struct{}),
	}
	m := newChatModel(u)
	u.program = tea.NewProgram(m, tea.WithAltScreen())
	return u
}

// Start runs the Bubble Tea program until the user quits.
func (u *UI) Start() error {
	_, err := u.program.Run()
	return err
}

// Quit stops the program.
func (u *UI) Quit() {
	u.program.Quit()
}

// Ready is closed once the program accepts requests.
func (u *UI) Ready() <-chan struct{} {
	return u.readyChan
}

// ReadInput blocks until the user submits a line.
func (u *UI) ReadInput(ctx context.Context, prompt string) (string, error) {
	select {
	case <-u.inputResp: // drop a line left over from an abandoned prompt
	default:
	}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case u.inputReq <- inputRequest{prompt: prompt}:
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case line := <-u.inputResp:
			return line, nil
		}
	}
}

// ApproveCall prompts for a decision on a gated tool call. An Inspect
// verdict comes back to the caller, which re-prompts; the next prompt for
// the same call shows the full argument detail.
func (u *UI) ApproveCall(ctx context.Context, call chat.ToolCall) (toolmanager.Decision, error) {
	return u.approve(ctx, call, false)
}

func (u *UI) approve(ctx context.Context, call chat.ToolCall, detail bool) (toolmanager.Decision, error) {
	select {
	case <-u.approvalResp: // drop a decision left over from an abandoned prompt
	default:
	}
	select {
	case <-ctx.Done():
		return toolmanager.Deny, ctx.Err()
	case u.approvalReq <- approvalRequest{call: call, showDetail: detail}:
		select {
		case <-ctx.Done():
			return toolmanager.Deny, ctx.Err()
		case decision := <-u.approvalResp:
			if decision == toolmanager.Inspect && !detail {
				// Show the expanded call before asking again.
				return u.approve(ctx, call, true)
			}
			return decision, nil
		}
	}
}

// WriteStatus updates the status line. Dropped when the UI is busy.
func (u *UI) WriteStatus(text string) {
	select {
	case u.statusChan <- statusMsg{text: text}:
	default:
	}
}

// WriteMessage appends a message to the transcript view.
func (u *UI) WriteMessage(role, content string) {
	select {
	case u.displayChan <- displayMsg{role: role, content: content}:
	default:
	}
}
