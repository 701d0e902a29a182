package ui

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/loopchat/loopchat/internal/workflow/toolmanager"
)

type transcriptEntry struct {
	role    string
	content string
}

type chatModel struct {
	ui       *UI
	renderer *renderer

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	width  int
	height int

	transcript []transcriptEntry
	status     string
	canSubmit  bool
	pending    *approvalRequest
}

func newChatModel(u *UI) chatModel {
	ti := textinput.New()
	ti.Placeholder = "Type a message..."
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return chatModel{
		ui:       u,
		renderer: newRenderer(),
		input:    ti,
		viewport: viewport.New(80, 20),
		spinner:  sp,
	}
}

type inputRequestMsg inputRequest
type approvalRequestMsg approvalRequest
type statusUpdateMsg statusMsg
type displayReceivedMsg displayMsg

func (m chatModel) Init() tea.Cmd {
	if m.ui.readyChan != nil {
		close(m.ui.readyChan)
	}
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		listenForInput(m.ui.inputReq),
		listenForApproval(m.ui.approvalReq),
		listenForStatus(m.ui.statusChan),
		listenForDisplay(m.ui.displayChan),
	)
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - 5
		m.refreshViewport()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case inputRequestMsg:
		m.canSubmit = true
		return m, listenForInput(m.ui.inputReq)

	case approvalRequestMsg:
		req := approvalRequest(msg)
		m.pending = &req
		return m, listenForApproval(m.ui.approvalReq)

	case statusUpdateMsg:
		m.status = msg.text
		return m, listenForStatus(m.ui.statusChan)

	case displayReceivedMsg:
		m.transcript = append(m.transcript, transcriptEntry{role: msg.role, content: msg.content})
		m.refreshViewport()
		return m, listenForDisplay(m.ui.displayChan)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m chatModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.pending != nil {
		switch msg.String() {
		case "y":
			m.sendDecision(toolmanager.Approve)
			m.pending = nil
		case "n":
			m.sendDecision(toolmanager.Deny)
			m.pending = nil
		case "i":
			m.sendDecision(toolmanager.Inspect)
			m.pending = nil
		}
		return m, nil
	}

	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit

	case "enter":
		if m.canSubmit && m.input.Value() != "" {
			line := m.input.Value()
			m.transcript = append(m.transcript, transcriptEntry{role: "user", content: line})
			m.refreshViewport()
			select {
			case m.ui.inputResp <- line:
			default: // requester gave up; drop the line
			}
			m.input.SetValue("")
			m.canSubmit = false
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// sendDecision must not block Update. If the dispatcher abandoned the prompt
// on cancellation the decision has nowhere to go and is dropped.
func (m chatModel) sendDecision(d toolmanager.Decision) {
	select {
	case m.ui.approvalResp <- d:
	default:
	}
}

func (m chatModel) View() string {
	var b strings.Builder
	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	if m.pending != nil {
		b.WriteString(m.renderApproval(*m.pending))
	} else {
		if m.status != "" {
			b.WriteString(statusStyle.Render(m.spinner.View() + " " + m.status))
		}
		b.WriteString("\n")
		b.WriteString(m.input.View())
	}
	return b.String()
}

func (m chatModel) renderApproval(req approvalRequest) string {
	var b strings.Builder
	b.WriteString(approvalStyle.Render(fmt.Sprintf("Run tool %q? [y]es / [n]o / [i]nspect", req.call.Name)))
	if req.showDetail {
		detail, err := json.MarshalIndent(req.call.Args, "", "  ")
		if err != nil {
			detail = []byte("(arguments not displayable)")
		}
		b.WriteString("\n")
		b.WriteString(detailStyle.Render(string(detail)))
	}
	return b.String()
}

func (m *chatModel) refreshViewport() {
	var b strings.Builder
	for _, entry := range m.transcript {
		b.WriteString(m.renderer.renderEntry(entry))
		b.WriteString("\n")
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func listenForInput(ch <-chan inputRequest) tea.Cmd {
	return func() tea.Msg { return inputRequestMsg(<-ch) }
}

func listenForApproval(ch <-chan approvalRequest) tea.Cmd {
	return func() tea.Msg { return approvalRequestMsg(<-ch) }
}

func listenForStatus(ch <-chan statusMsg) tea.Cmd {
	return func() tea.Msg { return statusUpdateMsg(<-ch) }
}

func listenForDisplay(ch <-chan displayMsg) tea.Cmd {
	return func() tea.Msg { return displayReceivedMsg(<-ch) }
}
