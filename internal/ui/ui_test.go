package ui

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopchat/loopchat/internal/chat"
	"github.com/loopchat/loopchat/internal/workflow/toolmanager"
)

func keyPress(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestApproveCall_CancelledContextDeniesWithoutBlocking(t *testing.T) {
	u := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	decision, err := u.ApproveCall(ctx, chat.ToolCall{Name: "create_file"})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, toolmanager.Deny, decision)
}

func TestHandleKeyPress_DecisionForAbandonedPromptDoesNotFreeze(t *testing.T) {
	u := New()
	m := newChatModel(u)
	req := approvalRequest{call: chat.ToolCall{Name: "create_file"}}
	m.pending = &req

	// A stale, undelivered decision from an earlier abandoned prompt.
	u.approvalResp <- toolmanager.Deny

	done := make(chan chatModel, 1)
	go func() {
		model, _ := m.handleKeyPress(keyPress('y'))
		done <- model.(chatModel)
	}()

	select {
	case got := <-done:
		assert.Nil(t, got.pending)
	case <-time.After(time.Second):
		t.Fatal("keypress blocked on an abandoned approval prompt")
	}
}

func TestReadInput_DropsStaleResponse(t *testing.T) {
	u := New()

	// Left over from a prompt whose reader gave up on cancellation.
	u.inputResp <- "stale"

	go func() {
		<-u.inputReq
		u.inputResp <- "fresh"
	}()

	line, err := u.ReadInput(context.Background(), "> ")
	require.NoError(t, err)
	assert.Equal(t, "fresh", line)
}

func TestApprove_StaleDecisionDoesNotAnswerNewPrompt(t *testing.T) {
	u := New()

	u.approvalResp <- toolmanager.Approve

	go func() {
		<-u.approvalReq
		u.approvalResp <- toolmanager.Deny
	}()

	decision, err := u.ApproveCall(context.Background(), chat.ToolCall{Name: "create_file"})
	require.NoError(t, err)
	assert.Equal(t, toolmanager.Deny, decision)
}
