// Package workflow holds the conversation loop and the events it emits.
package workflow

import "github.com/loopchat/loopchat/internal/chat"

// Event is the interface for all workflow events.
// The UI handles events via type switch.
type Event interface {
	isEvent()
}

// ThinkingEvent is emitted before each model call.
type ThinkingEvent struct {
	Iteration int
}

func (ThinkingEvent) isEvent() {}

// TextEvent is emitted when the model produces text output.
type TextEvent struct {
	Text string
}

func (TextEvent) isEvent() {}

// ToolStartEvent is emitted when a tool call begins executing.
type ToolStartEvent struct {
	Call chat.ToolCall
}

func (ToolStartEvent) isEvent() {}

// ToolEndEvent is emitted when a tool call completes, successfully or not.
type ToolEndEvent struct {
	Result chat.ToolResult
}

func (ToolEndEvent) isEvent() {}

// WarningEvent carries a non-fatal condition worth showing the user, such as
// tools being dropped for an incompatible model.
type WarningEvent struct {
	Message string
}

func (WarningEvent) isEvent() {}

// DoneEvent is emitted when a loop run completes.
type DoneEvent struct{}

func (DoneEvent) isEvent() {}
