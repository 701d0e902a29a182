package chat

import "time"

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// CallStatus tracks a tool call through its lifecycle.
type CallStatus string

const (
	StatusRequested CallStatus = "requested"
	StatusApproved  CallStatus = "approved"
	StatusDenied    CallStatus = "denied"
	StatusExecuting CallStatus = "executing"
	StatusSucceeded CallStatus = "succeeded"
	StatusFailed    CallStatus = "failed"
)

// ErrorKind classifies tool execution failures. The empty kind means success.
// Every kind here is fed back to the model as an observation rather than
// surfaced to the user, so the model can self-correct.
type ErrorKind string

const (
	ErrNone        ErrorKind = ""
	ErrValidation  ErrorKind = "validation_error"
	ErrUnknownTool ErrorKind = "unknown_tool"
	ErrExecution   ErrorKind = "execution_error"
	ErrTimeout     ErrorKind = "timeout"
	ErrCancelled   ErrorKind = "cancelled"
)

// ToolCall is a model-issued request to invoke a named tool.
// The ID is assigned by the provider and must be echoed back verbatim on the
// matching Tool message so the provider can correlate request and response.
type ToolCall struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Args   map[string]any `json:"args,omitempty"`
	Status CallStatus     `json:"status,omitempty"`
}

// ToolResult is the outcome of one ToolCall. One result is always produced
// per call, even on failure or denial, because the model requires an
// observation for every call it made.
type ToolResult struct {
	CallID  string     `json:"call_id"`
	Name    string     `json:"name"`
	Content string     `json:"content"`
	Status  CallStatus `json:"status,omitempty"`
	Err     ErrorKind  `json:"error,omitempty"`
}

// ObservationContent renders the result as the content of a Tool message.
func (r ToolResult) ObservationContent() string {
	if r.Err == ErrNone {
		return r.Content
	}
	if r.Content != "" {
		return "Error (" + string(r.Err) + "): " + r.Content
	}
	return "Error (" + string(r.Err) + ")"
}

// TokenUsage tracks token counts reported by the provider.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens,omitempty"`
	OutputTokens int `json:"output_tokens,omitempty"`
	TotalTokens  int `json:"total_tokens,omitempty"`
}

func (u *TokenUsage) add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
}

// Message is a single entry in the conversation history.
// Messages are immutable once appended to a session.
type Message struct {
	Role       Role        `json:"role"`
	Content    string      `json:"content"`
	ToolCalls  []ToolCall  `json:"tool_calls,omitempty"`   // assistant messages only
	ToolCallID string      `json:"tool_call_id,omitempty"` // tool messages only
	ToolName   string      `json:"tool_name,omitempty"`    // tool messages only
	Timestamp  time.Time   `json:"timestamp"`
	Usage      *TokenUsage `json:"token_usage,omitempty"`
}

// NewMessage creates a timestamped message.
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content, Timestamp: time.Now()}
}

// NewToolMessage creates the observation message answering a tool call.
func NewToolMessage(result ToolResult) Message {
	return Message{
		Role:       RoleTool,
		Content:    result.ObservationContent(),
		ToolCallID: result.CallID,
		ToolName:   result.Name,
		Timestamp:  time.Now(),
	}
}

// estimateTokens is the chars/4 heuristic used when the provider did not
// report usage for a message.
func estimateTokens(content string) int {
	return len(content) / 4
}

// EstimatedTokens returns reported usage when available, an estimate otherwise.
func (m Message) EstimatedTokens() int {
	if m.Usage != nil && m.Usage.TotalTokens > 0 {
		return m.Usage.TotalTokens
	}
	return estimateTokens(m.Content)
}
