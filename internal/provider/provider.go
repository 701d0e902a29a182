// Package provider abstracts the LLM backends loopchat can talk to.
package provider

import (
	"context"

	"github.com/loopchat/loopchat/internal/chat"
	"github.com/loopchat/loopchat/internal/tool"
)

// Response is a single model turn. Content may be empty when the model only
// requested tool calls, and ToolCalls empty when it only produced text.
type Response struct {
	Content      string
	ToolCalls    []chat.ToolCall
	FinishReason string
	Usage        chat.TokenUsage
}

// Capabilities describes what a provider/model combination supports.
type Capabilities struct {
	SupportsToolCalling bool
	MaxContextTokens    int
	MaxOutputTokens     int
}

// Provider generates model turns from conversation history. Declarations may
// be nil when tool calling is disabled or unsupported.
type Provider interface {
	Generate(ctx context.Context, history []chat.Message, decls []tool.Declaration) (*Response, error)
	Model() string
	Capabilities() Capabilities
}
