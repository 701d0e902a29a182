// Package openai implements the provider interface on the OpenAI chat
// completions API. It also serves OpenAI-compatible local servers when
// pointed at a custom base URL.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/loopchat/loopchat/internal/chat"
	"github.com/loopchat/loopchat/internal/provider"
	"github.com/loopchat/loopchat/internal/tool"
)

// Client is the slice of the SDK this provider calls.
type Client interface {
	CreateChatCompletion(ctx context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error)
}

// Provider talks to the chat completions API.
type Provider struct {
	client Client

	mu    sync.RWMutex
	model string
}

// New creates an OpenAI provider for the given model.
func New(client Client, model string) *Provider {
	return &Provider{client: client, model: model}
}

// NewClient builds the SDK client. baseURL is optional and switches the
// provider to a compatible local server.
func NewClient(apiKey, baseURL string) *goopenai.Client {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return goopenai.NewClientWithConfig(cfg)
}

// Generate sends the conversation and converts the reply.
func (p *Provider) Generate(ctx context.Context, history []chat.Message, decls []tool.Declaration) (*provider.Response, error) {
	p.mu.RLock()
	model := p.model
	p.mu.RUnlock()

	req := goopenai.ChatCompletionRequest{
		Model:    model,
		Messages: toChatMessages(history),
	}
	if len(decls) > 0 {
		req.Tools = toTools(decls)
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, mapError(err)
	}
	return fromResponse(resp)
}

// Model returns the active model name.
func (p *Provider) Model() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.model
}

// SetModel changes the active model at runtime.
func (p *Provider) SetModel(model string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.model = model
}

// Capabilities reports feature support.
func (p *Provider) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		SupportsToolCalling: true,
		MaxContextTokens:    128_000,
		MaxOutputTokens:     16_384,
	}
}

func toChatMessages(history []chat.Message) []goopenai.ChatCompletionMessage {
	out := make([]goopenai.ChatCompletionMessage, 0, len(history))
	for _, msg := range history {
		out = append(out, toChatMessage(msg))
	}
	return out
}

func toChatMessage(msg chat.Message) goopenai.ChatCompletionMessage {
	switch msg.Role {
	case chat.RoleSystem:
		return goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: msg.Content,
		}
	case chat.RoleAssistant:
		m := goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleAssistant,
			Content: msg.Content,
		}
		for _, call := range msg.ToolCalls {
			args, err := json.Marshal(call.Args)
			if err != nil {
				args = []byte("{}")
			}
			m.ToolCalls = append(m.ToolCalls, goopenai.ToolCall{
				ID:   call.ID,
				Type: goopenai.ToolTypeFunction,
				Function: goopenai.FunctionCall{
					Name:      call.Name,
					Arguments: string(args),
				},
			})
		}
		return m
	case chat.RoleTool:
		return goopenai.ChatCompletionMessage{
			Role:       goopenai.ChatMessageRoleTool,
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
	default:
		return goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleUser,
			Content: msg.Content,
		}
	}
}

func toTools(decls []tool.Declaration) []goopenai.Tool {
	out := make([]goopenai.Tool, 0, len(decls))
	for _, d := range decls {
		fn := &goopenai.FunctionDefinition{
			Name:        d.Name,
			Description: d.Description,
		}
		if d.Parameters != nil {
			fn.Parameters = d.Parameters
		}
		out = append(out, goopenai.Tool{
			Type:     goopenai.ToolTypeFunction,
			Function: fn,
		})
	}
	return out
}

func fromResponse(resp goopenai.ChatCompletionResponse) (*provider.Response, error) {
	if len(resp.Choices) == 0 {
		return nil, &provider.Error{
			Code:    provider.ErrorCodeInvalidRequest,
			Message: "no choices in response",
		}
	}
	choice := resp.Choices[0]

	out := &provider.Response{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Usage: chat.TokenUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}
	for _, call := range choice.Message.ToolCalls {
		args := map[string]any{}
		if call.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
				return nil, &provider.Error{
					Code:       provider.ErrorCodeInvalidRequest,
					Message:    fmt.Sprintf("malformed tool call arguments for %s", call.Function.Name),
					Underlying: err,
				}
			}
		}
		out.ToolCalls = append(out.ToolCalls, chat.ToolCall{
			ID:     call.ID,
			Name:   call.Function.Name,
			Args:   args,
			Status: chat.StatusRequested,
		})
	}
	return out, nil
}

// mapError maps SDK errors to provider errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 401, 403:
			return &provider.Error{
				Code:       provider.ErrorCodeAuth,
				Message:    "authentication failed",
				Underlying: err,
			}
		case 404:
			return &provider.Error{
				Code:       provider.ErrorCodeInvalidModel,
				Message:    "model not found",
				Underlying: err,
			}
		case 429:
			return &provider.Error{
				Code:       provider.ErrorCodeRateLimit,
				Message:    "rate limit exceeded",
				Underlying: err,
				Retryable:  true,
			}
		case 400:
			if apiErr.Code == "context_length_exceeded" {
				return &provider.Error{
					Code:       provider.ErrorCodeContextLength,
					Message:    "context length exceeded",
					Underlying: err,
				}
			}
			return &provider.Error{
				Code:       provider.ErrorCodeInvalidRequest,
				Message:    apiErr.Message,
				Underlying: err,
			}
		case 500, 502, 503, 504:
			return &provider.Error{
				Code:       provider.ErrorCodeUnavailable,
				Message:    "service unavailable",
				Underlying: err,
				Retryable:  true,
			}
		}
	}
	return &provider.Error{
		Code:       provider.ErrorCodeNetwork,
		Message:    "network error",
		Underlying: err,
		Retryable:  true,
	}
}
