package gemini

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/loopchat/loopchat/internal/chat"
	"github.com/loopchat/loopchat/internal/provider"
	"github.com/loopchat/loopchat/internal/tool"
)

// toContents converts conversation history to Gemini Content format. System
// messages are folded into SystemInstruction and skipped here.
func toContents(history []chat.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, msg := range history {
		if msg.Role == chat.RoleSystem {
			continue
		}
		if c := messageToContent(msg); c != nil {
			contents = append(contents, c)
		}
	}
	return contents
}

func messageToContent(msg chat.Message) *genai.Content {
	role := "user"
	if msg.Role == chat.RoleAssistant {
		role = "model"
	}

	var parts []*genai.Part

	switch msg.Role {
	case chat.RoleTool:
		parts = append(parts, &genai.Part{
			FunctionResponse: &genai.FunctionResponse{
				Name: msg.ToolName,
				Response: map[string]any{
					"content": msg.Content,
				},
			},
		})
	default:
		if msg.Content != "" {
			parts = append(parts, genai.NewPartFromText(msg.Content))
		}
		for _, call := range msg.ToolCalls {
			parts = append(parts, &genai.Part{
				FunctionCall: &genai.FunctionCall{
					Name: call.Name,
					Args: call.Args,
				},
			})
		}
	}

	if len(parts) == 0 {
		return nil
	}
	return &genai.Content{Role: role, Parts: parts}
}

// systemInstruction joins every system message into one instruction block.
// A compacted session carries two: the system prompt and the synthetic
// summary message, and both have to reach the model.
func systemInstruction(history []chat.Message) *genai.Content {
	var blocks []string
	for _, msg := range history {
		if msg.Role == chat.RoleSystem && msg.Content != "" {
			blocks = append(blocks, msg.Content)
		}
	}
	if len(blocks) == 0 {
		return nil
	}
	text := strings.Join(blocks, "\n\n")
	return &genai.Content{Parts: []*genai.Part{genai.NewPartFromText(text)}}
}

// newGenerateConfig builds the request config: system instruction, relaxed
// safety settings and the declared tools.
func newGenerateConfig(history []chat.Message, decls []tool.Declaration) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: systemInstruction(history),
		SafetySettings:    defaultSafetySettings(),
	}
	if tools := toTools(decls); tools != nil {
		cfg.Tools = tools
	}
	return cfg
}

func defaultSafetySettings() []*genai.SafetySetting {
	categories := []genai.HarmCategory{
		genai.HarmCategoryHateSpeech,
		genai.HarmCategoryDangerousContent,
		genai.HarmCategoryHarassment,
		genai.HarmCategorySexuallyExplicit,
	}
	settings := make([]*genai.SafetySetting, 0, len(categories))
	for _, c := range categories {
		settings = append(settings, &genai.SafetySetting{
			Category:  c,
			Threshold: genai.HarmBlockThresholdOff,
		})
	}
	return settings
}

func toTools(decls []tool.Declaration) []*genai.Tool {
	if len(decls) == 0 {
		return nil
	}
	fds := make([]*genai.FunctionDeclaration, 0, len(decls))
	for _, d := range decls {
		fd := &genai.FunctionDeclaration{
			Name:        d.Name,
			Description: d.Description,
		}
		if d.Parameters != nil {
			fd.Parameters = toSchema(d.Parameters)
		}
		fds = append(fds, fd)
	}
	return []*genai.Tool{{FunctionDeclarations: fds}}
}

func toSchema(s *tool.Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        toType(s.Type),
		Description: s.Description,
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toSchema(prop)
		}
	}
	if len(s.Required) > 0 {
		out.Required = s.Required
	}
	if len(s.Enum) > 0 {
		out.Enum = s.Enum
	}
	if s.Items != nil {
		out.Items = toSchema(s.Items)
	}
	return out
}

func toType(t tool.Type) genai.Type {
	switch t {
	case tool.TypeString:
		return genai.TypeString
	case tool.TypeNumber:
		return genai.TypeNumber
	case tool.TypeInteger:
		return genai.TypeInteger
	case tool.TypeBoolean:
		return genai.TypeBoolean
	case tool.TypeArray:
		return genai.TypeArray
	case tool.TypeObject:
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}

// fromResponse converts a Gemini response to the provider format. Gemini
// does not assign tool call IDs, so fresh ones are generated; the session is
// the source of truth for correlation from then on.
func fromResponse(resp *genai.GenerateContentResponse) (*provider.Response, error) {
	if len(resp.Candidates) == 0 {
		return nil, &provider.Error{
			Code:    provider.ErrorCodeInvalidRequest,
			Message: "no candidates in response",
		}
	}
	candidate := resp.Candidates[0]

	if candidate.FinishReason == genai.FinishReasonSafety {
		return nil, &provider.Error{
			Code:    provider.ErrorCodeContentBlocked,
			Message: "content blocked by safety filters",
		}
	}

	out := &provider.Response{FinishReason: string(candidate.FinishReason)}
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				out.Content += part.Text
			}
			if part.FunctionCall != nil {
				out.ToolCalls = append(out.ToolCalls, chat.ToolCall{
					ID:     uuid.NewString(),
					Name:   part.FunctionCall.Name,
					Args:   part.FunctionCall.Args,
					Status: chat.StatusRequested,
				})
			}
		}
	}
	if usage := resp.UsageMetadata; usage != nil {
		out.Usage = chat.TokenUsage{
			InputTokens:  int(usage.PromptTokenCount),
			OutputTokens: int(usage.CandidatesTokenCount),
			TotalTokens:  int(usage.TotalTokenCount),
		}
	}
	return out, nil
}

// mapError maps Gemini API errors to provider errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return mapAPIError(&apiErr, err)
	}
	return &provider.Error{
		Code:       provider.ErrorCodeNetwork,
		Message:    "network error",
		Underlying: err,
		Retryable:  true,
	}
}

func mapAPIError(apiErr *genai.APIError, err error) error {
	switch apiErr.Code {
	case 401, 403:
		return &provider.Error{
			Code:       provider.ErrorCodeAuth,
			Message:    "authentication failed",
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
		return &provider.Error{
			Code:       provider.ErrorCodeInvalidRequest,
			Message:    fmt.Sprintf("invalid request: %s", apiErr.Message),
			Underlying: err,
		}
	case 404:
		return &provider.Error{
			Code:       provider.ErrorCodeInvalidModel,
			Message:    fmt.Sprintf("model not found: %s", apiErr.Message),
			Underlying: err,
		}
	case 500, 502, 503, 504:
		return &provider.Error{
			Code:       provider.ErrorCodeUnavailable,
			Message:    "service unavailable",
			Underlying: err,
			Retryable:  true,
		}
	default:
		return &provider.Error{
			Code:       provider.ErrorCodeNetwork,
			Message:    fmt.Sprintf("API error: %s", apiErr.Message),
			Underlying: err,
			Retryable:  true,
		}
	}
}
