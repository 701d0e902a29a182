package gemini

import (
	"context"

	"google.golang.org/genai"
)

// Client is the slice of the Gemini SDK this provider calls. The seam keeps
// the provider testable without network access.
type Client interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// SDKClient wraps the official SDK client to satisfy Client.
type SDKClient struct {
	client *genai.Client
}

// NewSDKClient creates an SDKClient from a configured genai client.
func NewSDKClient(client *genai.Client) *SDKClient {
	return &SDKClient{client: client}
}

func (c *SDKClient) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return c.client.Models.GenerateContent(ctx, model, contents, config)
}
