// Package gemini implements the provider interface on Google's Gemini API.
package gemini

import (
	"context"
	"sync"

	"github.com/loopchat/loopchat/internal/chat"
	"github.com/loopchat/loopchat/internal/provider"
	"github.com/loopchat/loopchat/internal/tool"
)

// Provider talks to the Gemini API through the Client seam.
type Provider struct {
	client Client

	mu    sync.RWMutex
	model string
}

// New creates a Gemini provider for the given model.
func New(client Client, model string) *Provider {
	return &Provider{client: client, model: model}
}

// Generate sends the conversation to Gemini and converts the reply.
func (p *Provider) Generate(ctx context.Context, history []chat.Message, decls []tool.Declaration) (*provider.Response, error) {
	p.mu.RLock()
	model := p.model
	p.mu.RUnlock()

	cfg := newGenerateConfig(history, decls)
	resp, err := p.client.GenerateContent(ctx, model, toContents(history), cfg)
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

// Capabilities reports Gemini feature support.
func (p *Provider) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		SupportsToolCalling: true,
		MaxContextTokens:    p.contextWindow(),
		MaxOutputTokens:     8192,
	}
}

func (p *Provider) contextWindow() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	switch p.model {
	case "gemini-1.5-pro", "gemini-1.5-pro-latest":
		return 2_000_000
	default:
		return 1_000_000
	}
}
