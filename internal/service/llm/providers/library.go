package providers

import (
	"context"
	"fmt"
	"strings"

	llmprovider "github.com/haowjy/meridian-llm-go"
	"github.com/haowjy/meridian-llm-go/providers/anthropic"
	"github.com/haowjy/meridian-llm-go/providers/lorem"
	"github.com/haowjy/meridian-llm-go/providers/openrouter"

	domainllm "mrilo/internal/domain/services/llm"
)

const blockTypeText = "text"

// LibraryProvider wraps a meridian-llm-go provider (Anthropic, OpenRouter or
// the offline Lorem provider) behind domainllm.Provider.
type LibraryProvider struct {
	name     string
	model    string
	provider llmprovider.Provider
}

// NewLibraryProvider wraps an existing library provider
func NewLibraryProvider(spec *Spec, provider llmprovider.Provider) *LibraryProvider {
	return &LibraryProvider{
		name:     spec.Name,
		model:    spec.Model,
		provider: provider,
	}
}

// newLibraryBackend creates the library provider for a catalogue entry.
// Lorem requires no API key.
func newLibraryBackend(name, apiKey string) (llmprovider.Provider, error) {
	switch name {
	case "lorem":
		return lorem.NewProvider(), nil
	case "anthropic":
		if apiKey == "" {
			return nil, fmt.Errorf("%s: %w", name, ErrNoCredential)
		}
		provider, err := anthropic.NewProvider(apiKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create Anthropic provider: %w", err)
		}
		return provider, nil
	case "openrouter":
		if apiKey == "" {
			return nil, fmt.Errorf("%s: %w", name, ErrNoCredential)
		}
		provider, err := openrouter.NewProvider(apiKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenRouter provider: %w", err)
		}
		return provider, nil
	default:
		return nil, fmt.Errorf("unsupported library provider: %s", name)
	}
}

// Name returns the catalogue name, which may differ from the library's own name.
func (p *LibraryProvider) Name() string {
	return p.name
}

// Generate implements domainllm.Provider. The persona prompt and language
// instruction are sent ahead of the message in a single user turn.
func (p *LibraryProvider) Generate(ctx context.Context, req *domainllm.GenerateRequest) (*domainllm.GenerateResponse, error) {
	if !p.provider.SupportsModel(p.model) {
		return nil, fmt.Errorf("%s does not support model %s", p.provider.Name().String(), p.model)
	}

	prompt := req.SystemPrompt
	if prompt == "" {
		prompt = SystemPrompt
	}
	text := systemMessage(prompt, LanguageInstruction(req.Language)) + "\n\n" + req.Message

	libReq := &llmprovider.GenerateRequest{
		Messages: []llmprovider.Message{
			{
				Role: "user",
				Blocks: []*llmprovider.Block{
					{BlockType: blockTypeText, Sequence: 0, TextContent: &text},
				},
			},
		},
		Model: p.model,
	}

	libResp, err := p.provider.GenerateResponse(ctx, libReq)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.name, err)
	}

	var reply strings.Builder
	for _, block := range libResp.Blocks {
		if block == nil || block.BlockType != blockTypeText || block.TextContent == nil {
			continue
		}
		if reply.Len() > 0 {
			reply.WriteString("\n\n")
		}
		reply.WriteString(*block.TextContent)
	}
	if strings.TrimSpace(reply.String()) == "" {
		return nil, fmt.Errorf("%s: %w", p.name, ErrEmptyResponse)
	}

	return &domainllm.GenerateResponse{Provider: p.name, Text: reply.String()}, nil
}
