package llm

import (
	"context"

	"mrilo/internal/domain/models"
)

// Provider defines the interface that every LLM provider adapter implements.
// One Generate call is one outbound request to the provider's API.
type Provider interface {
	// Name returns the provider name (e.g., "grok", "gemini")
	Name() string

	// Generate sends the message and returns the unwrapped reply.
	// An empty reply is an error.
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)
}

// GenerateRequest contains the parameters for a single provider call.
type GenerateRequest struct {
	// Message is the user's text, sent as-is
	Message string

	// Language is the supported language name the reply must be written in
	Language string

	// SystemPrompt overrides the default persona prompt when non-empty
	SystemPrompt string

	// Credentials holds per-request API keys keyed by provider name.
	// A key here takes precedence over the server's configured key.
	Credentials map[string]string
}

// CredentialFor returns the request-scoped key for provider, if any
func (r *GenerateRequest) CredentialFor(provider string) string {
	if r == nil || r.Credentials == nil {
		return ""
	}
	return r.Credentials[provider]
}

// GenerateResponse is a provider reply reduced to display text and citations.
type GenerateResponse struct {
	Provider string
	Text     string
	Sources  []models.Source
}
