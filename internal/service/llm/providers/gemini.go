package providers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	domainllm "mrilo/internal/domain/services/llm"
)

// GeminiProvider calls Google's generateContent endpoint.
// A request-scoped key (the user's own Gemini key) takes precedence over the server key.
type GeminiProvider struct {
	spec       *Spec
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewGeminiProvider creates the Gemini adapter
func NewGeminiProvider(spec *Spec, apiKey string, httpClient *http.Client, logger *slog.Logger) *GeminiProvider {
	return &GeminiProvider{
		spec:       spec,
		apiKey:     apiKey,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Name returns the provider name.
func (p *GeminiProvider) Name() string {
	return p.spec.Name
}

// AcceptsScopedCredential reports that callers may supply their own key
func (p *GeminiProvider) AcceptsScopedCredential() bool {
	return true
}

// Generate implements domainllm.Provider.
func (p *GeminiProvider) Generate(ctx context.Context, req *domainllm.GenerateRequest) (*domainllm.GenerateResponse, error) {
	apiKey := p.apiKey
	if scoped := req.CredentialFor(p.spec.Name); scoped != "" {
		apiKey = scoped
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%s: %w", p.spec.Name, ErrNoCredential)
	}

	prompt := req.SystemPrompt
	if prompt == "" {
		prompt = SystemPrompt
	}

	b := &bodyBuilder{}
	b.set("contents.0.role", "user")
	b.set("contents.0.parts.0.text", req.Message)
	if p.spec.Temperature != nil {
		b.set("generation_config.temperature", *p.spec.Temperature)
	}
	if p.spec.MaxTokens > 0 {
		b.set("generation_config.maxOutputTokens", p.spec.MaxTokens)
	}
	b.set("systemInstruction.role", "system")
	b.set("systemInstruction.parts.0.text", systemMessage(prompt, LanguageInstruction(req.Language)))
	body, err := b.bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", p.spec.Name, err)
	}

	data, err := postJSON(ctx, p.httpClient, p.spec.Name, p.spec.URL,
		map[string]string{"x-goog-api-key": apiKey}, body)
	if err != nil {
		return nil, err
	}

	text := gjson.GetBytes(data, "candidates.0.content.parts.0.text").String()
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%s: %w", p.spec.Name, ErrEmptyResponse)
	}

	p.logger.Debug("provider replied",
		"provider", p.spec.Name,
		"finish_reason", gjson.GetBytes(data, "candidates.0.finishReason").String(),
		"chars", len(text),
	)

	return &domainllm.GenerateResponse{Provider: p.spec.Name, Text: text}, nil
}
