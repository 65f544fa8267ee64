package providers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"mrilo/internal/domain/models"
	domainllm "mrilo/internal/domain/services/llm"
	"mrilo/internal/formatting"
)

// ChatCompletionsProvider speaks the OpenAI-style chat completions format
// shared by Grok, Perplexity and OpenAI.
type ChatCompletionsProvider struct {
	spec       *Spec
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger

	// instruction builds the language suffix of the system message
	instruction func(language string) string
	// extend adds provider-specific body fields
	extend func(b *bodyBuilder, req *domainllm.GenerateRequest)
	// withSources unwraps citations from the reply
	withSources bool
}

// NewGrokProvider creates the Grok adapter
func NewGrokProvider(spec *Spec, apiKey string, httpClient *http.Client, logger *slog.Logger) *ChatCompletionsProvider {
	return &ChatCompletionsProvider{
		spec:        spec,
		apiKey:      apiKey,
		httpClient:  httpClient,
		logger:      logger,
		instruction: LanguageInstruction,
	}
}

// NewPerplexityProvider creates the Perplexity adapter, which also returns sources
func NewPerplexityProvider(spec *Spec, apiKey string, httpClient *http.Client, logger *slog.Logger) *ChatCompletionsProvider {
	return &ChatCompletionsProvider{
		spec:        spec,
		apiKey:      apiKey,
		httpClient:  httpClient,
		logger:      logger,
		instruction: StrictLanguageInstruction,
		extend:      perplexityFields,
		withSources: true,
	}
}

// NewOpenAIProvider creates the OpenAI adapter. Replies carry no language
// suffix: the one-shot persona decides the language itself.
func NewOpenAIProvider(spec *Spec, apiKey string, httpClient *http.Client, logger *slog.Logger) *ChatCompletionsProvider {
	return &ChatCompletionsProvider{
		spec:       spec,
		apiKey:     apiKey,
		httpClient: httpClient,
		logger:     logger,
		instruction: func(language string) string {
			if language == "" {
				return ""
			}
			return LanguageInstruction(language)
		},
	}
}

// Name returns the provider name.
func (p *ChatCompletionsProvider) Name() string {
	return p.spec.Name
}

// Generate implements domainllm.Provider.
func (p *ChatCompletionsProvider) Generate(ctx context.Context, req *domainllm.GenerateRequest) (*domainllm.GenerateResponse, error) {
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

	body, err := p.buildBody(req, systemMessage(prompt, p.instruction(req.Language)))
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", p.spec.Name, err)
	}

	data, err := postJSON(ctx, p.httpClient, p.spec.Name, p.spec.URL,
		map[string]string{"Authorization": "Bearer " + apiKey}, body)
	if err != nil {
		return nil, err
	}

	text := gjson.GetBytes(data, "choices.0.message.content").String()
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%s: %w", p.spec.Name, ErrEmptyResponse)
	}

	resp := &domainllm.GenerateResponse{Provider: p.spec.Name, Text: text}
	if p.withSources {
		resp.Sources = append(
			formatting.FormatSources(gjson.GetBytes(data, "choices.0.message.sources").Array()),
			citationSources(data)...,
		)
	}

	p.logger.Debug("provider replied",
		"provider", p.spec.Name,
		"model", gjson.GetBytes(data, "model").String(),
		"chars", len(text),
		"sources", len(resp.Sources),
	)

	return resp, nil
}

func (p *ChatCompletionsProvider) buildBody(req *domainllm.GenerateRequest, system string) ([]byte, error) {
	b := &bodyBuilder{}
	b.set("model", p.spec.Model)
	b.set("messages.0.role", "system")
	b.set("messages.0.content", system)
	b.set("messages.1.role", "user")
	b.set("messages.1.content", req.Message)
	b.set("stream", false)
	if p.spec.Temperature != nil {
		b.set("temperature", *p.spec.Temperature)
	}
	if p.spec.TopP != nil {
		b.set("top_p", *p.spec.TopP)
	}
	if p.spec.MaxTokens > 0 {
		b.set("max_tokens", p.spec.MaxTokens)
	}
	if p.extend != nil {
		p.extend(b, req)
	}
	return b.bytes()
}

// perplexityFields adds the search and sampling options Perplexity accepts
func perplexityFields(b *bodyBuilder, req *domainllm.GenerateRequest) {
	b.set("return_sources", true)
	b.set("search_recency_filter", "day")
	b.set("frequency_penalty", 0.5)
	b.set("presence_penalty", 0.1)
	b.set("metadata.language", req.Language)
	b.set("metadata.intent", "conversational")
	b.set("metadata.context", "general")
}

// citationSources turns Perplexity's top-level URL list into sources
func citationSources(data []byte) []models.Source {
	var urls []string
	for _, c := range gjson.GetBytes(data, "citations").Array() {
		urls = append(urls, c.String())
	}
	return formatting.SourcesFromURLs(urls)
}
