package providers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	domainllm "mrilo/internal/domain/services/llm"
	"mrilo/internal/formatting"
)

// HuggingFaceProvider calls a hosted inference model. Its free-form output is
// condensed before it is returned.
type HuggingFaceProvider struct {
	spec       *Spec
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHuggingFaceProvider creates the Hugging Face adapter
func NewHuggingFaceProvider(spec *Spec, apiKey string, httpClient *http.Client, logger *slog.Logger) *HuggingFaceProvider {
	return &HuggingFaceProvider{
		spec:       spec,
		apiKey:     apiKey,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Name returns the provider name.
func (p *HuggingFaceProvider) Name() string {
	return p.spec.Name
}

// Generate implements domainllm.Provider.
func (p *HuggingFaceProvider) Generate(ctx context.Context, req *domainllm.GenerateRequest) (*domainllm.GenerateResponse, error) {
	apiKey := p.apiKey
	if scoped := req.CredentialFor(p.spec.Name); scoped != "" {
		apiKey = scoped
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%s: %w", p.spec.Name, ErrNoCredential)
	}

	b := &bodyBuilder{}
	b.set("inputs", req.Message)
	body, err := b.bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", p.spec.Name, err)
	}

	data, err := postJSON(ctx, p.httpClient, p.spec.Name, p.spec.URL,
		map[string]string{"Authorization": "Bearer " + apiKey}, body)
	if err != nil {
		return nil, err
	}

	text := gjson.GetBytes(data, "0.generated_text").String()
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%s: %w", p.spec.Name, ErrEmptyResponse)
	}

	condensed := formatting.CondenseResponse(text)
	p.logger.Debug("provider replied",
		"provider", p.spec.Name,
		"chars", len(text),
		"condensed_chars", len(condensed),
	)

	return &domainllm.GenerateResponse{Provider: p.spec.Name, Text: condensed}, nil
}
