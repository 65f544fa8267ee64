package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"mrilo/internal/config"
	"mrilo/internal/domain"
	"mrilo/internal/domain/models"
	domainllm "mrilo/internal/domain/services/llm"
	"mrilo/internal/service/llm/providers"
)

// CompletionProvider is the catalogue name used for one-shot completions
const CompletionProvider = "openai"

// Completion answers POST /openai: one call, no fallback, no language routing.
type Completion struct {
	registry *providers.Registry
	provider string
	logger   *slog.Logger
}

var _ domainllm.CompletionService = (*Completion)(nil)

// NewCompletion creates the one-shot completion service
func NewCompletion(registry *providers.Registry, logger *slog.Logger) *Completion {
	return &Completion{
		registry: registry,
		provider: CompletionProvider,
		logger:   logger,
	}
}

// Complete implements domainllm.CompletionService
func (c *Completion) Complete(ctx context.Context, req *models.OpenAIRequest) (string, error) {
	if err := validation.Validate(req.Message,
		validation.Required.Error("Message is required"),
		validation.RuneLength(0, config.MaxMessageLength).
			Error(fmt.Sprintf("Message must be at most %d characters", config.MaxMessageLength)),
	); err != nil {
		return "", &domain.ValidationError{Message: err.Error()}
	}

	entry, ok := c.registry.Get(c.provider)
	if !ok {
		return "", &domain.UnavailableError{Message: "OpenAI API key is not configured"}
	}

	prompt := strings.TrimSpace(req.SystemPrompt)
	if prompt == "" {
		prompt = providers.CompletionPrompt
	}

	resp, err := entry.Generate(ctx, &domainllm.GenerateRequest{
		Message:      req.Message,
		SystemPrompt: prompt,
	})
	if errors.Is(err, providers.ErrNoCredential) {
		return "", &domain.UnavailableError{Message: "OpenAI API key is not configured"}
	}
	if err != nil {
		c.logger.Error("completion failed", "provider", c.provider, "error", err)
		return "", &domain.UnavailableError{Message: "An error occurred while processing your request"}
	}

	return resp.Text, nil
}
