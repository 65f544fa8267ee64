package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"mrilo/internal/config"
	"mrilo/internal/domain"
	"mrilo/internal/domain/models"
	domainllm "mrilo/internal/domain/services/llm"
	"mrilo/internal/formatting"
	"mrilo/internal/language"
	"mrilo/internal/metrics"
	"mrilo/internal/service/llm/providers"
)

// UnavailableMessage is returned when every provider in the chain failed or was skipped
const UnavailableMessage = "All AI services are currently unavailable. Please try again later."

var languageSwitchPattern = regexp.MustCompile(`(?i)(?:respond|speak|talk) in (?:the )?language:?\s*([a-zA-Z]+)`)

// Chat outcomes reported to metrics
const (
	outcomeInvalid        = "invalid"
	outcomeOverride       = "override"
	outcomeLanguageSwitch = "language_switch"
	outcomeClarification  = "clarification"
	outcomeProvider       = "provider"
	outcomeUnavailable    = "unavailable"
)

// Orchestrator answers one chat message: canned overrides, language
// commands and the mixed-language guard first, then the provider chain.
type Orchestrator struct {
	registry    *providers.Registry
	preferences domainllm.PreferenceStore
	guests      *GuestPreferences
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

var _ domainllm.ChatService = (*Orchestrator)(nil)

// NewOrchestrator creates the chat orchestrator
func NewOrchestrator(
	registry *providers.Registry,
	preferences domainllm.PreferenceStore,
	metrics *metrics.Metrics,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		registry:    registry,
		preferences: preferences,
		guests:      NewGuestPreferences(),
		metrics:     metrics,
		logger:      logger,
	}
}

// HandleChat implements domainllm.ChatService
func (o *Orchestrator) HandleChat(ctx context.Context, req *models.ChatRequest) models.Envelope {
	if err := validateChatRequest(req); err != nil {
		o.metrics.ObserveChatOutcome(outcomeInvalid)
		return formatting.ErrorResponse(err.Error(), http.StatusBadRequest)
	}
	message := req.Message

	if ov, ok := matchOverride(message); ok {
		o.logger.Debug("override matched", "override", ov.name)
		o.metrics.ObserveChatOutcome(outcomeOverride)
		return formatting.CustomResponse(ov.reply, nil)
	}

	if req.UserID != "" {
		if reply, ok := o.switchLanguage(ctx, o.preferenceStore(req), req.UserID, message); ok {
			o.metrics.ObserveChatOutcome(outcomeLanguageSwitch)
			return formatting.CustomResponse(reply, nil)
		}
	}

	if language.HasMultipleLanguages(message) {
		o.metrics.ObserveChatOutcome(outcomeClarification)
		return formatting.CustomResponse(language.ClarificationMessage(), nil)
	}

	genReq := &domainllm.GenerateRequest{
		Message:     message,
		Language:    o.targetLanguage(ctx, o.preferenceStore(req), req.UserID, message),
		Credentials: scopedCredentials(req.Credentials),
	}

	resp, err := o.generate(ctx, genReq)
	if err != nil {
		o.logger.Error("all providers failed",
			"user_id", req.UserID,
			"language", genReq.Language,
			"error", err,
		)
		o.metrics.ObserveChatOutcome(outcomeUnavailable)
		return formatting.ErrorResponse(UnavailableMessage, http.StatusServiceUnavailable)
	}

	o.metrics.ObserveChatOutcome(outcomeProvider)
	return formatting.CustomResponse(resp.Text, resp.Sources)
}

// preferenceStore picks the durable store for verified users. Ids taken from
// the request body only ever reach the process-local guest store.
func (o *Orchestrator) preferenceStore(req *models.ChatRequest) domainllm.PreferenceStore {
	if req.Authenticated {
		return o.preferences
	}
	return o.guests
}

// switchLanguage handles an explicit "respond in language: X" command
func (o *Orchestrator) switchLanguage(ctx context.Context, store domainllm.PreferenceStore, userID, message string) (string, bool) {
	match := languageSwitchPattern.FindStringSubmatch(message)
	if match == nil {
		return "", false
	}

	requested := match[1]
	name := language.Normalize(requested)
	if !language.IsSupported(name) {
		return language.UnsupportedMessage(requested), true
	}

	if err := store.SetLanguage(ctx, userID, name); err != nil {
		// The confirmation still applies to this reply; only persistence failed
		o.logger.Error("failed to store language preference",
			"user_id", userID,
			"language", name,
			"error", err,
		)
	} else {
		o.logger.Info("language preference stored", "user_id", userID, "language", name)
	}
	return language.SwitchConfirmation(name), true
}

// targetLanguage is the stored preference if any, else the detected language
func (o *Orchestrator) targetLanguage(ctx context.Context, store domainllm.PreferenceStore, userID, message string) string {
	target := ""
	if userID != "" {
		stored, err := store.GetLanguage(ctx, userID)
		if err != nil {
			o.logger.Warn("failed to load language preference", "user_id", userID, "error", err)
		}
		target = stored
	}
	if target == "" {
		target = language.Detect(message)
	}
	if !language.IsSupported(target) {
		o.logger.Info("invalid language detected, defaulting to English", "language", target)
		return language.English
	}
	return target
}

// generate walks the chain in order and returns the first successful reply
func (o *Orchestrator) generate(ctx context.Context, req *domainllm.GenerateRequest) (*domainllm.GenerateResponse, error) {
	var errs []error
	for _, entry := range o.registry.Chain() {
		if state := entry.State(req); state != providers.StateAvailable {
			o.logger.Debug("skipping provider", "provider", entry.Name(), "state", state.String())
			errs = append(errs, fmt.Errorf("%s: %s", entry.Name(), state))
			continue
		}

		resp, err := entry.Generate(ctx, req)
		if err != nil {
			o.logger.Warn("provider failed, trying next",
				"provider", entry.Name(),
				"error", err,
			)
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		o.logger.Info("chat answered",
			"provider", resp.Provider,
			"language", req.Language,
			"sources", len(resp.Sources),
		)
		return resp, nil
	}

	if len(errs) == 0 {
		errs = append(errs, errors.New("no providers configured"))
	}
	return nil, fmt.Errorf("%w: %w", domain.ErrUnavailable, errors.Join(errs...))
}

func validateChatRequest(req *models.ChatRequest) error {
	if req == nil {
		return errors.New("message is required")
	}
	return validation.ValidateStruct(req,
		validation.Field(&req.Message,
			validation.Required.Error("message is required"),
			validation.By(func(value interface{}) error {
				s, _ := value.(string)
				if strings.TrimSpace(s) == "" {
					return errors.New("message is required")
				}
				if utf8.RuneCountInString(s) > config.MaxMessageLength {
					return fmt.Errorf("message must be at most %d characters", config.MaxMessageLength)
				}
				return nil
			}),
		),
	)
}

func scopedCredentials(creds *models.Credentials) map[string]string {
	if creds == nil || creds.GeminiAPIKey == "" {
		return nil
	}
	return map[string]string{"gemini": creds.GeminiAPIKey}
}
