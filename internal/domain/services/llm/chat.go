package llm

import (
	"context"

	"mrilo/internal/domain/models"
)

// ChatService answers one chat message with an envelope.
// It never returns an error: every failure is expressed as an error envelope.
type ChatService interface {
	HandleChat(ctx context.Context, req *models.ChatRequest) models.Envelope
}

// CompletionService is a one-shot completion without orchestration
type CompletionService interface {
	Complete(ctx context.Context, req *models.OpenAIRequest) (string, error)
}

// PreferenceStore persists the reply language chosen by a user.
type PreferenceStore interface {
	// GetLanguage returns the stored language, or "" if none is stored
	GetLanguage(ctx context.Context, userID string) (string, error)

	// SetLanguage stores a supported language name for userID
	SetLanguage(ctx context.Context, userID, language string) error
}
