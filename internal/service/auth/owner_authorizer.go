package auth

import (
	"context"
	"errors"
	"fmt"

	"mrilo/internal/domain"
	"mrilo/internal/domain/repositories"
)

// OwnerBasedAuthorizer implements ResourceAuthorizer using ownership checks.
// A user can access a chat if its user_id is theirs.
type OwnerBasedAuthorizer struct {
	chatRepo repositories.ChatRepository
}

// NewOwnerBasedAuthorizer creates a new ownership-based authorizer
func NewOwnerBasedAuthorizer(chatRepo repositories.ChatRepository) *OwnerBasedAuthorizer {
	return &OwnerBasedAuthorizer{chatRepo: chatRepo}
}

// CanAccessChat checks if user owns the chat
func (a *OwnerBasedAuthorizer) CanAccessChat(ctx context.Context, userID, chatID string) error {
	chat, err := a.chatRepo.GetByIDOnly(ctx, chatID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("get chat for auth: %w", err)
	}
	if chat.UserID != userID {
		return fmt.Errorf("access denied to chat %s: %w", chatID, domain.ErrForbidden)
	}
	return nil
}
