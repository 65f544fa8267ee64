package repositories

import (
	"context"

	"mrilo/internal/domain/models"
)

// ChatRepository is the remote mirror of users' chat sessions
type ChatRepository interface {
	// ListByUser returns the user's chats, most recently updated first
	ListByUser(ctx context.Context, userID string) ([]models.ChatRecord, error)

	// GetByIDOnly returns a chat regardless of owner (for authorization checks)
	GetByIDOnly(ctx context.Context, id string) (*models.ChatRecord, error)

	// Upsert inserts a chat or replaces its title and messages, keeping folder and favorite
	Upsert(ctx context.Context, chat *models.ChatRecord) error

	// Update writes title, folder and favorite of an existing chat
	Update(ctx context.Context, chat *models.ChatRecord) error

	// Delete hard deletes a chat
	Delete(ctx context.Context, id string) error
}
