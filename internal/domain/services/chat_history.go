package services

import (
	"context"

	"mrilo/internal/domain/models"
)

// ChatHistoryService manages the remote chat table for an authenticated user
type ChatHistoryService interface {
	ListChats(ctx context.Context, userID string) ([]models.ChatRecord, error)
	SaveChat(ctx context.Context, userID string, req *models.SaveChatRequest) (*models.ChatRecord, error)
	UpdateChat(ctx context.Context, userID, id string, req *models.UpdateChatRequest) (*models.ChatRecord, error)
	DeleteChat(ctx context.Context, userID, id string) error
}
