package service

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"mrilo/internal/config"
	"mrilo/internal/domain"
	"mrilo/internal/domain/models"
	"mrilo/internal/domain/repositories"
	"mrilo/internal/domain/services"
	"mrilo/internal/formatting"
)

// ChatHistoryService implements the remote chat table operations
type ChatHistoryService struct {
	chatRepo   repositories.ChatRepository
	txManager  repositories.TransactionManager
	authorizer services.ResourceAuthorizer
	titles     *formatting.HTMLSanitizer
	logger     *slog.Logger
	now        func() time.Time
}

// NewChatHistoryService creates a new chat history service
func NewChatHistoryService(
	chatRepo repositories.ChatRepository,
	txManager repositories.TransactionManager,
	authorizer services.ResourceAuthorizer,
	logger *slog.Logger,
) *ChatHistoryService {
	return &ChatHistoryService{
		chatRepo:   chatRepo,
		txManager:  txManager,
		authorizer: authorizer,
		titles:     formatting.NewStrictHTMLSanitizer(),
		logger:     logger,
		now:        time.Now,
	}
}

var _ services.ChatHistoryService = (*ChatHistoryService)(nil)

// ListChats returns the user's chats, most recently updated first
func (s *ChatHistoryService) ListChats(ctx context.Context, userID string) ([]models.ChatRecord, error) {
	return s.chatRepo.ListByUser(ctx, userID)
}

// SaveChat inserts a chat or replaces its title and messages
func (s *ChatHistoryService) SaveChat(ctx context.Context, userID string, req *models.SaveChatRequest) (*models.ChatRecord, error) {
	title := s.cleanTitle(req.Title)
	err := validation.Errors{
		"id":    validation.Validate(req.ID, validation.Required, validation.Length(1, 128)),
		"title": validation.Validate(title, validation.Required, validation.RuneLength(1, config.MaxChatTitleLength)),
	}.Filter()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	if err := s.authorizer.CanAccessChat(ctx, userID, req.ID); err != nil {
		return nil, err
	}

	now := s.now()
	created := req.CreatedAt
	if created.IsZero() {
		created = now
	}
	messages := req.Messages
	if messages == nil {
		messages = []models.Message{}
	}

	chat := &models.ChatRecord{
		ID:        req.ID,
		UserID:    userID,
		Title:     title,
		Messages:  messages,
		CreatedAt: created,
		UpdatedAt: now,
	}
	if err := s.chatRepo.Upsert(ctx, chat); err != nil {
		return nil, err
	}

	s.logger.Debug("chat saved", "chat_id", chat.ID, "user_id", userID, "messages", len(chat.Messages))
	return chat, nil
}

// UpdateChat applies a partial update of title, folder and favorite
func (s *ChatHistoryService) UpdateChat(ctx context.Context, userID, id string, req *models.UpdateChatRequest) (*models.ChatRecord, error) {
	if err := s.validateUpdate(req); err != nil {
		return nil, err
	}

	var updated *models.ChatRecord
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		chat, err := s.chatRepo.GetByIDOnly(txCtx, id)
		if err != nil {
			return err
		}
		if chat.UserID != userID {
			return fmt.Errorf("access denied to chat %s: %w", id, domain.ErrForbidden)
		}

		if req.Title != nil {
			chat.Title = s.cleanTitle(*req.Title)
		}
		if req.IsFavorite != nil {
			chat.IsFavorite = *req.IsFavorite
		}
		if req.Folder.Present {
			chat.FolderID = req.Folder.Value
		}
		chat.UpdatedAt = s.now()

		if err := s.chatRepo.Update(txCtx, chat); err != nil {
			return err
		}
		updated = chat
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteChat hard deletes a chat owned by userID
func (s *ChatHistoryService) DeleteChat(ctx context.Context, userID, id string) error {
	chat, err := s.chatRepo.GetByIDOnly(ctx, id)
	if err != nil {
		return err
	}
	if chat.UserID != userID {
		return fmt.Errorf("access denied to chat %s: %w", id, domain.ErrForbidden)
	}
	if err := s.chatRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("chat deleted", "chat_id", id, "user_id", userID)
	return nil
}

func (s *ChatHistoryService) validateUpdate(req *models.UpdateChatRequest) error {
	errs := validation.Errors{}
	if req.Title != nil {
		errs["title"] = validation.Validate(s.cleanTitle(*req.Title), validation.Required, validation.RuneLength(1, config.MaxChatTitleLength))
	}
	if req.Folder.Present && req.Folder.Value != nil {
		errs["folder_id"] = validation.Validate(strings.TrimSpace(*req.Folder.Value), validation.Required, validation.RuneLength(1, config.MaxFolderNameLength))
	}
	if err := errs.Filter(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return nil
}

// cleanTitle strips markup so titles render as plain text everywhere
func (s *ChatHistoryService) cleanTitle(title string) string {
	clean, _ := s.titles.Sanitize(title)
	return strings.TrimSpace(html.UnescapeString(clean))
}
