package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"mrilo/internal/domain"
	"mrilo/internal/domain/models"
	"mrilo/internal/domain/repositories"
)

// PostgresChatRepository implements the ChatRepository interface
type PostgresChatRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewChatRepository creates a new chat repository
func NewChatRepository(config *RepositoryConfig) repositories.ChatRepository {
	return &PostgresChatRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

const chatColumns = `id, user_id, title, messages, folder_id, is_favorite, created_at, updated_at`

// ListByUser returns the user's chats, most recently updated first
func (r *PostgresChatRepository) ListByUser(ctx context.Context, userID string) ([]models.ChatRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE user_id = $1
		ORDER BY updated_at DESC
	`, chatColumns, r.tables.Chats)

	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	chats := []models.ChatRecord{}
	for rows.Next() {
		chat, err := scanChat(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		chats = append(chats, *chat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chats: %w", err)
	}

	return chats, nil
}

// GetByIDOnly retrieves a chat by ID without owner scoping
func (r *PostgresChatRepository) GetByIDOnly(ctx context.Context, id string) (*models.ChatRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, chatColumns, r.tables.Chats)

	chat, err := scanChat(GetExecutor(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("chat %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get chat: %w", err)
	}
	return chat, nil
}

// Upsert inserts a chat or replaces its title and messages.
// Folder and favorite are only written on insert.
func (r *PostgresChatRepository) Upsert(ctx context.Context, chat *models.ChatRecord) error {
	messages, err := json.Marshal(chat.Messages)
	if err != nil {
		return fmt.Errorf("encode messages: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, title, messages, folder_id, is_favorite, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			messages = EXCLUDED.messages,
			updated_at = EXCLUDED.updated_at
		RETURNING %s
	`, r.tables.Chats, chatColumns)

	saved, err := scanChat(GetExecutor(ctx, r.pool).QueryRow(ctx, query,
		chat.ID,
		chat.UserID,
		chat.Title,
		messages,
		chat.FolderID,
		chat.IsFavorite,
		chat.CreatedAt,
		chat.UpdatedAt,
	))
	if err != nil {
		return fmt.Errorf("upsert chat: %w", err)
	}

	*chat = *saved
	return nil
}

// Update writes title, folder and favorite of an existing chat
func (r *PostgresChatRepository) Update(ctx context.Context, chat *models.ChatRecord) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET title = $1, folder_id = $2, is_favorite = $3, updated_at = $4
		WHERE id = $5
	`, r.tables.Chats)

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query,
		chat.Title,
		chat.FolderID,
		chat.IsFavorite,
		chat.UpdatedAt,
		chat.ID,
	)
	if err != nil {
		return fmt.Errorf("update chat: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("chat %s: %w", chat.ID, domain.ErrNotFound)
	}

	return nil
}

// Delete hard deletes a chat
func (r *PostgresChatRepository) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.Chats)

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("chat %s: %w", id, domain.ErrNotFound)
	}

	r.logger.Debug("chat deleted", "chat_id", id)
	return nil
}

func scanChat(row pgx.Row) (*models.ChatRecord, error) {
	var (
		chat     models.ChatRecord
		messages []byte
	)
	if err := row.Scan(
		&chat.ID,
		&chat.UserID,
		&chat.Title,
		&messages,
		&chat.FolderID,
		&chat.IsFavorite,
		&chat.CreatedAt,
		&chat.UpdatedAt,
	); err != nil {
		return nil, err
	}

	chat.Messages = []models.Message{}
	if len(messages) > 0 {
		if err := json.Unmarshal(messages, &chat.Messages); err != nil {
			return nil, fmt.Errorf("decode messages: %w", err)
		}
	}
	return &chat, nil
}
