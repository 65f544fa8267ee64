// Package memory holds in-process repositories used when no database is configured.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"mrilo/internal/domain"
	"mrilo/internal/domain/models"
	"mrilo/internal/domain/repositories"
)

// ChatRepository keeps chats in a map
type ChatRepository struct {
	mu    sync.RWMutex
	chats map[string]models.ChatRecord
}

// NewChatRepository creates an empty chat repository
func NewChatRepository() *ChatRepository {
	return &ChatRepository{chats: make(map[string]models.ChatRecord)}
}

var _ repositories.ChatRepository = (*ChatRepository)(nil)

func (r *ChatRepository) ListByUser(ctx context.Context, userID string) ([]models.ChatRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []models.ChatRecord{}
	for _, chat := range r.chats {
		if chat.UserID == userID {
			out = append(out, copyChat(chat))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (r *ChatRepository) GetByIDOnly(ctx context.Context, id string) (*models.ChatRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	chat, ok := r.chats[id]
	if !ok {
		return nil, fmt.Errorf("chat %s: %w", id, domain.ErrNotFound)
	}
	c := copyChat(chat)
	return &c, nil
}

func (r *ChatRepository) Upsert(ctx context.Context, chat *models.ChatRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.chats[chat.ID]; ok {
		existing.Title = chat.Title
		existing.Messages = chat.Messages
		existing.UpdatedAt = chat.UpdatedAt
		r.chats[chat.ID] = copyChat(existing)
		*chat = copyChat(existing)
		return nil
	}
	r.chats[chat.ID] = copyChat(*chat)
	return nil
}

func (r *ChatRepository) Update(ctx context.Context, chat *models.ChatRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.chats[chat.ID]
	if !ok {
		return fmt.Errorf("chat %s: %w", chat.ID, domain.ErrNotFound)
	}
	existing.Title = chat.Title
	existing.FolderID = chat.FolderID
	existing.IsFavorite = chat.IsFavorite
	existing.UpdatedAt = chat.UpdatedAt
	r.chats[chat.ID] = existing
	return nil
}

func (r *ChatRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.chats[id]; !ok {
		return fmt.Errorf("chat %s: %w", id, domain.ErrNotFound)
	}
	delete(r.chats, id)
	return nil
}

func copyChat(c models.ChatRecord) models.ChatRecord {
	out := c
	out.Messages = append([]models.Message(nil), c.Messages...)
	if out.Messages == nil {
		out.Messages = []models.Message{}
	}
	if c.FolderID != nil {
		folder := *c.FolderID
		out.FolderID = &folder
	}
	return out
}

// UserPreferencesRepository keeps preferences in a map
type UserPreferencesRepository struct {
	mu    sync.RWMutex
	prefs map[string]models.UserPreferences
}

// NewUserPreferencesRepository creates an empty preferences repository
func NewUserPreferencesRepository() *UserPreferencesRepository {
	return &UserPreferencesRepository{prefs: make(map[string]models.UserPreferences)}
}

var _ repositories.UserPreferencesRepository = (*UserPreferencesRepository)(nil)

func (r *UserPreferencesRepository) GetByUserID(ctx context.Context, userID string) (*models.UserPreferences, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	prefs, ok := r.prefs[userID]
	if !ok {
		return nil, nil
	}
	prefs.Preferences = copyMap(prefs.Preferences)
	return &prefs, nil
}

func (r *UserPreferencesRepository) Upsert(ctx context.Context, prefs *models.UserPreferences) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *prefs
	if existing, ok := r.prefs[prefs.UserID]; ok {
		stored.CreatedAt = existing.CreatedAt
	}
	stored.Preferences = copyMap(prefs.Preferences)
	r.prefs[prefs.UserID] = stored
	prefs.CreatedAt = stored.CreatedAt
	return nil
}

func copyMap(m models.JSONMap) models.JSONMap {
	out := make(models.JSONMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// TransactionManager runs fn directly; the in-memory repositories lock per call.
type TransactionManager struct{}

func (TransactionManager) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	return fn(ctx)
}
