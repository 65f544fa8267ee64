package history

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"mrilo/internal/domain/models"
)

// Local storage keys
const (
	KeyUser         = "user"
	KeyGeminiAPIKey = "gemini_api_key"

	historyKeyPrefix = "mrilo_chat_history_"
)

// HistoryKey is the local storage key of a user's chat bundle
func HistoryKey(email string) string {
	return historyKeyPrefix + email
}

// LoadUser returns the cached signed-in user, or nil
func LoadUser(ctx context.Context, storage LocalStorage) (*models.User, error) {
	raw, ok, err := storage.Get(ctx, KeyUser)
	if err != nil || !ok {
		return nil, err
	}
	var user models.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, fmt.Errorf("failed to decode cached user: %w", err)
	}
	return &user, nil
}

// SaveUser caches the signed-in user
func SaveUser(ctx context.Context, storage LocalStorage, user *models.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}
	return storage.Set(ctx, KeyUser, string(data))
}

// ClearUser forgets the signed-in user. Chat bundles stay under their own keys.
func ClearUser(ctx context.Context, storage LocalStorage) error {
	return storage.Remove(ctx, KeyUser)
}

// ForgetHistories removes every user's chat bundle from storage and reports
// how many were removed
func ForgetHistories(ctx context.Context, storage LocalStorage) (int, error) {
	keys, err := storage.Keys(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, key := range keys {
		if !strings.HasPrefix(key, historyKeyPrefix) {
			continue
		}
		if err := storage.Remove(ctx, key); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// LoadBundle reads and normalizes a user's bundle. A missing key is an empty bundle.
func LoadBundle(ctx context.Context, storage LocalStorage, email string) (*models.ChatBundle, error) {
	raw, ok, err := storage.Get(ctx, HistoryKey(email))
	if err != nil {
		return nil, err
	}
	bundle := &models.ChatBundle{}
	if ok {
		if err := json.Unmarshal([]byte(raw), bundle); err != nil {
			return nil, fmt.Errorf("failed to decode chat history: %w", err)
		}
	}
	normalizeBundle(bundle)
	return bundle, nil
}

// SaveBundle writes the whole bundle under the user's key
func SaveBundle(ctx context.Context, storage LocalStorage, email string, bundle *models.ChatBundle) error {
	data, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("failed to encode chat history: %w", err)
	}
	return storage.Set(ctx, HistoryKey(email), string(data))
}

// normalizeBundle fills nil collections, drops typing placeholders left by an
// interrupted send and repairs a dangling active id: it falls back to the most
// recent session, or nil when there is none.
func normalizeBundle(b *models.ChatBundle) {
	if b.ChatSessions == nil {
		b.ChatSessions = []models.ChatSession{}
	}
	if b.Favorites == nil {
		b.Favorites = []string{}
	}
	if b.Folders == nil {
		b.Folders = map[string][]string{}
	}

	for i := range b.ChatSessions {
		s := &b.ChatSessions[i]
		if s.Messages == nil {
			s.Messages = []models.Message{}
		}
		kept := s.Messages[:0]
		for _, m := range s.Messages {
			if !isPlaceholder(m) {
				kept = append(kept, m)
			}
		}
		s.Messages = kept
	}

	if b.ActiveChatID != nil && indexOf(b.ChatSessions, *b.ActiveChatID) >= 0 {
		return
	}
	b.ActiveChatID = nil
	if len(b.ChatSessions) > 0 {
		id := b.ChatSessions[0].ID
		b.ActiveChatID = &id
	}
}

func isPlaceholder(m models.Message) bool {
	return strings.HasPrefix(m.ID, placeholderPrefix)
}

func indexOf(sessions []models.ChatSession, id string) int {
	for i := range sessions {
		if sessions[i].ID == id {
			return i
		}
	}
	return -1
}
