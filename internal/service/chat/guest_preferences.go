package chat

import (
	"context"
	"sync"

	"mrilo/internal/config"
	domainllm "mrilo/internal/domain/services/llm"
)

// GuestPreferences keeps reply languages for unverified user ids in process
// memory. They never reach the user_preferences table.
type GuestPreferences struct {
	mu        sync.Mutex
	languages map[string]string
}

var _ domainllm.PreferenceStore = (*GuestPreferences)(nil)

// NewGuestPreferences creates an empty guest store
func NewGuestPreferences() *GuestPreferences {
	return &GuestPreferences{languages: make(map[string]string)}
}

// GetLanguage returns the language chosen by userID, or ""
func (g *GuestPreferences) GetLanguage(ctx context.Context, userID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.languages[userID], nil
}

// SetLanguage remembers language for userID. When the store is full an
// arbitrary entry is evicted.
func (g *GuestPreferences) SetLanguage(ctx context.Context, userID, language string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.languages[userID]; !ok && len(g.languages) >= config.MaxGuestPreferences {
		for id := range g.languages {
			delete(g.languages, id)
			break
		}
	}
	g.languages[userID] = language
	return nil
}
