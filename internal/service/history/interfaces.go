// Package history is the client-side chat state: sessions, the active
// session, favorites and folders, persisted per user to local storage and
// mirrored to the remote chats table when signed in.
package history

import (
	"context"

	"mrilo/internal/domain/models"
)

// LocalStorage is a string key/value store scoped to this client
type LocalStorage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

// ChatClient sends one message to the chat endpoint
type ChatClient interface {
	Chat(ctx context.Context, req *models.ChatRequest) (*models.ChatReply, error)
}

// RemoteMirror is the signed-in user's remote chats table
type RemoteMirror interface {
	ListChats(ctx context.Context) ([]models.ChatRecord, error)
	SaveChat(ctx context.Context, req *models.SaveChatRequest) error
	UpdateChat(ctx context.Context, id string, req *models.UpdateChatRequest) error
	DeleteChat(ctx context.Context, id string) error
}

// Notifier shows a transient notification (a toast)
type Notifier interface {
	Notify(title, message string)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(title, message string)

func (f NotifierFunc) Notify(title, message string) { f(title, message) }
