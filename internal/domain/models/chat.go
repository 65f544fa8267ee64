package models

import "time"

// SourceType classifies a citation by what it points at
type SourceType string

const (
	SourceTypeWebpage  SourceType = "webpage"
	SourceTypeVideo    SourceType = "video"
	SourceTypeImage    SourceType = "image"
	SourceTypeDocument SourceType = "document"
)

// Source is a citation attached to an AI reply
type Source struct {
	Title string     `json:"title,omitempty"`
	URL   string     `json:"url,omitempty"`
	Text  string     `json:"text,omitempty"`
	Image string     `json:"image,omitempty"`
	Type  SourceType `json:"type"`
}

// CodeBlock is a fenced code block lifted out of a reply
type CodeBlock struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

// Message is one entry in a chat session.
// Messages are immutable once appended; the only in-place change is the
// replacement of a typing placeholder by the final AI reply.
type Message struct {
	ID         string      `json:"id"`
	Text       string      `json:"text"`
	IsAI       bool        `json:"isAi"`
	Timestamp  time.Time   `json:"timestamp"`
	Sources    []Source    `json:"sources,omitempty"`
	CodeBlocks []CodeBlock `json:"codeBlocks,omitempty"`
}

// ChatSession is a titled, ordered list of messages with a stable id
type ChatSession struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	Timestamp time.Time `json:"timestamp"`
}

// DefaultChatTitle is the title of a session before its first message
const DefaultChatTitle = "New Chat"

// ChatBundle is everything persisted per user under the local storage key
type ChatBundle struct {
	ChatSessions []ChatSession       `json:"chatSessions"`
	Favorites    []string            `json:"favorites"`
	Folders      map[string][]string `json:"folders"`
	ActiveChatID *string             `json:"activeChatId"`
}

// User is the signed-in identity cached by the client
type User struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture,omitempty"`
}

// ChatRecord is a row of the remote chats table
type ChatRecord struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Title      string    `json:"title"`
	Messages   []Message `json:"messages"`
	FolderID   *string   `json:"folder_id"`
	IsFavorite bool      `json:"is_favorite"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// SaveChatRequest is the body of PUT /api/chats/{id}
type SaveChatRequest struct {
	ID        string    `json:"-"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
}

// OptionalFolder tracks tri-state semantics for folder moves (RFC 7396 PATCH).
//   - Present=false: field absent from request (don't change)
//   - Present=true, Value=nil: remove from folder
//   - Present=true, Value=&"name": move to folder
type OptionalFolder struct {
	Present bool
	Value   *string
}

// UpdateChatRequest is the body of PATCH /api/chats/{id}.
// Only provided fields are updated.
type UpdateChatRequest struct {
	Title      *string        `json:"title"`
	IsFavorite *bool          `json:"is_favorite"`
	Folder     OptionalFolder // mapped from handler DTO
}
