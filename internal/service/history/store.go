package history

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"mrilo/internal/config"
	"mrilo/internal/domain"
	"mrilo/internal/domain/models"
	"mrilo/internal/formatting"
)

const (
	placeholderPrefix = "typing-"
	placeholderText   = "..."

	// ApologyMessage replaces the typing placeholder when the chat call fails
	ApologyMessage = "I'm sorry, I'm having trouble connecting to my knowledge sources right now. Please try again later."
)

// Config holds the Store's collaborators. Remote and Notifier are optional.
type Config struct {
	Storage  LocalStorage
	Chat     ChatClient
	Remote   RemoteMirror
	Notifier Notifier
	Logger   *slog.Logger
}

// Store is the chat history state of one client.
// All methods are safe for concurrent use; at most one reply may be pending per session.
type Store struct {
	mu       sync.Mutex
	storage  LocalStorage
	chat     ChatClient
	remote   RemoteMirror
	notifier Notifier
	logger   *slog.Logger

	now   func() time.Time
	newID func() string

	user    *models.User
	bundle  models.ChatBundle
	pending map[string]string // session id -> placeholder id
}

// NewStore creates a signed-out store with empty state
func NewStore(cfg Config) *Store {
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = NotifierFunc(func(string, string) {})
	}
	s := &Store{
		storage:  cfg.Storage,
		chat:     cfg.Chat,
		remote:   cfg.Remote,
		notifier: notifier,
		logger:   cfg.Logger,
		now:      time.Now,
		newID:    uuid.NewString,
		pending:  make(map[string]string),
	}
	s.resetLocked()
	return s
}

// SetUser switches to user's persisted history. A nil user signs out and clears state.
func (s *Store) SetUser(ctx context.Context, user *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetLocked()
	if user == nil || user.Email == "" {
		s.user = nil
		return
	}

	u := *user
	s.user = &u

	bundle, err := LoadBundle(ctx, s.storage, u.Email)
	if err != nil {
		s.logger.Error("failed to load chat history", "email", u.Email, "error", err)
		return
	}
	s.bundle = *bundle

	s.logger.Debug("chat history loaded",
		"email", u.Email,
		"sessions", len(s.bundle.ChatSessions),
	)
}

// User returns the signed-in user, or nil
func (s *Store) User() *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// NewChat pushes a fresh empty session to the front and makes it active
func (s *Store) NewChat(ctx context.Context) models.ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.newSessionLocked(models.DefaultChatTitle)
	s.saveLocked(ctx)
	return copySession(*session)
}

// SelectChat makes id the active session
func (s *Store) SelectChat(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sessionLocked(id) == nil {
		return chatNotFound(id)
	}
	s.setActiveLocked(&id)
	s.saveLocked(ctx)
	return nil
}

// SendMessage appends the user's message and a typing placeholder, calls the
// chat endpoint and replaces the placeholder with the reply. A failed call
// becomes ApologyMessage plus a notification, not an error. The returned
// message is the one that replaced the placeholder.
func (s *Store) SendMessage(ctx context.Context, text string) (models.Message, error) {
	if strings.TrimSpace(text) == "" {
		return models.Message{}, &domain.ValidationError{Message: "message is required"}
	}

	s.mu.Lock()
	session := s.activeSessionLocked()
	if session == nil {
		session = s.newSessionLocked(titlePreview(text))
	}
	sessionID := session.ID
	if _, busy := s.pending[sessionID]; busy {
		s.mu.Unlock()
		return models.Message{}, &domain.ConflictError{
			Message:      "a reply is already pending for this chat",
			ResourceType: "chat",
			ResourceID:   sessionID,
		}
	}

	userMessage := models.Message{ID: s.newID(), Text: text, Timestamp: s.now()}
	placeholder := models.Message{
		ID:        placeholderPrefix + s.newID(),
		Text:      placeholderText,
		IsAI:      true,
		Timestamp: s.now(),
	}
	session.Messages = append(session.Messages, userMessage, placeholder)
	if session.Title == models.DefaultChatTitle {
		session.Title = titlePreview(text)
	}
	s.pending[sessionID] = placeholder.ID

	req := &models.ChatRequest{
		Message:     text,
		UserID:      s.userIDLocked(),
		Credentials: s.credentialsLocked(ctx),
	}
	s.saveLocked(ctx)
	s.mu.Unlock()

	reply, err := s.chat.Chat(ctx, req)

	var aiMessage models.Message
	if err != nil {
		aiMessage = models.Message{ID: s.newID(), Text: ApologyMessage, IsAI: true, Timestamp: s.now()}
	} else {
		aiMessage = models.Message{
			ID:         s.newID(),
			Text:       reply.Response,
			IsAI:       true,
			Timestamp:  s.now(),
			Sources:    reply.Sources,
			CodeBlocks: formatting.ExtractCodeBlocks(reply.Response),
		}
	}

	s.mu.Lock()
	delete(s.pending, sessionID)
	var snapshot *models.ChatSession
	// The session may have been deleted while the call was in flight
	if session := s.sessionLocked(sessionID); session != nil {
		session.Messages = append(removeMessage(session.Messages, placeholder.ID), aiMessage)
		copied := copySession(*session)
		snapshot = &copied
	}
	s.saveLocked(ctx)
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("chat request failed", "session_id", sessionID, "error", err)
		s.notifier.Notify("Error", notificationText(err))
	}

	if snapshot != nil {
		s.mirror(ctx, "save", func(r RemoteMirror) error {
			return r.SaveChat(ctx, &models.SaveChatRequest{
				ID:        snapshot.ID,
				Title:     snapshot.Title,
				Messages:  snapshot.Messages,
				CreatedAt: snapshot.Timestamp,
			})
		})
	}

	return aiMessage, nil
}

// DeleteChat removes a session together with its favorite and folder entries.
// Deleting the active session leaves no session active.
func (s *Store) DeleteChat(ctx context.Context, id string) error {
	s.mu.Lock()
	i := indexOf(s.bundle.ChatSessions, id)
	if i < 0 {
		s.mu.Unlock()
		return chatNotFound(id)
	}

	s.bundle.ChatSessions = append(s.bundle.ChatSessions[:i], s.bundle.ChatSessions[i+1:]...)
	s.bundle.Favorites = removeID(s.bundle.Favorites, id)
	for name, ids := range s.bundle.Folders {
		s.bundle.Folders[name] = removeID(ids, id)
	}
	if s.bundle.ActiveChatID != nil && *s.bundle.ActiveChatID == id {
		s.setActiveLocked(nil)
	}
	delete(s.pending, id)
	s.saveLocked(ctx)
	s.mu.Unlock()

	s.mirror(ctx, "delete", func(r RemoteMirror) error {
		return r.DeleteChat(ctx, id)
	})
	return nil
}

// RenameChat sets a session's title
func (s *Store) RenameChat(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return &domain.ValidationError{Message: "title is required"}
	}
	if utf8.RuneCountInString(title) > config.MaxChatTitleLength {
		return &domain.ValidationError{Message: fmt.Sprintf("title must be at most %d characters", config.MaxChatTitleLength)}
	}

	s.mu.Lock()
	session := s.sessionLocked(id)
	if session == nil {
		s.mu.Unlock()
		return chatNotFound(id)
	}
	session.Title = title
	s.saveLocked(ctx)
	s.mu.Unlock()

	s.mirror(ctx, "rename", func(r RemoteMirror) error {
		return r.UpdateChat(ctx, id, &models.UpdateChatRequest{Title: &title})
	})
	return nil
}

// ToggleFavorite flips a session's favorite tag and returns the new value
func (s *Store) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	if s.sessionLocked(id) == nil {
		s.mu.Unlock()
		return false, chatNotFound(id)
	}

	favorite := !containsID(s.bundle.Favorites, id)
	if favorite {
		s.bundle.Favorites = append(s.bundle.Favorites, id)
	} else {
		s.bundle.Favorites = removeID(s.bundle.Favorites, id)
	}
	s.saveLocked(ctx)
	s.mu.Unlock()

	s.mirror(ctx, "favorite", func(r RemoteMirror) error {
		return r.UpdateChat(ctx, id, &models.UpdateChatRequest{IsFavorite: &favorite})
	})
	return favorite, nil
}

// CreateFolder adds an empty folder
func (s *Store) CreateFolder(ctx context.Context, name string) error {
	name, err := validateFolderName(name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.bundle.Folders[name]; exists {
		return &domain.ConflictError{
			Message:      fmt.Sprintf("folder %q already exists", name),
			ResourceType: "folder",
			ResourceID:   name,
		}
	}
	s.bundle.Folders[name] = []string{}
	s.saveLocked(ctx)
	return nil
}

// MoveToFolder files a session under folderName, removing it from any other
// folder. The folder is created if needed.
func (s *Store) MoveToFolder(ctx context.Context, id, folderName string) error {
	folderName, err := validateFolderName(folderName)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.sessionLocked(id) == nil {
		s.mu.Unlock()
		return chatNotFound(id)
	}
	for name, ids := range s.bundle.Folders {
		s.bundle.Folders[name] = removeID(ids, id)
	}
	s.bundle.Folders[folderName] = append(s.bundle.Folders[folderName], id)
	s.saveLocked(ctx)
	s.mu.Unlock()

	s.mirror(ctx, "move", func(r RemoteMirror) error {
		return r.UpdateChat(ctx, id, &models.UpdateChatRequest{
			Folder: models.OptionalFolder{Present: true, Value: &folderName},
		})
	})
	return nil
}

// Messages returns the active session's messages, or an empty list
func (s *Store) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.activeSessionLocked()
	if session == nil {
		return []models.Message{}
	}
	return copySession(*session).Messages
}

// Bundle returns a copy of the whole persisted state
func (s *Store) Bundle() models.ChatBundle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyBundle(s.bundle)
}

// Sync adds remote sessions that are missing locally and returns how many
// were added. Local sessions win on conflict.
func (s *Store) Sync(ctx context.Context) (int, error) {
	s.mu.Lock()
	signedIn := s.user != nil
	s.mu.Unlock()
	if !signedIn || s.remote == nil {
		return 0, nil
	}

	records, err := s.remote.ListChats(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch chat history: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, rec := range records {
		if indexOf(s.bundle.ChatSessions, rec.ID) >= 0 {
			continue
		}
		title := rec.Title
		if title == "" {
			title = models.DefaultChatTitle
		}
		messages := rec.Messages
		if messages == nil {
			messages = []models.Message{}
		}
		s.bundle.ChatSessions = append(s.bundle.ChatSessions, models.ChatSession{
			ID:        rec.ID,
			Title:     title,
			Messages:  messages,
			Timestamp: rec.CreatedAt,
		})
		if rec.IsFavorite && !containsID(s.bundle.Favorites, rec.ID) {
			s.bundle.Favorites = append(s.bundle.Favorites, rec.ID)
		}
		if rec.FolderID != nil && *rec.FolderID != "" {
			s.bundle.Folders[*rec.FolderID] = append(s.bundle.Folders[*rec.FolderID], rec.ID)
		}
		added++
	}

	if added > 0 {
		if s.bundle.ActiveChatID == nil {
			id := s.bundle.ChatSessions[0].ID
			s.setActiveLocked(&id)
		}
		s.saveLocked(ctx)
	}
	s.logger.Info("chat history synced", "remote", len(records), "added", added)
	return added, nil
}

func (s *Store) resetLocked() {
	s.bundle = models.ChatBundle{
		ChatSessions: []models.ChatSession{},
		Favorites:    []string{},
		Folders:      map[string][]string{},
	}
	s.pending = make(map[string]string)
}

// saveLocked persists the bundle; failures are logged and leave state intact
func (s *Store) saveLocked(ctx context.Context) {
	if s.user == nil {
		return
	}
	if err := SaveBundle(ctx, s.storage, s.user.Email, &s.bundle); err != nil {
		s.logger.Error("failed to save chat history", "email", s.user.Email, "error", err)
	}
}

// mirror runs a best-effort remote write for a signed-in user
func (s *Store) mirror(ctx context.Context, op string, fn func(RemoteMirror) error) {
	if s.remote == nil || s.User() == nil {
		return
	}
	if err := fn(s.remote); err != nil {
		s.logger.Warn("remote chat mirror failed", "op", op, "error", err)
	}
}

func (s *Store) newSessionLocked(title string) *models.ChatSession {
	session := models.ChatSession{
		ID:        s.newID(),
		Title:     title,
		Messages:  []models.Message{},
		Timestamp: s.now(),
	}
	s.bundle.ChatSessions = append([]models.ChatSession{session}, s.bundle.ChatSessions...)
	s.setActiveLocked(&session.ID)
	return &s.bundle.ChatSessions[0]
}

func (s *Store) setActiveLocked(id *string) {
	if id == nil {
		s.bundle.ActiveChatID = nil
		return
	}
	v := *id
	s.bundle.ActiveChatID = &v
}

func (s *Store) sessionLocked(id string) *models.ChatSession {
	if i := indexOf(s.bundle.ChatSessions, id); i >= 0 {
		return &s.bundle.ChatSessions[i]
	}
	return nil
}

func (s *Store) activeSessionLocked() *models.ChatSession {
	if s.bundle.ActiveChatID == nil {
		return nil
	}
	return s.sessionLocked(*s.bundle.ActiveChatID)
}

func (s *Store) userIDLocked() string {
	if s.user == nil {
		return ""
	}
	if s.user.ID != "" {
		return s.user.ID
	}
	return s.user.Email
}

// credentialsLocked attaches the user's own Gemini key, if stored
func (s *Store) credentialsLocked(ctx context.Context) *models.Credentials {
	key, ok, err := s.storage.Get(ctx, KeyGeminiAPIKey)
	if err != nil {
		s.logger.Warn("failed to read gemini key", "error", err)
		return nil
	}
	if !ok || strings.TrimSpace(key) == "" {
		return nil
	}
	return &models.Credentials{GeminiAPIKey: strings.TrimSpace(key)}
}

// titlePreview is the first characters of a message followed by "..."
func titlePreview(text string) string {
	runes := []rune(text)
	if len(runes) > config.TitlePreviewLength {
		runes = runes[:config.TitlePreviewLength]
	}
	return string(runes) + "..."
}

func validateFolderName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", &domain.ValidationError{Message: "folder name is required"}
	}
	if utf8.RuneCountInString(name) > config.MaxFolderNameLength {
		return "", &domain.ValidationError{Message: fmt.Sprintf("folder name must be at most %d characters", config.MaxFolderNameLength)}
	}
	return name, nil
}

func notificationText(err error) string {
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "Failed to get AI response. Please try again."
}

func chatNotFound(id string) error {
	return &domain.NotFoundError{Message: fmt.Sprintf("chat %s not found", id)}
}

func removeMessage(messages []models.Message, id string) []models.Message {
	out := messages[:0]
	for _, m := range messages {
		if m.ID != id {
			out = append(out, m)
		}
	}
	return out
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func removeID(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func copySession(s models.ChatSession) models.ChatSession {
	messages := make([]models.Message, len(s.Messages))
	copy(messages, s.Messages)
	s.Messages = messages
	return s
}

func copyBundle(b models.ChatBundle) models.ChatBundle {
	out := models.ChatBundle{
		ChatSessions: make([]models.ChatSession, len(b.ChatSessions)),
		Favorites:    append([]string{}, b.Favorites...),
		Folders:      make(map[string][]string, len(b.Folders)),
	}
	for i, session := range b.ChatSessions {
		out.ChatSessions[i] = copySession(session)
	}
	for name, ids := range b.Folders {
		out.Folders[name] = append([]string{}, ids...)
	}
	if b.ActiveChatID != nil {
		id := *b.ActiveChatID
		out.ActiveChatID = &id
	}
	return out
}
