package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"mrilo/internal/domain"
	"mrilo/internal/domain/models"
	"mrilo/internal/repository/memory"
	"mrilo/internal/service/auth"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strPtr(s string) *string { return &s }

func newChatHistory(t *testing.T) (*ChatHistoryService, *memory.ChatRepository) {
	t.Helper()
	repo := memory.NewChatRepository()
	svc := NewChatHistoryService(repo, memory.TransactionManager{}, auth.NewOwnerBasedAuthorizer(repo), testLogger())
	clock := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return svc, repo
}

func TestChatHistoryService_SaveAndList(t *testing.T) {
	ctx := context.Background()
	svc, _ := newChatHistory(t)

	chat, err := svc.SaveChat(ctx, "u1", &models.SaveChatRequest{
		ID:    "c1",
		Title: "<b>Plans</b> & ideas",
		Messages: []models.Message{
			{ID: "m1", Text: "hi"},
		},
	})
	if err != nil {
		t.Fatalf("SaveChat: %v", err)
	}
	if chat.Title != "Plans & ideas" {
		t.Errorf("Title = %q, want markup stripped", chat.Title)
	}
	if chat.CreatedAt.IsZero() {
		t.Error("CreatedAt not defaulted")
	}

	if _, err := svc.SaveChat(ctx, "u1", &models.SaveChatRequest{ID: "c2", Title: "Second"}); err != nil {
		t.Fatalf("SaveChat c2: %v", err)
	}

	chats, err := svc.ListChats(ctx, "u1")
	if err != nil {
		t.Fatalf("ListChats: %v", err)
	}
	if len(chats) != 2 || chats[0].ID != "c2" {
		t.Fatalf("ListChats = %+v, want c2 first", chats)
	}
	if len(chats[1].Messages) != 1 {
		t.Errorf("messages = %d, want 1", len(chats[1].Messages))
	}
}

func TestChatHistoryService_SaveValidation(t *testing.T) {
	svc, _ := newChatHistory(t)

	tests := []struct {
		name string
		req  models.SaveChatRequest
	}{
		{"missing id", models.SaveChatRequest{Title: "x"}},
		{"missing title", models.SaveChatRequest{ID: "c1"}},
		{"markup only title", models.SaveChatRequest{ID: "c1", Title: "<script></script>"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SaveChat(context.Background(), "u1", &tt.req)
			if !errors.Is(err, domain.ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestChatHistoryService_OwnerChecks(t *testing.T) {
	ctx := context.Background()
	svc, _ := newChatHistory(t)

	if _, err := svc.SaveChat(ctx, "u1", &models.SaveChatRequest{ID: "c1", Title: "Mine"}); err != nil {
		t.Fatalf("SaveChat: %v", err)
	}

	if _, err := svc.SaveChat(ctx, "u2", &models.SaveChatRequest{ID: "c1", Title: "Theirs"}); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("SaveChat by other user err = %v, want ErrForbidden", err)
	}
	if _, err := svc.UpdateChat(ctx, "u2", "c1", &models.UpdateChatRequest{Title: strPtr("x")}); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("UpdateChat by other user err = %v, want ErrForbidden", err)
	}
	if err := svc.DeleteChat(ctx, "u2", "c1"); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("DeleteChat by other user err = %v, want ErrForbidden", err)
	}
	if err := svc.DeleteChat(ctx, "u1", "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("DeleteChat missing err = %v, want ErrNotFound", err)
	}
}

func TestChatHistoryService_UpdateChat(t *testing.T) {
	ctx := context.Background()
	svc, _ := newChatHistory(t)
	if _, err := svc.SaveChat(ctx, "u1", &models.SaveChatRequest{ID: "c1", Title: "Start"}); err != nil {
		t.Fatalf("SaveChat: %v", err)
	}

	fav := true
	chat, err := svc.UpdateChat(ctx, "u1", "c1", &models.UpdateChatRequest{
		IsFavorite: &fav,
		Folder:     models.OptionalFolder{Present: true, Value: strPtr("Work")},
	})
	if err != nil {
		t.Fatalf("UpdateChat: %v", err)
	}
	if chat.Title != "Start" || !chat.IsFavorite || chat.FolderID == nil || *chat.FolderID != "Work" {
		t.Errorf("chat = %+v", chat)
	}

	// null folder removes it, absent favorite leaves it alone
	chat, err = svc.UpdateChat(ctx, "u1", "c1", &models.UpdateChatRequest{
		Title:  strPtr("Renamed"),
		Folder: models.OptionalFolder{Present: true},
	})
	if err != nil {
		t.Fatalf("UpdateChat: %v", err)
	}
	if chat.Title != "Renamed" || !chat.IsFavorite || chat.FolderID != nil {
		t.Errorf("chat = %+v", chat)
	}

	if _, err := svc.UpdateChat(ctx, "u1", "c1", &models.UpdateChatRequest{Title: strPtr("  ")}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("blank title err = %v, want ErrValidation", err)
	}

	// saving messages again keeps the folder and favorite
	saved, err := svc.SaveChat(ctx, "u1", &models.SaveChatRequest{ID: "c1", Title: "Renamed"})
	if err != nil {
		t.Fatalf("SaveChat: %v", err)
	}
	if !saved.IsFavorite {
		t.Error("SaveChat reset is_favorite")
	}
}

func TestUserPreferencesService(t *testing.T) {
	ctx := context.Background()
	svc := NewUserPreferencesService(memory.NewUserPreferencesRepository(), testLogger())

	prefs, err := svc.GetPreferences(ctx, "u1")
	if err != nil {
		t.Fatalf("GetPreferences: %v", err)
	}
	if prefs.Language() != "" || prefs.GetUI().Theme != "light" {
		t.Errorf("defaults = %+v", prefs.Preferences)
	}

	if err := svc.SetLanguage(ctx, "u1", "Spanish"); err != nil {
		t.Fatalf("SetLanguage: %v", err)
	}
	lang, err := svc.GetLanguage(ctx, "u1")
	if err != nil || lang != "Spanish" {
		t.Fatalf("GetLanguage = %q, %v", lang, err)
	}

	prefs, err = svc.UpdatePreferences(ctx, "u1", &models.UpdatePreferencesRequest{
		UI: &models.UIPreferences{Theme: "dark"},
	})
	if err != nil {
		t.Fatalf("UpdatePreferences: %v", err)
	}
	if prefs.Language() != "Spanish" || prefs.GetUI().Theme != "dark" {
		t.Errorf("absent language must be kept, got %+v", prefs.Preferences)
	}

	prefs, err = svc.UpdatePreferences(ctx, "u1", &models.UpdatePreferencesRequest{
		Language: models.OptionalLanguage{Present: true},
	})
	if err != nil {
		t.Fatalf("UpdatePreferences clear: %v", err)
	}
	if prefs.Language() != "" {
		t.Errorf("Language() = %q, want cleared", prefs.Language())
	}

	tests := []struct {
		name string
		req  models.UpdatePreferencesRequest
	}{
		{"unsupported language", models.UpdatePreferencesRequest{Language: models.OptionalLanguage{Present: true, Value: strPtr("Klingon")}}},
		{"bad theme", models.UpdatePreferencesRequest{UI: &models.UIPreferences{Theme: "neon"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.UpdatePreferences(ctx, "u1", &tt.req); !errors.Is(err, domain.ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestUserPreferencesService_LowercaseLanguage(t *testing.T) {
	svc := NewUserPreferencesService(memory.NewUserPreferencesRepository(), testLogger())
	prefs, err := svc.UpdatePreferences(context.Background(), "u1", &models.UpdatePreferencesRequest{
		Language: models.OptionalLanguage{Present: true, Value: strPtr("french")},
	})
	if err != nil {
		t.Fatalf("UpdatePreferences: %v", err)
	}
	if prefs.Language() != "French" {
		t.Errorf("Language() = %q, want French", prefs.Language())
	}
}
