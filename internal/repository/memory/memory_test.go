package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"mrilo/internal/domain"
	"mrilo/internal/domain/models"
)

func TestChatRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewChatRepository()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b"} {
		if err := repo.Upsert(ctx, &models.ChatRecord{
			ID: id, UserID: "u1", Title: id, CreatedAt: base, UpdatedAt: base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("Upsert(%s): %v", id, err)
		}
	}
	_ = repo.Upsert(ctx, &models.ChatRecord{ID: "c", UserID: "u2", Title: "other"})

	chats, _ := repo.ListByUser(ctx, "u1")
	if len(chats) != 2 || chats[0].ID != "b" {
		t.Fatalf("ListByUser = %+v, want b then a", chats)
	}

	folder := "Work"
	if err := repo.Update(ctx, &models.ChatRecord{ID: "a", Title: "renamed", FolderID: &folder, IsFavorite: true}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	// upsert keeps folder and favorite
	_ = repo.Upsert(ctx, &models.ChatRecord{ID: "a", UserID: "u1", Title: "again"})
	got, err := repo.GetByIDOnly(ctx, "a")
	if err != nil {
		t.Fatalf("GetByIDOnly: %v", err)
	}
	if got.Title != "again" || !got.IsFavorite || got.FolderID == nil || *got.FolderID != "Work" {
		t.Errorf("chat = %+v", got)
	}

	if err := repo.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := repo.Delete(ctx, "a"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("second Delete err = %v, want ErrNotFound", err)
	}
	if err := repo.Update(ctx, &models.ChatRecord{ID: "missing"}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Update missing err = %v, want ErrNotFound", err)
	}
}

func TestUserPreferencesRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserPreferencesRepository()

	prefs, err := repo.GetByUserID(ctx, "u1")
	if err != nil || prefs != nil {
		t.Fatalf("GetByUserID on empty = %v, %v", prefs, err)
	}

	p := &models.UserPreferences{UserID: "u1"}
	p.SetLanguage("Spanish")
	if err := repo.Upsert(ctx, p); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	p.SetLanguage("French") // must not leak into the stored copy

	got, _ := repo.GetByUserID(ctx, "u1")
	if got.Language() != "Spanish" {
		t.Errorf("Language() = %q, want Spanish", got.Language())
	}
}
