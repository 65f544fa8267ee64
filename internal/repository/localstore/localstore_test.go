package localstore

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
)

type kv interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

func TestStores(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	sqliteStore, err := OpenSQLite(filepath.Join(t.TempDir(), "local.db"), logger)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { _ = sqliteStore.Close() })

	stores := []struct {
		name  string
		store kv
	}{
		{name: "sqlite", store: sqliteStore},
		{name: "memory", store: NewMemoryStore()},
	}

	for _, tt := range stores {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := tt.store

			if _, ok, err := s.Get(ctx, "user"); err != nil || ok {
				t.Fatalf("Get(missing) = ok %v, err %v", ok, err)
			}

			if err := s.Set(ctx, "user", `{"name":"A"}`); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			if err := s.Set(ctx, "user", `{"name":"B"}`); err != nil {
				t.Fatalf("Set() overwrite error = %v", err)
			}
			if err := s.Set(ctx, "gemini_api_key", "k"); err != nil {
				t.Fatalf("Set() error = %v", err)
			}

			v, ok, err := s.Get(ctx, "user")
			if err != nil || !ok || v != `{"name":"B"}` {
				t.Errorf("Get() = %q, %v, %v", v, ok, err)
			}

			keys, err := s.Keys(ctx)
			if err != nil || len(keys) != 2 || keys[0] != "gemini_api_key" || keys[1] != "user" {
				t.Errorf("Keys() = %v, %v", keys, err)
			}

			if err := s.Remove(ctx, "user"); err != nil {
				t.Fatalf("Remove() error = %v", err)
			}
			if err := s.Remove(ctx, "user"); err != nil {
				t.Errorf("Remove(missing) error = %v", err)
			}
			if _, ok, _ := s.Get(ctx, "user"); ok {
				t.Error("key still present after Remove")
			}
		})
	}
}

func TestSQLiteStore_Persists(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	path := filepath.Join(t.TempDir(), "local.db")
	ctx := context.Background()

	s, err := OpenSQLite(path, logger)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	if err := s.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	_ = s.Close()

	reopened, err := OpenSQLite(path, logger)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()
	if v, ok, _ := reopened.Get(ctx, "k"); !ok || v != "v" {
		t.Errorf("Get() after reopen = %q, %v", v, ok)
	}
}
