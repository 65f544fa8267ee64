package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	loremgen "github.com/bozaro/golorem"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"mrilo/internal/auth"
	"mrilo/internal/config"
	"mrilo/internal/domain/models"
	"mrilo/internal/formatting"
	"mrilo/internal/repository/postgres"
	"mrilo/internal/service"
	authsvc "mrilo/internal/service/auth"
)

var demoFolders = []string{"Work", "Travel", "Learning"}

func main() {
	// Parse command-line flags
	dropTables := flag.Bool("drop-tables", false, "Drop all tables before seeding (fresh start)")
	schemaOnly := flag.Bool("schema-only", false, "Only set up schema, don't seed chats")
	clearData := flag.Bool("clear-data", false, "Clear the demo user's chats (keep schema)")
	email := flag.String("email", "demo@mrilo.dev", "Demo user email")
	password := flag.String("password", "mrilo-demo-password", "Demo user password (when creating the user)")
	userID := flag.String("user-id", "", "Seed for an existing user id instead of creating one in Supabase")
	chatCount := flag.Int("chats", 8, "Number of demo chats to create")
	language := flag.String("language", "", "Reply language to store for the demo user")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()

	// SAFETY: Prevent destructive operations in production
	if cfg.Environment == "prod" && (*dropTables || *clearData) {
		log.Fatalf("🚫 BLOCKED: Cannot run destructive operations (--drop-tables or --clear-data) in production environment")
	}
	if !cfg.HasDatabase() {
		log.Fatalf("SUPABASE_DB_URL is required")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	log.Printf("🌱 Seeding database (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.SupabaseDBURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	tables := postgres.NewTableNames(cfg.TablePrefix)

	if *dropTables {
		log.Println("🗑️  Dropping all tables...")
		if err := dropAllTables(ctx, pool, tables); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		log.Println("✅ Tables dropped")
	}

	log.Println("📋 Ensuring database schema is up to date...")
	if err := postgres.Migrate(ctx, pool, tables); err != nil {
		log.Fatalf("Failed to run schema: %v", err)
	}
	log.Println("✅ Schema ready")

	if *schemaOnly {
		return
	}

	owner := *userID
	if owner == "" {
		owner, err = ensureDemoUser(ctx, cfg, *email, *password)
		if err != nil {
			log.Fatalf("Failed to create demo user: %v", err)
		}
		log.Printf("👤 Demo user %s (ID: %s)", *email, owner)
	}

	log.Println("🧹 Clearing existing chats...")
	if err := clearChats(ctx, pool, tables, owner); err != nil {
		log.Fatalf("Failed to clear chats: %v", err)
	}
	if *clearData {
		log.Println("✅ Data cleared successfully")
		return
	}

	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	chatRepo := postgres.NewChatRepository(repoConfig)
	prefsRepo := postgres.NewUserPreferencesRepository(repoConfig)
	txManager := postgres.NewTransactionManager(pool, logger)

	chatService := service.NewChatHistoryService(chatRepo, txManager, authsvc.NewOwnerBasedAuthorizer(chatRepo), logger)
	prefsService := service.NewUserPreferencesService(prefsRepo, logger)

	if *language != "" {
		if err := prefsService.SetLanguage(ctx, owner, *language); err != nil {
			log.Fatalf("Failed to store language: %v", err)
		}
		log.Printf("🌐 Reply language set to %s", *language)
	}

	log.Println("📝 Seeding chats...")
	gen := loremgen.New()
	start := time.Now().Add(-time.Duration(*chatCount) * time.Hour)

	for i := 0; i < *chatCount; i++ {
		req := demoChat(gen, start.Add(time.Duration(i)*time.Hour))
		chat, err := chatService.SaveChat(ctx, owner, req)
		if err != nil {
			log.Printf("❌ Failed to create chat '%s': %v", req.Title, err)
			continue
		}

		update := &models.UpdateChatRequest{}
		if i%3 == 0 {
			favorite := true
			update.IsFavorite = &favorite
		}
		if i%2 == 1 {
			folder := demoFolders[i%len(demoFolders)]
			update.Folder = models.OptionalFolder{Present: true, Value: &folder}
		}
		if update.IsFavorite != nil || update.Folder.Present {
			if _, err := chatService.UpdateChat(ctx, owner, chat.ID, update); err != nil {
				log.Printf("❌ Failed to organize chat '%s': %v", chat.Title, err)
			}
		}

		log.Printf("✅ Created chat %d/%d: %s (ID: %s, Messages: %d)",
			i+1, *chatCount, chat.Title, chat.ID, len(chat.Messages))
	}

	log.Println("🎉 Seeding complete!")
}

// ensureDemoUser recreates the demo user through the Supabase Admin API
func ensureDemoUser(ctx context.Context, cfg *config.Config, email, password string) (string, error) {
	if cfg.SupabaseURL == "" || cfg.SupabaseKey == "" {
		log.Fatalf("SUPABASE_URL and SUPABASE_KEY are required to create the demo user (or pass --user-id)")
	}
	admin := auth.NewAdminClient(cfg.SupabaseURL, cfg.SupabaseKey)
	if err := admin.DeleteUserByEmail(ctx, email); err != nil {
		return "", err
	}
	name := strings.SplitN(email, "@", 2)[0]
	return admin.CreateUser(ctx, email, password, map[string]interface{}{"name": name})
}

// demoChat builds a short conversation; some replies carry a code block
func demoChat(gen *loremgen.Lorem, at time.Time) *models.SaveChatRequest {
	title := strings.TrimSuffix(gen.Sentence(2, 5), ".")
	turns := 1 + int(at.Unix()/3600%3)

	messages := make([]models.Message, 0, turns*2)
	ts := at
	for t := 0; t < turns; t++ {
		question := strings.TrimSuffix(gen.Sentence(5, 12), ".") + "?"
		messages = append(messages, models.Message{
			ID:        uuid.NewString(),
			Text:      question,
			Timestamp: ts,
		})
		ts = ts.Add(20 * time.Second)

		answer := gen.Paragraph(2, 4)
		if t%2 == 1 {
			answer += "\n\n```go\nfmt.Println(\"" + gen.Word(3, 8) + "\")\n```"
		}
		messages = append(messages, models.Message{
			ID:         uuid.NewString(),
			Text:       answer,
			IsAI:       true,
			Timestamp:  ts,
			CodeBlocks: formatting.ExtractCodeBlocks(answer),
		})
		ts = ts.Add(2 * time.Minute)
	}

	return &models.SaveChatRequest{
		ID:        uuid.NewString(),
		Title:     title,
		Messages:  messages,
		CreatedAt: at,
	}
}

func dropAllTables(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames) error {
	_, err := pool.Exec(ctx, `
		DROP TABLE IF EXISTS `+tables.Chats+` CASCADE;
		DROP TABLE IF EXISTS `+tables.UserPreferences+` CASCADE;
	`)
	return err
}

func clearChats(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames, userID string) error {
	_, err := pool.Exec(ctx, `DELETE FROM `+tables.Chats+` WHERE user_id = $1`, userID)
	return err
}
