package main

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"mrilo/internal/auth"
	"mrilo/internal/config"
	"mrilo/internal/domain/repositories"
	"mrilo/internal/handler"
	"mrilo/internal/httputil"
	"mrilo/internal/metrics"
	"mrilo/internal/middleware"
	"mrilo/internal/repository/memory"
	"mrilo/internal/repository/postgres"
	"mrilo/internal/service"
	authService "mrilo/internal/service/auth"
	"mrilo/internal/service/chat"
	"mrilo/internal/service/llm/providers"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Setup structured logging
	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" {
		logLevel = slog.LevelDebug
	}

	var logOut io.Writer = os.Stdout
	if cfg.LogDir != "" {
		logFile, err := config.SetupLogFile(cfg.LogDir, "server", config.MaxLogFiles)
		if err != nil {
			log.Fatalf("Failed to open log file: %v", err)
		}
		defer logFile.Close()
		logOut = io.MultiWriter(os.Stdout, logFile)
	}

	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger) // Set as default logger

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
	)

	// JWT verifier for Supabase authentication. Without SUPABASE_URL the chat
	// endpoints stay public and the /api routes answer 401.
	var jwtVerifier auth.JWTVerifier
	if cfg.SupabaseJWKSURL != "" {
		v, err := auth.NewJWTVerifier(cfg.SupabaseJWKSURL, logger)
		if err != nil {
			log.Fatalf("Failed to create JWT verifier: %v", err)
		}
		defer v.Close()
		jwtVerifier = v
	} else {
		logger.Warn("SUPABASE_URL not set, authenticated routes are disabled")
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(registry)

	// Repositories: Postgres when configured, in-memory otherwise
	ctx := context.Background()
	var (
		chatRepo      repositories.ChatRepository
		userPrefsRepo repositories.UserPreferencesRepository
		txManager     repositories.TransactionManager
	)
	if cfg.HasDatabase() {
		pool, err := postgres.CreateConnectionPool(ctx, cfg.SupabaseDBURL)
		if err != nil {
			log.Fatalf("Failed to create connection pool: %v", err)
		}
		defer pool.Close()

		logger.Info("database connected",
			"max_conns", 25,
			"min_conns", 5,
		)

		tables := postgres.NewTableNames(cfg.TablePrefix)
		if err := postgres.Migrate(ctx, pool, tables); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}

		repoConfig := &postgres.RepositoryConfig{
			Pool:   pool,
			Tables: tables,
			Logger: logger,
		}
		chatRepo = postgres.NewChatRepository(repoConfig)
		userPrefsRepo = postgres.NewUserPreferencesRepository(repoConfig)
		txManager = postgres.NewTransactionManager(pool, logger)
	} else {
		logger.Warn("SUPABASE_DB_URL not set, using in-memory storage")
		chatRepo = memory.NewChatRepository()
		userPrefsRepo = memory.NewUserPreferencesRepository()
		txManager = memory.TransactionManager{}
	}

	// Setup LLM providers
	catalog, err := providers.LoadCatalog()
	if err != nil {
		log.Fatalf("Failed to load provider catalogue: %v", err)
	}
	providerRegistry, err := providers.NewRegistry(providers.RegistryConfig{
		Catalog:    catalog,
		APIKey:     cfg.APIKey,
		Chain:      cfg.ProviderChain,
		HTTPClient: &http.Client{},
		Metrics:    appMetrics,
		Logger:     logger,
	})
	if err != nil {
		log.Fatalf("Failed to setup LLM providers: %v", err)
	}
	for _, status := range providerRegistry.Status() {
		logger.Info("provider registered", "provider", status.Name, "model", status.Model, "state", status.State)
	}

	// Services
	userPrefsService := service.NewUserPreferencesService(userPrefsRepo, logger)
	authorizer := authService.NewOwnerBasedAuthorizer(chatRepo)
	chatHistoryService := service.NewChatHistoryService(chatRepo, txManager, authorizer, logger)
	orchestrator := chat.NewOrchestrator(providerRegistry, userPrefsService, appMetrics, logger)
	completion := chat.NewCompletion(providerRegistry, logger)

	// Handlers
	chatHandler := handler.NewChatHandler(orchestrator, completion, logger)
	socketHandler := handler.NewSocketHandler(orchestrator, logger)
	chatHistoryHandler := handler.NewChatHistoryHandler(chatHistoryService, logger)
	userPrefsHandler := handler.NewUserPreferencesHandler(userPrefsService, logger)
	healthHandler := handler.NewHealthHandler(providerRegistry)

	requireAuth := middleware.AuthMiddleware(jwtVerifier, logger)
	authed := func(fn http.HandlerFunc) http.Handler {
		return requireAuth(fn)
	}

	mux := http.NewServeMux()

	// Health & metrics
	mux.HandleFunc("GET /health", healthHandler.HealthCheck)
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	// Chat envelope endpoints
	mux.HandleFunc("POST /chat", chatHandler.Chat)
	mux.HandleFunc("OPTIONS /chat", chatHandler.Preflight)
	mux.HandleFunc("POST /openai", chatHandler.Complete)
	mux.HandleFunc("OPTIONS /openai", chatHandler.Preflight)
	mux.HandleFunc("GET /ws/chat", socketHandler.ServeChat)

	// Remote chat table
	mux.Handle("GET /api/chats", authed(chatHistoryHandler.ListChats))
	mux.Handle("PUT /api/chats/{id}", authed(chatHistoryHandler.SaveChat))
	mux.Handle("PATCH /api/chats/{id}", authed(chatHistoryHandler.UpdateChat))
	mux.Handle("DELETE /api/chats/{id}", authed(chatHistoryHandler.DeleteChat))

	// User preferences
	mux.Handle("GET /api/users/me/preferences", authed(userPrefsHandler.GetPreferences))
	mux.Handle("PATCH /api/users/me/preferences", authed(userPrefsHandler.UpdatePreferences))

	trustedProxies, err := httputil.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		log.Fatalf("Failed to parse TRUSTED_PROXIES: %v", err)
	}

	// Build middleware chain
	// Order: CORS → Recovery → RateLimit → OptionalAuth → Metrics → Routes
	var h http.Handler = mux
	h = middleware.Metrics(appMetrics)(h)
	h = middleware.OptionalAuth(jwtVerifier)(h)
	h = middleware.RateLimit(middleware.NewRateLimiter(cfg.RateLimitPerMinute, trustedProxies), appMetrics)(h)
	h = middleware.Recovery(logger)(h)

	// CORS - Must be before auth to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "X-Client-Info", "Apikey", "Content-Type", "Accept"},
		AllowCredentials: true,
	})
	h = corsHandler.Handler(h)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // Disabled for long-lived websocket connections
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM
	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop

		logger.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}()

	logger.Info("server listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Failed to start server: %v", err)
	}
}
