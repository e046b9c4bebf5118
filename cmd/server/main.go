// Package main is the entry point for the albaran API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"albaran/internal/domain/access"
	"albaran/internal/domain/auth"
	"albaran/internal/domain/deliverynote"
	v1 "albaran/internal/infrastructure/http/v1"
	"albaran/internal/infrastructure/pdf"
	"albaran/internal/infrastructure/pinning"
	"albaran/internal/infrastructure/storage/postgres"
	"albaran/internal/infrastructure/storage/postgres/directory_repo"
	"albaran/internal/infrastructure/storage/postgres/note_repo"
	"albaran/pkg/logger"
)

var version = "dev"

func main() {
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting albaran server")

	// --- Database ---
	poolCfg := postgres.DefaultPoolConfig(mustEnv("DATABASE_URL"))
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool)

	// --- Repositories ---
	noteRepo := note_repo.NewDeliveryNoteRepo(txManager)
	clientRepo := directory_repo.NewClientRepo(txManager)
	projectRepo := directory_repo.NewProjectRepo(txManager, clientRepo)
	userRepo := directory_repo.NewUserRepo(txManager)

	// --- Audit trail ---
	auditLog, err := postgres.NewAuditLog(txManager)
	if err != nil {
		log.Fatalw("failed to initialize audit log", "error", err)
	}

	// --- Pinning client ---
	pinCfg := pinning.DefaultConfig()
	pinCfg.APIKey = getEnv("PINNING_API_KEY", "")
	pinCfg.APISecret = getEnv("PINNING_API_SECRET", "")
	if baseURL := getEnv("PINNING_BASE_URL", ""); baseURL != "" {
		pinCfg.BaseURL = baseURL
	}
	if gatewayURL := getEnv("PINNING_GATEWAY_URL", ""); gatewayURL != "" {
		pinCfg.GatewayURL = gatewayURL
	}
	pinCfg.Timeout = getEnvDuration("PINNING_TIMEOUT", pinCfg.Timeout)
	pinClient := pinning.NewClient(pinCfg)
	if pinCfg.APIKey == "" || pinCfg.APISecret == "" {
		log.Warn("pinning credentials not set; signing will fail until configured")
	}

	// --- JWT ---
	jwtService := auth.NewJWTService(auth.DefaultJWTConfig(
		getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
	))

	// --- Delivery note service ---
	gate := access.NewGate(userRepo)
	renderer := pdf.NewRenderer()
	noteService := deliverynote.NewService(
		noteRepo,
		projectRepo,
		clientRepo,
		userRepo,
		gate,
		renderer,
		pinClient,
		txManager,
		auditLog,
	)

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:          pool.Pool,
		Logger:        log,
		JWTValidator:  jwtService,
		DeliveryNotes: noteService,
		Version:       version,
	})

	// --- HTTP server ---
	port := getEnv("APP_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
