package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"genius-backend/internal/config"
	"genius-backend/internal/database"
	"genius-backend/internal/handlers"
	"genius-backend/internal/logging"
	"genius-backend/internal/metrics"
	"genius-backend/internal/middleware"
	"genius-backend/internal/repository"
	"genius-backend/internal/router"
	"genius-backend/internal/services"
	"genius-backend/internal/websocket"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()

	logCloser, err := logging.Setup(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		log.Fatalf("✗ Logging setup failed: %v", err)
	}
	defer logCloser.Close()

	log.Info("🚀 Starting Genius Backend...")
	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ──── Step 2: Initialize Redis Clients ────
	var redisClients *database.RedisClients
	if cfg.RedisURL != "" {
		redisClients, err = database.NewRedisClients(cfg.RedisURL)
		if err != nil {
			log.Fatalf("✗ Redis connection failed: %v", err)
		}
		defer redisClients.Close()
		log.Info("✓ Redis connected")
	}

	// ──── Step 3: Initialize Usage Quota ────
	quota, closeQuota := buildQuota(cfg, redisClients)
	defer closeQuota()
	log.WithFields(log.Fields{"backend": cfg.QuotaBackend, "limit": cfg.MaxFreeCounts}).Info("✓ Usage quota ready")

	// ──── Step 4: Initialize Completion Provider ────
	completer, err := services.NewCompleter(ctx, cfg)
	if err != nil {
		log.Fatalf("✗ Completion client initialization failed: %v", err)
	}
	if closer, ok := completer.(interface{ Close() }); ok {
		defer closer.Close()
	}
	if completer == nil {
		log.Warnf("%s API key not configured; conversations will be refused", cfg.CompletionProvider)
	} else {
		log.WithFields(log.Fields{"provider": cfg.CompletionProvider, "model": cfg.CompletionModel()}).Info("✓ Completion client initialized")
	}

	// ──── Step 5: Start WebSocket Hub ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)

	var wsHub *websocket.Hub
	var publisher services.UsagePublisher
	if redisClients != nil {
		wsHub = websocket.NewHub(redisClients.PubSub, jwtAuth)
		publisher = services.NewRedisUsagePublisher(redisClients.Quota)
	} else {
		wsHub = websocket.NewHub(nil, jwtAuth)
		publisher = wsHub
	}
	defer wsHub.Close()
	log.Info("✓ WebSocket hub started")

	// ──── Step 6: Start HTTP Server ────
	conversationService := services.NewConversationService(completer, cfg.CompletionModel(), quota, publisher)
	conversationHandler := handlers.NewConversationHandler(conversationService)

	conversationLimiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute)
	defer conversationLimiter.Stop()

	r := router.New(
		jwtAuth,
		conversationHandler,
		conversationLimiter,
		wsHub.HandleWebSocket,
		cfg.FrontendURL,
	)

	completionTimeout := time.Duration(cfg.CompletionTimeoutSeconds) * time.Second
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: completionTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("✓ Genius Backend ready on http://localhost:%s", cfg.Port)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func buildQuota(cfg *config.Config, redisClients *database.RedisClients) (services.QuotaService, func()) {
	switch cfg.QuotaBackend {
	case config.QuotaBackendRedis:
		return services.NewRedisQuota(redisClients.Quota, cfg.MaxFreeCounts), func() {}

	case config.QuotaBackendMemory:
		return services.NewMemoryQuota(cfg.MaxFreeCounts), func() {}

	default:
		pool, err := database.NewPostgresPool(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("✗ PostgreSQL connection failed: %v", err)
		}
		log.Info("✓ PostgreSQL connected")

		if err := database.RunMigrations(pool, database.Migrations()); err != nil {
			pool.Close()
			log.Fatalf("✗ Database migration failed: %v", err)
		}
		log.Info("✓ Database migrations applied")

		return services.NewPostgresQuota(repository.NewAPILimitRepo(pool), cfg.MaxFreeCounts), pool.Close
	}
}
