package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"studypulse-backend/internal/config"
	"studypulse-backend/internal/database"
	"studypulse-backend/internal/handlers"
	"studypulse-backend/internal/ingest"
	"studypulse-backend/internal/logger"
	"studypulse-backend/internal/middleware"
	"studypulse-backend/internal/repository"
	"studypulse-backend/internal/router"
	"studypulse-backend/internal/websocket"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()

	logger.Init()
	log := logger.Log.With().Str("service", "studypulse").Str("env", cfg.Env).Logger()
	log.Info().Msg("starting studypulse backend")

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("postgresql connection failed")
	}
	defer pool.Close()
	log.Info().Msg("postgresql connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	defer redisClients.Close()
	log.Info().Msg("redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, "migrations", log); err != nil {
		log.Fatal().Err(err).Msg("database migration failed")
	}

	// ──── Initialize Repositories ────
	interactionRepo := repository.NewInteractionRepo(pool)

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	publisher := websocket.NewRedisPublisher(redisClients.Events)
	ingestService := ingest.NewService(interactionRepo, publisher, redisClients.Events, ingest.Options{
		AlertMode:      cfg.AlertMode,
		PersistTimeout: cfg.PersistTimeout,
		PersistRetries: cfg.PersistRetries,
	}, log)

	// ──── Step 5: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, cfg.JWTSecret, log)
	sessionChannel := websocket.NewSessionChannel(wsHub, ingestService, log)
	log.Info().Msg("websocket hub started")

	// ──── Initialize Handlers ────
	analyticsHandler := handlers.NewAnalyticsHandler(interactionRepo)

	// ──── Step 6: Start HTTP Server ────
	r := router.New(
		jwtAuth,
		analyticsHandler,
		wsHub,
		sessionChannel,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("shutting down")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Info().
		Str("api", fmt.Sprintf("http://localhost:%s/api/v1", cfg.Port)).
		Str("ws", fmt.Sprintf("ws://localhost:%s/api/v1/ws", cfg.Port)).
		Msg("studypulse backend ready")

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server error")
	}
}
