package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/tolcsim-backend/internal/config"
	"github.com/stemsi/tolcsim-backend/internal/database"
	"github.com/stemsi/tolcsim-backend/internal/handler"
	"github.com/stemsi/tolcsim-backend/internal/logger"
	"github.com/stemsi/tolcsim-backend/internal/repository"
	"github.com/stemsi/tolcsim-backend/internal/router"
	"github.com/stemsi/tolcsim-backend/internal/service"
	"github.com/stemsi/tolcsim-backend/internal/validator"
	"github.com/stemsi/tolcsim-backend/internal/websocket"
	"github.com/stemsi/tolcsim-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Dur("request_timeout", cfg.RequestTimeout).
		Bool("placeholder_fallback", cfg.PlaceholderFallback).
		Msg("Starting TOLC simulator backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	questionRepo := repository.NewQuestionRepository(pool)
	sessionRepo := repository.NewExamSessionRepository(pool)
	statsRepo := repository.NewStatsRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg)
	provisioner := service.NewQuestionProvisioner(questionRepo, cfg.PlaceholderFallback, cfg.StorageRetryMax, log)
	sessionService := service.NewExamSessionService(sessionRepo, provisioner, rdb, cfg, log)
	statsService := service.NewStatsService(statsRepo, cfg.StorageRetryMax)

	// ─── Realtime Hub ─────────────────────────────────────────────────
	hub := websocket.NewHub(rdb, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Catalog: handler.NewCatalogHandler(),
		Session: handler.NewSessionHandler(sessionService),
		Stats:   handler.NewStatsHandler(statsService),
		WS:      handler.NewWSHandler(hub, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	statsWorker := worker.NewStatsWorker(statsRepo, rdb, log)
	wg.Add(2)
	go func() {
		defer wg.Done()
		statsWorker.Start(workerCtx)
	}()
	go func() {
		defer wg.Done()
		if err := hub.Run(workerCtx); err != nil {
			log.Error().Err(err).Msg("Realtime hub stopped")
		}
	}()

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(ctx, authService, handlers, cfg, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop the hub and the stats worker, letting the worker flush its batch.
	workerCancel()
	wg.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
