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
	"github.com/stemsi/exam-practice/internal/client"
	"github.com/stemsi/exam-practice/internal/config"
	"github.com/stemsi/exam-practice/internal/database"
	"github.com/stemsi/exam-practice/internal/handler"
	"github.com/stemsi/exam-practice/internal/logger"
	"github.com/stemsi/exam-practice/internal/middleware"
	"github.com/stemsi/exam-practice/internal/repository"
	"github.com/stemsi/exam-practice/internal/router"
	"github.com/stemsi/exam-practice/internal/service"
	"github.com/stemsi/exam-practice/internal/validator"
	"github.com/stemsi/exam-practice/internal/worker"
)

const (
	tickInterval    = time.Second
	janitorInterval = time.Minute
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
		Str("session_store", cfg.SessionStore).
		Str("content_api", cfg.ContentAPIURL).
		Msg("Starting Exam Practice Gateway")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to Redis ──────────────────────────────────────────────
	// Always needed: the submission queue lives in Redis.
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	health := map[string]database.Pinger{"redis": database.RedisPinger{Client: rdb}}

	// ─── Initialize Repositories ───────────────────────────────────────
	var (
		snapshotStore service.SnapshotStore
		staleStore    worker.StaleSnapshotStore
	)
	switch cfg.SessionStore {
	case config.StorePostgres:
		pool, err := database.NewPostgresPool(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()

		pgStore := repository.NewPostgresSnapshotRepository(pool)
		snapshotStore = pgStore
		staleStore = pgStore
		health["postgres"] = pool
	case config.StoreRedis:
		snapshotStore = repository.NewRedisSnapshotRepository(rdb, cfg.SnapshotTTL)
	default:
		log.Fatal().Str("session_store", cfg.SessionStore).Msg("Unknown SESSION_STORE, expected redis or postgres")
	}
	queueRepo := repository.NewSubmissionQueueRepository(rdb)
	contentClient := client.NewContentClient(cfg.ContentAPIURL, cfg.ContentAPITimeout)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg.JWTSecret)
	sessionService := service.NewExamSessionService(snapshotStore, queueRepo, contentClient, tickInterval, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Session: handler.NewSessionHandler(sessionService, log),
		WS:      handler.NewWSHandler(sessionService, log, cfg.AllowedOrigins),
		Health:  handler.NewHealthHandler(health),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	submissionWorker := worker.NewSubmissionWorker(queueRepo, contentClient, log)
	janitor := worker.NewSessionJanitor(sessionService, staleStore, janitorInterval,
		cfg.SessionIdleTimeout, cfg.SnapshotTTL, log)

	workers.Add(2)
	go func() { defer workers.Done(); submissionWorker.Start(workerCtx) }()
	go func() { defer workers.Done(); janitor.Start(workerCtx) }()

	var limiter *middleware.RateLimiter
	if cfg.RateLimitPerMinute > 0 {
		limiter = middleware.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute)
		go limiter.RunCleanup(workerCtx)
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, limiter, handlers, cfg, log)

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

	// 2. Stop countdowns and close streams. Snapshots stay for resume.
	sessionService.Shutdown()

	// 3. Stop background workers and wait for the submission queue to drain.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
