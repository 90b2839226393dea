// Command server runs the lesson generation API and its worker pool in
// one process: HTTP endpoints for submitting and tracking generation
// jobs, a websocket bridge for progress events, and the pipeline that
// turns queued jobs into slide-deck bundles.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/lumenlearn/lumen-api/internal/config"
	"github.com/lumenlearn/lumen-api/internal/generation"
	"github.com/lumenlearn/lumen-api/internal/jobqueue"
	"github.com/lumenlearn/lumen-api/internal/notify"
	"github.com/lumenlearn/lumen-api/internal/platform/gemini"
	"github.com/lumenlearn/lumen-api/internal/platform/logger"
	"github.com/lumenlearn/lumen-api/internal/platform/media"
	"github.com/lumenlearn/lumen-api/internal/platform/postgres"
	"github.com/lumenlearn/lumen-api/internal/platform/redisq"
	"github.com/lumenlearn/lumen-api/internal/progress"
	"github.com/lumenlearn/lumen-api/internal/worker"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer func() { _ = rdb.Close() }()

	caps, err := buildCapabilities(ctx, cfg.Generation, log)
	if err != nil {
		return err
	}

	// Wiring: one hub feeds websocket subscribers, one reporter feeds the
	// hub, and the store is shared by the API and the worker pool.
	hub := notify.NewHub(log)
	reporter := progress.NewReporter(hub, log)
	jobStore := postgres.NewJobStore(db)
	cache := redisq.NewResultCache(rdb)
	manager := jobqueue.NewManager(jobStore, hub)
	budget := redisq.NewBudget(rdb, "budget:generation", cfg.Worker.RateBudget)

	pipeline := worker.NewPipeline(caps, jobStore, cache, reporter, budget, cfg.Worker, cfg.Cache.ResultTTL, log)
	pool := worker.NewPool(jobStore, pipeline, cfg.Worker, log)
	pool.Start(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           newRouter(manager, cache, hub, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	// Stop accepting traffic first, then drain the worker pool so
	// in-flight jobs finish or release their leases cleanly.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown was not clean", "error", err)
	}
	pool.Stop()

	log.Info("server stopped")
	return nil
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	if err := postgres.RunMigrations(db, log); err != nil {
		return nil, err
	}

	log.Info("database ready")
	return db, nil
}

func buildCapabilities(ctx context.Context, cfg config.GenerationConfig, log *slog.Logger) (generation.Capabilities, error) {
	script, err := gemini.NewScriptGenerator(ctx, log, cfg)
	if err != nil {
		return generation.Capabilities{}, fmt.Errorf("failed to build script generator: %w", err)
	}

	mediaClient, err := media.NewClient(cfg.MediaServiceURL, log)
	if err != nil {
		return generation.Capabilities{}, fmt.Errorf("failed to build media client: %w", err)
	}

	return generation.Capabilities{
		Script:    script,
		Visuals:   mediaClient,
		Narration: mediaClient,
		Composer:  mediaClient,
	}, nil
}
