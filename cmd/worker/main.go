package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/menuwaiter/internal/cache"
	"github.com/nikhilbhutani/menuwaiter/internal/config"
	"github.com/nikhilbhutani/menuwaiter/internal/database"
	"github.com/nikhilbhutani/menuwaiter/internal/embedding"
	"github.com/nikhilbhutani/menuwaiter/internal/ingest"
	"github.com/nikhilbhutani/menuwaiter/internal/llm"
	"github.com/nikhilbhutani/menuwaiter/internal/queue"
	"github.com/nikhilbhutani/menuwaiter/internal/queue/workers"
	"github.com/nikhilbhutani/menuwaiter/internal/vectorstore"
)

const concurrency = 4

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}
	if cfg.Ingest.VectorBackend != config.VectorBackendPgVector {
		slog.Error("worker requires the pgvector backend", "vector_backend", cfg.Ingest.VectorBackend)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	gw := llm.NewGateway(cfg.LLM)
	embedder := embedding.NewService(gw, cfg.Embedding.Provider, cfg.Embedding.Model)
	pipeline := ingest.NewPipeline(embedder, vectorstore.NewPgVectorStore(db), cfg.Ingest.BatchSize)
	status := cache.NewStatusStore(cache.NewCache(rdb), 0)

	srv := asynq.NewServer(
		queue.RedisOpt(cfg.Redis),
		asynq.Config{
			Concurrency: concurrency,
		},
	)

	registry := queue.NewHandlersRegistry()

	ingestWorker := workers.NewIngestWorker(pipeline, status)
	registry.Register(queue.TypeMenuIngest, asynq.HandlerFunc(ingestWorker.ProcessTask))

	slog.Info("starting worker", "concurrency", concurrency)
	if err := srv.Run(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
