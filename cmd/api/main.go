package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/menuwaiter/internal/agent"
	"github.com/nikhilbhutani/menuwaiter/internal/api"
	"github.com/nikhilbhutani/menuwaiter/internal/api/handlers"
	"github.com/nikhilbhutani/menuwaiter/internal/assistant"
	"github.com/nikhilbhutani/menuwaiter/internal/cache"
	"github.com/nikhilbhutani/menuwaiter/internal/config"
	"github.com/nikhilbhutani/menuwaiter/internal/database"
	"github.com/nikhilbhutani/menuwaiter/internal/embedding"
	"github.com/nikhilbhutani/menuwaiter/internal/ingest"
	"github.com/nikhilbhutani/menuwaiter/internal/llm"
	"github.com/nikhilbhutani/menuwaiter/internal/queue"
	"github.com/nikhilbhutani/menuwaiter/internal/vectorstore"
)

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

	ctx := context.Background()
	deps := api.Deps{
		Health:      map[string]handlers.Pinger{},
		MaxUploadMB: cfg.Server.MaxUploadMB,
	}

	var index vectorstore.VectorIndex
	switch cfg.Ingest.VectorBackend {
	case config.VectorBackendMemory:
		slog.Warn("using in-memory vector index; menus are lost on restart")
		index = vectorstore.NewMemoryStore()
	default:
		db, err := database.NewPool(ctx, cfg.Database)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := database.RunMigrations(ctx, db, cfg.Database.MigrationsPath); err != nil {
			slog.Error("migrations failed", "error", err)
			os.Exit(1)
		}
		index = vectorstore.NewPgVectorStore(db)
		deps.Health["database"] = db
	}

	gw := llm.NewGateway(cfg.LLM)
	embedder := embedding.NewService(gw, cfg.Embedding.Provider, cfg.Embedding.Model)

	deps.Ingester = ingest.NewPipeline(embedder, index, cfg.Ingest.BatchSize)
	deps.Graph = agent.NewGraph(
		agent.NewClassifier(gw, cfg.Agent.ClassifierModel),
		agent.NewRetriever(embedder, index, cfg.Agent.TopK),
	)
	deps.Responder = assistant.NewResponder(gw, cfg.Agent.ResponseModel)

	// Redis backs background ingestion only; uploads still work without it.
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	rc := cache.NewCache(rdb)
	switch {
	case cfg.Ingest.VectorBackend == config.VectorBackendMemory:
		slog.Info("background ingestion disabled for in-memory index")
	case rc.Ping(ctx) != nil:
		slog.Warn("redis unavailable, background ingestion disabled", "addr", cfg.Redis.Addr)
	default:
		qc := queue.NewClient(cfg.Redis)
		defer qc.Close()
		deps.Queue = qc
		deps.Status = cache.NewStatusStore(rc, 0)
		deps.Health["redis"] = rc
	}

	router := api.NewRouter(deps)
	handler := router.Setup()

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("starting API server", "addr", cfg.Addr(), "vector_backend", cfg.Ingest.VectorBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	slog.Info("server stopped")
}
