package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/ragserver/internal/api"
	"github.com/nikhilbhutani/ragserver/internal/cache"
	"github.com/nikhilbhutani/ragserver/internal/config"
	"github.com/nikhilbhutani/ragserver/internal/embedding"
	"github.com/nikhilbhutani/ragserver/internal/llm"
	"github.com/nikhilbhutani/ragserver/internal/rag"
	"github.com/nikhilbhutani/ragserver/internal/vectorstore"
	"github.com/nikhilbhutani/ragserver/pkg/textextract"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	index, cleanup, err := newVectorIndex(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize vector index", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	if err := index.Ping(ctx); err != nil {
		slog.Warn("vector index unreachable at startup, continuing anyway", "error", err)
	}

	// Redis embedding cache (optional)
	var embedCache *cache.Cache
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Warn("redis unavailable, running without embedding cache", "error", err)
			rdb.Close()
		} else {
			defer rdb.Close()
			embedCache = cache.NewCache(rdb)
		}
	}

	// Providers: absence of a credential selects the mock strategy.
	var embedder llm.Embedder
	if cfg.LLM.OpenAIKey != "" {
		embedder = llm.NewOpenAIProvider(cfg.LLM.OpenAIKey, cfg.LLM.EmbeddingModel)
	} else {
		slog.Warn("OPENAI_API_KEY not set, embeddings run in mock mode")
	}

	completer := newCompleter(cfg)
	if completer == nil {
		slog.Warn("no completion provider configured, chat runs in mock mode")
	}

	embedClient := embedding.NewClient(embedder, embedCache, embedding.Config{
		MaxRetries: cfg.LLM.MaxRetries,
	})
	generator := rag.NewGenerator(completer, rag.GeneratorConfig{
		Model: cfg.LLM.ChatModel,
	})

	pipeline := rag.NewPipeline(
		index,
		embedClient,
		generator,
		textextract.NewFileExtractor(),
		rag.NewRegistry(),
		rag.PipelineConfig{
			Collection:   cfg.RAG.Collection,
			ChunkSize:    cfg.RAG.ChunkSize,
			ChunkOverlap: cfg.RAG.ChunkOverlap,
			MaxChunks:    cfg.RAG.MaxChunks,
			TopK:         cfg.RAG.TopK,
			MinScore:     cfg.RAG.MinScore,
		},
	)

	router := api.NewRouter(pipeline, index, embedCache, cfg)
	handler := router.Setup()

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("starting API server", "addr", cfg.Addr(), "vector_backend", cfg.RAG.VectorBackend)
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

func newVectorIndex(ctx context.Context, cfg *config.Config) (vectorstore.Index, func(), error) {
	switch cfg.RAG.VectorBackend {
	case "pgvector":
		pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, nil, err
		}
		return vectorstore.NewPgVectorIndex(pool, llm.EmbeddingDim), pool.Close, nil
	case "memory":
		return vectorstore.NewMemoryIndex(llm.EmbeddingDim), func() {}, nil
	default:
		index := vectorstore.NewQdrantIndex(vectorstore.QdrantConfig{
			URL:       cfg.Qdrant.URL,
			APIKey:    cfg.Qdrant.APIKey,
			Dimension: llm.EmbeddingDim,
		})
		return index, func() {}, nil
	}
}

func newCompleter(cfg *config.Config) llm.Completer {
	switch cfg.LLM.ChatProvider {
	case "anthropic":
		if cfg.LLM.AnthropicKey != "" {
			return llm.NewAnthropicProvider(cfg.LLM.AnthropicKey)
		}
	default:
		if cfg.LLM.OpenAIKey != "" {
			return llm.NewOpenAIProvider(cfg.LLM.OpenAIKey, cfg.LLM.EmbeddingModel)
		}
	}
	return nil
}
