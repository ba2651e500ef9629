package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/joho/godotenv"

	embedclient "github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/clients/embedding"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/clients/pinecone"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/config"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/handler"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/logger"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/model/expert"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/observability"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/service/ai"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/service/auth"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/service/catalog"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/service/chat"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/service/ingest"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/service/rag"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/service/retrieval"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logg, err := logger.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logg.Sync()
	restore := logger.ReplaceGlobals(logg)
	defer restore()

	if err := run(ctx, logg, cfg); err != nil {
		logg.Fatal("server exited", "error", err)
	}
}

func run(ctx context.Context, logg *logger.Logger, cfg *config.Config) error {
	shutdownTracing, err := observability.InitTracing(ctx, logg, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logg.Warn("tracing shutdown failed", "error", err)
		}
	}()

	// Expert catalog: built-ins from file or seed, then persisted experts.
	builtIns, err := expert.LoadCatalog(cfg.Catalog.ExpertsFile)
	if err != nil {
		return err
	}
	experts := expert.NewMemoryStore(builtIns)

	db, err := storage.Open(logg, cfg.Store)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	embedder := buildEmbedder(logg, cfg.Embedding)
	index := buildIndex(ctx, logg, cfg.Vector)

	retriever := retrieval.NewRetriever(logg, embedder, index, retrieval.Options{
		TopK:    cfg.Vector.TopK,
		Timeout: cfg.Vector.Timeout,
	})
	ingestor := ingest.NewIngestor(logg, embedder, index, ingest.Options{
		ChunkSize:    cfg.Ingest.ChunkSize,
		ChunkOverlap: cfg.Ingest.ChunkOverlap,
		BatchSize:    cfg.Ingest.BatchSize,
	})

	catalogSvc := catalog.NewService(logg, experts, storage.NewExpertRepo(db, logg), ingestor)
	if err := catalogSvc.Load(ctx); err != nil {
		return err
	}

	var completer rag.Completer
	if cfg.AI.Enabled() {
		aiSvc, err := ai.NewService(ctx, logg, cfg.AI)
		if err != nil {
			logg.Warn("failed to initialize AI service, chat will report errors", "error", err)
		} else {
			completer = aiSvc
			logg.Info("AI service initialized", "provider", cfg.AI.Provider, "model", aiSvc.ModelName())
		}
	} else {
		logg.Warn("LLM credentials missing, skipping AI initialization")
	}

	pipeline := rag.NewPipeline(logg, experts, retriever, completer)
	fanOut := chat.NewService(logg, pipeline)

	sessions, closeSessions, err := buildSessionStore(ctx, logg, cfg.Session)
	if err != nil {
		return err
	}
	defer closeSessions()
	authSvc, err := auth.NewService(logg, cfg.Auth, sessions)
	if err != nil {
		return err
	}

	router := handler.NewRouter(logg, handler.Deps{
		Pipeline:       pipeline,
		FanOut:         fanOut,
		Catalog:        catalogSvc,
		Auth:           authSvc,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	logg.Info("podcast chatbot backend listening", "addr", cfg.Server.Addr, "experts", len(experts.List()))
	return runServer(ctx, srv)
}

// buildEmbedder returns nil when embeddings are not configured. A nil
// embedder makes retrieval return no context and ingestion report unavailable.
func buildEmbedder(logg *logger.Logger, cfg config.EmbeddingConfig) embedding.Embedder {
	if !cfg.Enabled() {
		logg.Warn("embeddings not configured, answers will use no retrieved context")
		return nil
	}
	emb, err := embedclient.NewOpenAIEmbedder(embedclient.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
	})
	if err != nil {
		logg.Warn("failed to initialize embedder", "error", err)
		return nil
	}
	return emb
}

func buildIndex(ctx context.Context, logg *logger.Logger, cfg config.VectorConfig) retrieval.Index {
	if cfg.Backend == config.VectorMemory {
		logg.Info("using in-memory vector index")
		return retrieval.NewMemoryIndex()
	}

	pc, err := pinecone.New(logg, pinecone.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		logg.Warn("pinecone not configured, retrieval disabled", "error", err)
		return nil
	}
	idx, err := retrieval.NewPineconeIndex(ctx, logg, pc, cfg.IndexName, cfg.IndexHost)
	if err != nil {
		logg.Warn("failed to resolve pinecone index, retrieval disabled", "error", err)
		return nil
	}
	return idx
}

func buildSessionStore(ctx context.Context, logg *logger.Logger, cfg config.SessionConfig) (auth.SessionStore, func(), error) {
	if cfg.Backend != config.SessionRedis {
		return auth.NewMemorySessionStore(), func() {}, nil
	}
	store, err := auth.NewRedisSessionStore(ctx, logg, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect session store: %w", err)
	}
	return store, func() { _ = store.Close() }, nil
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
