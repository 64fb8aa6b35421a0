package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/maraichr/docstream/internal/chunker"
	"github.com/maraichr/docstream/internal/config"
	"github.com/maraichr/docstream/internal/embedding"
	"github.com/maraichr/docstream/internal/extract"
	"github.com/maraichr/docstream/internal/graph"
	"github.com/maraichr/docstream/internal/llm"
	"github.com/maraichr/docstream/internal/messaging"
	"github.com/maraichr/docstream/internal/model"
	"github.com/maraichr/docstream/internal/status"
	minioclient "github.com/maraichr/docstream/internal/store/minio"
	"github.com/maraichr/docstream/internal/store/postgres"
	vk "github.com/maraichr/docstream/internal/store/valkey"
	"github.com/maraichr/docstream/internal/worker"
)

func main() {
	_ = godotenv.Load(".env") // ignore error if .env missing

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	systemType := model.SystemType(cfg.Worker.SystemType)

	// Database
	pool, err := postgres.NewPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, cfg.Database.MinConns)
	if err != nil {
		logger.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("connected to database")

	store := postgres.New(pool)

	// Object storage
	blobs, err := minioclient.NewClient(cfg.MinIO)
	if err != nil {
		logger.Error("failed to create minio client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := blobs.EnsureBucket(ctx); err != nil {
		logger.Error("failed to ensure bucket", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("connected to object storage", slog.String("bucket", blobs.Bucket()))

	// Message broker
	broker := messaging.NewClient(cfg.Rabbit, logger)
	if err := broker.Connect(cfg.Worker.Concurrency); err != nil {
		logger.Error("failed to connect to broker", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer broker.Stop()
	logger.Info("connected to broker", slog.String("exchange", cfg.Rabbit.Exchange))

	// Graph store, only for graph-backed workspaces
	var graphStore worker.GraphStore
	var graphClient *graph.Client
	if systemType == model.SystemTypeGraph {
		graphClient, err = graph.NewClient(cfg.Neo4j)
		if err != nil {
			logger.Error("failed to connect to neo4j", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer graphClient.Close(ctx)
		if err := graphClient.Verify(ctx); err != nil {
			logger.Error("neo4j connectivity check failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		graphStore = graphClient
		logger.Info("connected to graph store")
	}

	// Retrieval cache, best-effort
	var cache worker.RetrievalCache
	if vkClient, err := vk.NewClient(cfg.Valkey); err != nil {
		logger.Warn("valkey unavailable, retrieval caching disabled", slog.String("error", err.Error()))
	} else {
		defer vkClient.Close()
		cache = vk.NewRetrievalCache(vkClient, cfg.Worker.CacheTTL)
		logger.Info("retrieval cache enabled")
	}

	embedder, err := embedding.NewEmbedder(cfg)
	if err != nil {
		logger.Error("failed to create embedder", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if embedder == nil {
		logger.Error("no embedding provider configured")
		os.Exit(1)
	}
	logger.Info("embedder ready", slog.String("model", embedder.ModelID()))

	completer := llm.NewClient(cfg.LLM)

	tracker := status.NewTracker(store, broker, logger)
	sentences := chunker.New(cfg.Chunking.ChunkSize, cfg.Chunking.Overlap)

	maxAttempts := cfg.Worker.MaxAttempts
	deadLetter := cfg.Worker.DeadLetterKey

	runtimes := []*worker.Runtime{
		worker.NewParser(store, blobs, tracker, broker, logger).Runtime(maxAttempts, deadLetter),
		worker.NewChunkWorker(store, sentences, tracker, broker, logger).Runtime(maxAttempts, deadLetter),
		worker.NewRetrievalWorker(store, embedder, cache, broker, logger).Runtime(maxAttempts, deadLetter),
		worker.NewProvisionWorker(store, graphStore, tracker, broker, logger).Runtime(maxAttempts, deadLetter),
		worker.NewDeletionWorker(store, graphStore, tracker, broker, logger).Runtime(maxAttempts, deadLetter),
	}

	switch systemType {
	case model.SystemTypeGraph:
		extractors := extract.Noop{}
		runtimes = append(runtimes,
			worker.NewEntityWorker(store, graphStore, extractors, tracker, broker, logger).Runtime(maxAttempts, deadLetter),
			worker.NewRelationshipWorker(store, graphStore, extractors, extractors, tracker, broker, logger).Runtime(maxAttempts, deadLetter),
			worker.NewCommunityWorker(store, graphStore, extractors, extractors, extractors, tracker, broker, logger).Runtime(maxAttempts, deadLetter),
			worker.NewGraphBuildWorker(graphStore, tracker, broker, logger).Runtime(maxAttempts, deadLetter),
		)
	default:
		runtimes = append(runtimes,
			worker.NewEmbedWorker(store, store, embedder, tracker, broker, logger).Runtime(maxAttempts, deadLetter),
			worker.NewIndexWorker(store, tracker, broker, logger).Runtime(maxAttempts, deadLetter),
		)
	}

	if completer != nil {
		runtimes = append(runtimes,
			worker.NewGenerationWorker(completer, broker, logger).Runtime(maxAttempts, deadLetter))
	} else {
		logger.Warn("no LLM configured, generation disabled")
	}

	for _, rt := range runtimes {
		if err := rt.Setup(); err != nil {
			logger.Error("queue setup failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	var wg sync.WaitGroup
	for _, rt := range runtimes {
		wg.Add(1)
		go func(rt *worker.Runtime) {
			defer wg.Done()
			if err := rt.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("worker stopped",
					slog.String("worker", rt.Role()),
					slog.String("error", err.Error()))
			}
		}(rt)
	}

	logger.Info("workers running",
		slog.String("system_type", string(systemType)),
		slog.Int("workers", len(runtimes)))

	<-ctx.Done()
	logger.Info("shutting down")
	wg.Wait()
	logger.Info("shutdown complete")
}
