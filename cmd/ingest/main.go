// ingest uploads a local file into object storage, registers the document
// and publishes document.uploaded to start the pipeline.
// Run from project root: go run ./cmd/ingest -workspace <uuid> -file notes.txt
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/maraichr/docstream/internal/config"
	"github.com/maraichr/docstream/internal/messaging"
	"github.com/maraichr/docstream/internal/model"
	minioclient "github.com/maraichr/docstream/internal/store/minio"
	"github.com/maraichr/docstream/internal/store/postgres"
)

func main() {
	workspaceFlag := flag.String("workspace", "", "workspace id (required)")
	userFlag := flag.String("user", "", "user id (optional)")
	fileFlag := flag.String("file", "", "path to the file to ingest (required)")
	flag.Parse()

	_ = godotenv.Load(".env") // ignore error if .env missing

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if *workspaceFlag == "" || *fileFlag == "" {
		flag.Usage()
		os.Exit(2)
	}
	workspaceID, err := uuid.Parse(*workspaceFlag)
	if err != nil {
		logger.Error("invalid workspace id", slog.String("error", err.Error()))
		os.Exit(2)
	}
	userID := uuid.Nil
	if *userFlag != "" {
		if userID, err = uuid.Parse(*userFlag); err != nil {
			logger.Error("invalid user id", slog.String("error", err.Error()))
			os.Exit(2)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, cfg.Database.MinConns)
	if err != nil {
		logger.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()
	store := postgres.New(pool)

	blobs, err := minioclient.NewClient(cfg.MinIO)
	if err != nil {
		logger.Error("failed to create minio client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := blobs.EnsureBucket(ctx); err != nil {
		logger.Error("failed to ensure bucket", slog.String("error", err.Error()))
		os.Exit(1)
	}

	broker := messaging.NewClient(cfg.Rabbit, logger)
	if err := broker.Connect(1); err != nil {
		logger.Error("failed to connect to broker", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer broker.Stop()

	f, err := os.Open(*fileFlag)
	if err != nil {
		logger.Error("failed to open file", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		logger.Error("failed to stat file", slog.String("error", err.Error()))
		os.Exit(1)
	}

	docID := uuid.New()
	filename := filepath.Base(*fileFlag)
	storageKey := fmt.Sprintf("%s/%s/%s", workspaceID, docID, filename)

	if err := blobs.Upload(ctx, storageKey, f, info.Size()); err != nil {
		logger.Error("upload failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	doc := &model.Document{
		ID:          docID,
		WorkspaceID: workspaceID,
		UserID:      userID,
		Filename:    filename,
		StorageKey:  storageKey,
		Status:      model.DocumentStatusPending,
	}
	if err := store.CreateDocument(ctx, doc); err != nil {
		logger.Error("failed to register document", slog.String("error", err.Error()))
		os.Exit(1)
	}

	event := messaging.DocumentEvent{
		DocumentID:  docID,
		WorkspaceID: workspaceID,
		UserID:      userID,
		Filename:    filename,
		StorageKey:  storageKey,
	}
	if err := broker.Publish(ctx, messaging.KeyDocumentUploaded, event); err != nil {
		logger.Error("failed to publish document.uploaded", slog.String("error", err.Error()))
		os.Exit(1)
	}

	fmt.Printf("document %s queued (%d bytes as %s)\n", docID, info.Size(), storageKey)
}
