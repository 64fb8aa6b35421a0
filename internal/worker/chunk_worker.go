package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/maraichr/docstream/internal/chunker"
	"github.com/maraichr/docstream/internal/messaging"
	"github.com/maraichr/docstream/internal/model"
	"github.com/maraichr/docstream/internal/status"
)

// ChunkWorker splits a parsed document into sentence-bounded chunks,
// replaces the document's stored chunk set and announces document.chunked.
type ChunkWorker struct {
	docs    DocumentStore
	chunker chunker.Chunker
	tracker StatusTracker
	broker  Broker
	logger  *slog.Logger
}

func NewChunkWorker(docs DocumentStore, ch chunker.Chunker, tracker StatusTracker, broker Broker, logger *slog.Logger) *ChunkWorker {
	return &ChunkWorker{docs: docs, chunker: ch, tracker: tracker, broker: broker, logger: logger}
}

func (w *ChunkWorker) Runtime(maxAttempts int, deadLetterKey string) *Runtime {
	return NewRuntime(Options{
		Role:          "chunker",
		Queue:         QueueName("chunker"),
		BindingKey:    messaging.KeyDocumentParsed,
		MaxAttempts:   maxAttempts,
		DeadLetterKey: deadLetterKey,
	}, w.broker, w.Process, w.logger)
}

func (w *ChunkWorker) Process(ctx context.Context, body []byte) (Outcome, error) {
	var event messaging.DocumentEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return OutcomeDrop, fmt.Errorf("decode document event: %w", err)
	}
	if event.DocumentID == uuid.Nil {
		return OutcomeDrop, fmt.Errorf("document event missing document_id")
	}

	if _, err := w.tracker.UpdateDocumentStatus(ctx, event.DocumentID, status.DocumentPatch{
		Status: model.DocumentStatusChunking,
	}); err != nil {
		return OutcomeRetry, err
	}

	text, err := w.docs.GetDocumentText(ctx, event.DocumentID)
	if err != nil {
		markDocumentFailed(ctx, w.tracker, w.logger, event.DocumentID, err)
		return OutcomeRetry, fmt.Errorf("load document text: %w", err)
	}

	chunks := w.chunker.Chunk(&model.Document{ID: event.DocumentID, Text: text})
	if err := w.docs.ReplaceChunks(ctx, event.DocumentID, chunks); err != nil {
		markDocumentFailed(ctx, w.tracker, w.logger, event.DocumentID, err)
		return OutcomeRetry, fmt.Errorf("store chunks: %w", err)
	}

	count := len(chunks)
	if _, err := w.tracker.UpdateDocumentStatus(ctx, event.DocumentID, status.DocumentPatch{
		Status:     model.DocumentStatusChunking,
		ChunkCount: &count,
	}); err != nil {
		return OutcomeRetry, err
	}

	next := event
	next.ChunkCount = count
	if err := w.broker.Publish(ctx, messaging.KeyDocumentChunked, next); err != nil {
		return OutcomeRetry, fmt.Errorf("publish document.chunked: %w", err)
	}

	w.logger.Info("document chunked",
		slog.String("document_id", event.DocumentID.String()),
		slog.Int("chunks", count))
	return OutcomeOK, nil
}
