package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/maraichr/docstream/internal/messaging"
	"github.com/maraichr/docstream/internal/model"
	"github.com/maraichr/docstream/internal/status"
)

const inputTypeDocument = "search_document"

// EmbedWorker embeds a document's chunks and stores the vectors, then
// announces document.embedded.
type EmbedWorker struct {
	docs     DocumentStore
	vectors  VectorStore
	embedder Embedder
	tracker  StatusTracker
	broker   Broker
	logger   *slog.Logger
}

func NewEmbedWorker(docs DocumentStore, vectors VectorStore, embedder Embedder, tracker StatusTracker, broker Broker, logger *slog.Logger) *EmbedWorker {
	return &EmbedWorker{docs: docs, vectors: vectors, embedder: embedder, tracker: tracker, broker: broker, logger: logger}
}

func (w *EmbedWorker) Runtime(maxAttempts int, deadLetterKey string) *Runtime {
	return NewRuntime(Options{
		Role:          "embedder",
		Queue:         QueueName("embedder"),
		BindingKey:    messaging.KeyDocumentChunked,
		MaxAttempts:   maxAttempts,
		DeadLetterKey: deadLetterKey,
	}, w.broker, w.Process, w.logger)
}

func (w *EmbedWorker) Process(ctx context.Context, body []byte) (Outcome, error) {
	var event messaging.DocumentEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return OutcomeDrop, fmt.Errorf("decode document event: %w", err)
	}
	if event.DocumentID == uuid.Nil {
		return OutcomeDrop, fmt.Errorf("document event missing document_id")
	}

	if _, err := w.tracker.UpdateDocumentStatus(ctx, event.DocumentID, status.DocumentPatch{
		Status: model.DocumentStatusEmbedding,
	}); err != nil {
		return OutcomeRetry, err
	}

	chunks, err := w.docs.ListChunks(ctx, event.DocumentID)
	if err != nil {
		markDocumentFailed(ctx, w.tracker, w.logger, event.DocumentID, err)
		return OutcomeRetry, fmt.Errorf("load chunks: %w", err)
	}

	if len(chunks) > 0 {
		texts := make([]string, len(chunks))
		ids := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
			ids[i] = c.ID
		}

		embeddings, err := w.embedder.EmbedBatch(ctx, texts, inputTypeDocument)
		if err != nil {
			markDocumentFailed(ctx, w.tracker, w.logger, event.DocumentID, err)
			return OutcomeRetry, fmt.Errorf("embed %d chunks: %w", len(texts), err)
		}
		if len(embeddings) != len(chunks) {
			err := fmt.Errorf("embedder returned %d vectors for %d chunks", len(embeddings), len(chunks))
			markDocumentFailed(ctx, w.tracker, w.logger, event.DocumentID, err)
			return OutcomeDrop, err
		}

		vectors := make([]pgvector.Vector, len(embeddings))
		for i, e := range embeddings {
			vectors[i] = pgvector.NewVector(e)
		}
		if err := w.vectors.UpsertChunkEmbeddings(ctx, event.WorkspaceID, ids, vectors, w.embedder.ModelID()); err != nil {
			markDocumentFailed(ctx, w.tracker, w.logger, event.DocumentID, err)
			return OutcomeRetry, fmt.Errorf("store embeddings: %w", err)
		}
	}

	if err := w.broker.Publish(ctx, messaging.KeyDocumentEmbedded, event); err != nil {
		return OutcomeRetry, fmt.Errorf("publish document.embedded: %w", err)
	}

	w.logger.Info("document embedded",
		slog.String("document_id", event.DocumentID.String()),
		slog.Int("chunks", len(chunks)))
	return OutcomeOK, nil
}
