package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/maraichr/docstream/internal/messaging"
	"github.com/maraichr/docstream/internal/model"
	"github.com/maraichr/docstream/internal/status"
)

// IndexWorker is the terminal stage of the vector pipeline. It makes sure
// the similarity index exists, marks the document ready and announces
// document.indexed.
type IndexWorker struct {
	vectors VectorStore
	tracker StatusTracker
	broker  Broker
	logger  *slog.Logger
}

func NewIndexWorker(vectors VectorStore, tracker StatusTracker, broker Broker, logger *slog.Logger) *IndexWorker {
	return &IndexWorker{vectors: vectors, tracker: tracker, broker: broker, logger: logger}
}

func (w *IndexWorker) Runtime(maxAttempts int, deadLetterKey string) *Runtime {
	return NewRuntime(Options{
		Role:          "indexer",
		Queue:         QueueName("indexer"),
		BindingKey:    messaging.KeyDocumentEmbedded,
		MaxAttempts:   maxAttempts,
		DeadLetterKey: deadLetterKey,
	}, w.broker, w.Process, w.logger)
}

func (w *IndexWorker) Process(ctx context.Context, body []byte) (Outcome, error) {
	var event messaging.DocumentEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return OutcomeDrop, fmt.Errorf("decode document event: %w", err)
	}
	if event.DocumentID == uuid.Nil {
		return OutcomeDrop, fmt.Errorf("document event missing document_id")
	}

	if _, err := w.tracker.UpdateDocumentStatus(ctx, event.DocumentID, status.DocumentPatch{
		Status: model.DocumentStatusIndexing,
	}); err != nil {
		return OutcomeRetry, err
	}

	if err := w.vectors.EnsureVectorIndex(ctx); err != nil {
		markDocumentFailed(ctx, w.tracker, w.logger, event.DocumentID, err)
		return OutcomeRetry, fmt.Errorf("ensure vector index: %w", err)
	}

	if _, err := w.tracker.UpdateDocumentStatus(ctx, event.DocumentID, status.DocumentPatch{
		Status: model.DocumentStatusReady,
	}); err != nil {
		return OutcomeRetry, err
	}

	if err := w.broker.Publish(ctx, messaging.KeyDocumentIndexed, event); err != nil {
		return OutcomeRetry, fmt.Errorf("publish document.indexed: %w", err)
	}

	w.logger.Info("document indexed", slog.String("document_id", event.DocumentID.String()))
	return OutcomeOK, nil
}
