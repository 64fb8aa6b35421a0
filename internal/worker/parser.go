package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/maraichr/docstream/internal/messaging"
	"github.com/maraichr/docstream/internal/model"
	"github.com/maraichr/docstream/internal/status"
)

// Parser downloads a document's blob, extracts its text and stores it,
// then announces document.parsed.
type Parser struct {
	docs    DocumentStore
	blobs   BlobStore
	tracker StatusTracker
	broker  Broker
	logger  *slog.Logger
}

func NewParser(docs DocumentStore, blobs BlobStore, tracker StatusTracker, broker Broker, logger *slog.Logger) *Parser {
	return &Parser{docs: docs, blobs: blobs, tracker: tracker, broker: broker, logger: logger}
}

func (p *Parser) Runtime(maxAttempts int, deadLetterKey string) *Runtime {
	return NewRuntime(Options{
		Role:          "parser",
		Queue:         QueueName("parser"),
		BindingKey:    messaging.KeyDocumentUploaded,
		MaxAttempts:   maxAttempts,
		DeadLetterKey: deadLetterKey,
	}, p.broker, p.Process, p.logger)
}

func (p *Parser) Process(ctx context.Context, body []byte) (Outcome, error) {
	var event messaging.DocumentEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return OutcomeDrop, fmt.Errorf("decode document event: %w", err)
	}
	if event.DocumentID == uuid.Nil {
		return OutcomeDrop, fmt.Errorf("document event missing document_id")
	}

	if _, err := p.tracker.UpdateDocumentStatus(ctx, event.DocumentID, status.DocumentPatch{
		Status: model.DocumentStatusParsing,
	}); err != nil {
		return OutcomeRetry, err
	}

	storageKey := event.StorageKey
	if storageKey == "" {
		doc, err := p.docs.GetDocument(ctx, event.DocumentID)
		if err != nil {
			markDocumentFailed(ctx, p.tracker, p.logger, event.DocumentID, err)
			return OutcomeRetry, fmt.Errorf("load document: %w", err)
		}
		storageKey = doc.StorageKey
	}

	raw, err := p.blobs.ReadAll(ctx, storageKey)
	if err != nil {
		markDocumentFailed(ctx, p.tracker, p.logger, event.DocumentID, err)
		return OutcomeRetry, fmt.Errorf("download %s: %w", storageKey, err)
	}

	text, err := extractText(raw)
	if err != nil {
		markDocumentFailed(ctx, p.tracker, p.logger, event.DocumentID, err)
		return OutcomeDrop, fmt.Errorf("extract text from %s: %w", event.Filename, err)
	}

	if err := p.docs.SetDocumentText(ctx, event.DocumentID, text); err != nil {
		markDocumentFailed(ctx, p.tracker, p.logger, event.DocumentID, err)
		return OutcomeRetry, fmt.Errorf("store document text: %w", err)
	}

	next := event
	next.StorageKey = storageKey
	if err := p.broker.Publish(ctx, messaging.KeyDocumentParsed, next); err != nil {
		return OutcomeRetry, fmt.Errorf("publish document.parsed: %w", err)
	}

	p.logger.Info("document parsed",
		slog.String("document_id", event.DocumentID.String()),
		slog.Int("bytes", len(raw)))
	return OutcomeOK, nil
}

// extractText interprets the blob as UTF-8 text. Binary uploads are
// rejected rather than silently mangled; a BOM is stripped.
func extractText(raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("empty document")
	}
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("content is not valid UTF-8 text")
	}
	text := strings.TrimPrefix(string(raw), "\ufeff")
	if strings.ContainsRune(text, 0) {
		return "", fmt.Errorf("content contains NUL bytes")
	}
	return text, nil
}
