package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/maraichr/docstream/internal/extract"
	"github.com/maraichr/docstream/internal/messaging"
	"github.com/maraichr/docstream/internal/model"
	"github.com/maraichr/docstream/internal/status"
)

// The graph pipeline workers share a decode-and-validate preamble; the
// extraction algorithm behind each is injected, so a worker is mostly the
// glue between its event, the extractor and the graph store.

func decodeDocumentEvent(body []byte) (messaging.DocumentEvent, Outcome, error) {
	var event messaging.DocumentEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return event, OutcomeDrop, fmt.Errorf("decode document event: %w", err)
	}
	if event.DocumentID == uuid.Nil {
		return event, OutcomeDrop, fmt.Errorf("document event missing document_id")
	}
	return event, OutcomeOK, nil
}

// EntityWorker extracts entities from a document's chunks into the graph
// store and announces document.entities_extracted.
type EntityWorker struct {
	docs      DocumentStore
	graph     GraphStore
	extractor extract.EntityExtractor
	tracker   StatusTracker
	broker    Broker
	logger    *slog.Logger
}

func NewEntityWorker(docs DocumentStore, graph GraphStore, extractor extract.EntityExtractor, tracker StatusTracker, broker Broker, logger *slog.Logger) *EntityWorker {
	return &EntityWorker{docs: docs, graph: graph, extractor: extractor, tracker: tracker, broker: broker, logger: logger}
}

func (w *EntityWorker) Runtime(maxAttempts int, deadLetterKey string) *Runtime {
	return NewRuntime(Options{
		Role:          "entity_extractor",
		Queue:         QueueName("entity_extractor"),
		BindingKey:    messaging.KeyDocumentChunked,
		MaxAttempts:   maxAttempts,
		DeadLetterKey: deadLetterKey,
	}, w.broker, w.Process, w.logger)
}

func (w *EntityWorker) Process(ctx context.Context, body []byte) (Outcome, error) {
	event, outcome, err := decodeDocumentEvent(body)
	if err != nil {
		return outcome, err
	}

	chunks, err := w.docs.ListChunks(ctx, event.DocumentID)
	if err != nil {
		markDocumentFailed(ctx, w.tracker, w.logger, event.DocumentID, err)
		return OutcomeRetry, fmt.Errorf("load chunks: %w", err)
	}

	entities, err := w.extractor.ExtractEntities(ctx, chunks)
	if err != nil {
		markDocumentFailed(ctx, w.tracker, w.logger, event.DocumentID, err)
		return OutcomeRetry, fmt.Errorf("extract entities: %w", err)
	}

	if len(entities) > 0 {
		if err := w.graph.UpsertEntities(ctx, event.WorkspaceID, entities); err != nil {
			markDocumentFailed(ctx, w.tracker, w.logger, event.DocumentID, err)
			return OutcomeRetry, fmt.Errorf("store entities: %w", err)
		}
	}

	if err := w.broker.Publish(ctx, messaging.KeyDocumentEntitiesExtracted, event); err != nil {
		return OutcomeRetry, fmt.Errorf("publish document.entities_extracted: %w", err)
	}

	w.logger.Info("entities extracted",
		slog.String("document_id", event.DocumentID.String()),
		slog.Int("entities", len(entities)))
	return OutcomeOK, nil
}

// RelationshipWorker extracts typed edges between the entities already
// found in a document and announces document.relationships_extracted.
// Entities are re-derived from the chunks; the extractors are expected to
// be deterministic over the same input.
type RelationshipWorker struct {
	docs      DocumentStore
	graph     GraphStore
	entities  extract.EntityExtractor
	extractor extract.RelationshipExtractor
	tracker   StatusTracker
	broker    Broker
	logger    *slog.Logger
}

func NewRelationshipWorker(docs DocumentStore, graph GraphStore, entities extract.EntityExtractor, extractor extract.RelationshipExtractor, tracker StatusTracker, broker Broker, logger *slog.Logger) *RelationshipWorker {
	return &RelationshipWorker{docs: docs, graph: graph, entities: entities, extractor: extractor, tracker: tracker, broker: broker, logger: logger}
}

func (w *RelationshipWorker) Runtime(maxAttempts int, deadLetterKey string) *Runtime {
	return NewRuntime(Options{
		Role:          "relationship_extractor",
		Queue:         QueueName("relationship_extractor"),
		BindingKey:    messaging.KeyDocumentEntitiesExtracted,
		MaxAttempts:   maxAttempts,
		DeadLetterKey: deadLetterKey,
	}, w.broker, w.Process, w.logger)
}

func (w *RelationshipWorker) Process(ctx context.Context, body []byte) (Outcome, error) {
	event, outcome, err := decodeDocumentEvent(body)
	if err != nil {
		return outcome, err
	}

	chunks, err := w.docs.ListChunks(ctx, event.DocumentID)
	if err != nil {
		markDocumentFailed(ctx, w.tracker, w.logger, event.DocumentID, err)
		return OutcomeRetry, fmt.Errorf("load chunks: %w", err)
	}

	entities, err := w.entities.ExtractEntities(ctx, chunks)
	if err != nil {
		markDocumentFailed(ctx, w.tracker, w.logger, event.DocumentID, err)
		return OutcomeRetry, fmt.Errorf("extract entities: %w", err)
	}

	relationships, err := w.extractor.ExtractRelationships(ctx, chunks, entities)
	if err != nil {
		markDocumentFailed(ctx, w.tracker, w.logger, event.DocumentID, err)
		return OutcomeRetry, fmt.Errorf("extract relationships: %w", err)
	}

	if len(relationships) > 0 {
		if err := w.graph.UpsertRelationships(ctx, relationships); err != nil {
			markDocumentFailed(ctx, w.tracker, w.logger, event.DocumentID, err)
			return OutcomeRetry, fmt.Errorf("store relationships: %w", err)
		}
	}

	if err := w.broker.Publish(ctx, messaging.KeyDocumentRelationshipsExtracted, event); err != nil {
		return OutcomeRetry, fmt.Errorf("publish document.relationships_extracted: %w", err)
	}

	w.logger.Info("relationships extracted",
		slog.String("document_id", event.DocumentID.String()),
		slog.Int("relationships", len(relationships)))
	return OutcomeOK, nil
}

// CommunityWorker clusters a document's entities into communities and
// announces document.communities_detected.
type CommunityWorker struct {
	docs          DocumentStore
	graph         GraphStore
	entities      extract.EntityExtractor
	relationships extract.RelationshipExtractor
	detector      extract.CommunityDetector
	tracker       StatusTracker
	broker        Broker
	logger        *slog.Logger
}

func NewCommunityWorker(docs DocumentStore, graph GraphStore, entities extract.EntityExtractor, relationships extract.RelationshipExtractor, detector extract.CommunityDetector, tracker StatusTracker, broker Broker, logger *slog.Logger) *CommunityWorker {
	return &CommunityWorker{docs: docs, graph: graph, entities: entities, relationships: relationships, detector: detector, tracker: tracker, broker: broker, logger: logger}
}

func (w *CommunityWorker) Runtime(maxAttempts int, deadLetterKey string) *Runtime {
	return NewRuntime(Options{
		Role:          "community_detector",
		Queue:         QueueName("community_detector"),
		BindingKey:    messaging.KeyDocumentRelationshipsExtracted,
		MaxAttempts:   maxAttempts,
		DeadLetterKey: deadLetterKey,
	}, w.broker, w.Process, w.logger)
}

func (w *CommunityWorker) Process(ctx context.Context, body []byte) (Outcome, error) {
	event, outcome, err := decodeDocumentEvent(body)
	if err != nil {
		return outcome, err
	}

	chunks, err := w.docs.ListChunks(ctx, event.DocumentID)
	if err != nil {
		markDocumentFailed(ctx, w.tracker, w.logger, event.DocumentID, err)
		return OutcomeRetry, fmt.Errorf("load chunks: %w", err)
	}

	entities, err := w.entities.ExtractEntities(ctx, chunks)
	if err != nil {
		markDocumentFailed(ctx, w.tracker, w.logger, event.DocumentID, err)
		return OutcomeRetry, fmt.Errorf("extract entities: %w", err)
	}

	relationships, err := w.relationships.ExtractRelationships(ctx, chunks, entities)
	if err != nil {
		markDocumentFailed(ctx, w.tracker, w.logger, event.DocumentID, err)
		return OutcomeRetry, fmt.Errorf("extract relationships: %w", err)
	}

	communities, err := w.detector.DetectCommunities(ctx, entities, relationships)
	if err != nil {
		markDocumentFailed(ctx, w.tracker, w.logger, event.DocumentID, err)
		return OutcomeRetry, fmt.Errorf("detect communities: %w", err)
	}

	if len(communities) > 0 {
		if err := w.graph.UpsertCommunities(ctx, event.WorkspaceID, communities); err != nil {
			markDocumentFailed(ctx, w.tracker, w.logger, event.DocumentID, err)
			return OutcomeRetry, fmt.Errorf("store communities: %w", err)
		}
	}

	if err := w.broker.Publish(ctx, messaging.KeyDocumentCommunitiesDetected, event); err != nil {
		return OutcomeRetry, fmt.Errorf("publish document.communities_detected: %w", err)
	}

	w.logger.Info("communities detected",
		slog.String("document_id", event.DocumentID.String()),
		slog.Int("communities", len(communities)))
	return OutcomeOK, nil
}

// GraphBuildWorker is the terminal stage of the graph pipeline. It links
// the document node to its workspace, marks the document ready and
// announces document.indexed.
type GraphBuildWorker struct {
	graph   GraphStore
	tracker StatusTracker
	broker  Broker
	logger  *slog.Logger
}

func NewGraphBuildWorker(graph GraphStore, tracker StatusTracker, broker Broker, logger *slog.Logger) *GraphBuildWorker {
	return &GraphBuildWorker{graph: graph, tracker: tracker, broker: broker, logger: logger}
}

func (w *GraphBuildWorker) Runtime(maxAttempts int, deadLetterKey string) *Runtime {
	return NewRuntime(Options{
		Role:          "graph_builder",
		Queue:         QueueName("graph_builder"),
		BindingKey:    messaging.KeyDocumentCommunitiesDetected,
		MaxAttempts:   maxAttempts,
		DeadLetterKey: deadLetterKey,
	}, w.broker, w.Process, w.logger)
}

func (w *GraphBuildWorker) Process(ctx context.Context, body []byte) (Outcome, error) {
	event, outcome, err := decodeDocumentEvent(body)
	if err != nil {
		return outcome, err
	}

	if _, err := w.tracker.UpdateDocumentStatus(ctx, event.DocumentID, status.DocumentPatch{
		Status: model.DocumentStatusIndexing,
	}); err != nil {
		return OutcomeRetry, err
	}

	if err := w.graph.LinkDocument(ctx, event.WorkspaceID, event.DocumentID, event.Filename); err != nil {
		markDocumentFailed(ctx, w.tracker, w.logger, event.DocumentID, err)
		return OutcomeRetry, fmt.Errorf("link document node: %w", err)
	}

	if _, err := w.tracker.UpdateDocumentStatus(ctx, event.DocumentID, status.DocumentPatch{
		Status: model.DocumentStatusReady,
	}); err != nil {
		return OutcomeRetry, err
	}

	if err := w.broker.Publish(ctx, messaging.KeyDocumentIndexed, event); err != nil {
		return OutcomeRetry, fmt.Errorf("publish document.indexed: %w", err)
	}

	w.logger.Info("graph build complete", slog.String("document_id", event.DocumentID.String()))
	return OutcomeOK, nil
}
