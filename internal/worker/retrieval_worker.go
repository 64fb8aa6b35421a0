package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/maraichr/docstream/internal/messaging"
)

const (
	inputTypeQuery = "search_query"
	defaultTopK    = 5
	maxTopK        = 50
)

// RetrievalCache is the query-result cache contract. The valkey cache
// satisfies it; a nil cache disables caching.
type RetrievalCache interface {
	Get(ctx context.Context, workspaceID uuid.UUID, query string, topK int) ([]byte, bool, error)
	Set(ctx context.Context, workspaceID uuid.UUID, query string, topK int, body []byte) error
}

// RetrievalWorker serves retrieval.request: embed the query, run a
// workspace-scoped similarity search and publish retrieval.response. A
// request that cannot be served publishes retrieval.failed instead of
// being redelivered; the requester owns the decision to try again.
type RetrievalWorker struct {
	vectors  VectorStore
	embedder Embedder
	cache    RetrievalCache
	broker   Broker
	logger   *slog.Logger
}

func NewRetrievalWorker(vectors VectorStore, embedder Embedder, cache RetrievalCache, broker Broker, logger *slog.Logger) *RetrievalWorker {
	return &RetrievalWorker{vectors: vectors, embedder: embedder, cache: cache, broker: broker, logger: logger}
}

func (w *RetrievalWorker) Runtime(maxAttempts int, deadLetterKey string) *Runtime {
	return NewRuntime(Options{
		Role:          "retriever",
		Queue:         QueueName("retriever"),
		BindingKey:    messaging.KeyRetrievalRequest,
		MaxAttempts:   maxAttempts,
		DeadLetterKey: deadLetterKey,
	}, w.broker, w.Process, w.logger)
}

func (w *RetrievalWorker) Process(ctx context.Context, body []byte) (Outcome, error) {
	var req messaging.RetrievalRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return OutcomeDrop, fmt.Errorf("decode retrieval request: %w", err)
	}
	if req.RequestID == uuid.Nil || req.Query == "" {
		return OutcomeDrop, fmt.Errorf("retrieval request missing request_id or query")
	}

	topK := req.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	if topK > maxTopK {
		topK = maxTopK
	}

	if w.cache != nil {
		cached, hit, err := w.cache.Get(ctx, req.WorkspaceID, req.Query, topK)
		if err != nil {
			w.logger.Warn("retrieval cache read failed", slog.String("error", err.Error()))
		} else if hit {
			var resp messaging.RetrievalResponse
			if err := json.Unmarshal(cached, &resp); err == nil {
				resp.RequestID = req.RequestID
				resp.UserID = req.UserID
				resp.Cached = true
				if err := w.broker.Publish(ctx, messaging.KeyRetrievalResponse, resp); err != nil {
					return OutcomeRetry, fmt.Errorf("publish retrieval.response: %w", err)
				}
				w.logger.Info("retrieval served from cache",
					slog.String("request_id", req.RequestID.String()))
				return OutcomeOK, nil
			}
			w.logger.Warn("discarding undecodable cache entry",
				slog.String("workspace_id", req.WorkspaceID.String()))
		}
	}

	embeddings, err := w.embedder.EmbedBatch(ctx, []string{req.Query}, inputTypeQuery)
	if err != nil || len(embeddings) != 1 {
		if err == nil {
			err = fmt.Errorf("embedder returned %d vectors for one query", len(embeddings))
		}
		return w.fail(ctx, req, fmt.Errorf("embed query: %w", err))
	}

	hits, err := w.vectors.SearchChunks(ctx, req.WorkspaceID, pgvector.NewVector(embeddings[0]), topK)
	if err != nil {
		return w.fail(ctx, req, fmt.Errorf("search chunks: %w", err))
	}

	results := make([]messaging.RetrievedChunk, len(hits))
	for i, h := range hits {
		results[i] = messaging.RetrievedChunk{
			ChunkID:    h.ChunkID,
			DocumentID: h.DocumentID,
			Text:       h.Text,
			Score:      h.Score,
		}
	}

	resp := messaging.RetrievalResponse{
		RequestID:   req.RequestID,
		WorkspaceID: req.WorkspaceID,
		UserID:      req.UserID,
		Query:       req.Query,
		Results:     results,
		Metadata:    req.Metadata,
	}
	if err := w.broker.Publish(ctx, messaging.KeyRetrievalResponse, resp); err != nil {
		return OutcomeRetry, fmt.Errorf("publish retrieval.response: %w", err)
	}

	if w.cache != nil {
		if encoded, err := json.Marshal(resp); err == nil {
			if err := w.cache.Set(ctx, req.WorkspaceID, req.Query, topK, encoded); err != nil {
				w.logger.Warn("retrieval cache write failed", slog.String("error", err.Error()))
			}
		}
	}

	w.logger.Info("retrieval completed",
		slog.String("request_id", req.RequestID.String()),
		slog.Int("results", len(results)))
	return OutcomeOK, nil
}

func (w *RetrievalWorker) fail(ctx context.Context, req messaging.RetrievalRequest, cause error) (Outcome, error) {
	failure := messaging.RetrievalFailure{
		RequestID:   req.RequestID,
		WorkspaceID: req.WorkspaceID,
		UserID:      req.UserID,
		Query:       req.Query,
		Error:       cause.Error(),
	}
	if err := w.broker.Publish(ctx, messaging.KeyRetrievalFailed, failure); err != nil {
		return OutcomeRetry, fmt.Errorf("publish retrieval.failed after %v: %w", cause, err)
	}
	w.logger.Error("retrieval failed",
		slog.String("request_id", req.RequestID.String()),
		slog.String("error", cause.Error()))
	return OutcomeOK, cause
}
