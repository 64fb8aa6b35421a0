package worker

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/maraichr/docstream/internal/extract"
	"github.com/maraichr/docstream/internal/model"
	"github.com/maraichr/docstream/internal/status"
	"github.com/maraichr/docstream/internal/store/postgres"
)

// Narrow views of the storage layer, one per concern. The postgres, minio
// and neo4j clients satisfy them; worker tests substitute fakes.

type DocumentStore interface {
	GetDocument(ctx context.Context, id uuid.UUID) (*model.Document, error)
	GetDocumentText(ctx context.Context, id uuid.UUID) (string, error)
	SetDocumentText(ctx context.Context, id uuid.UUID, text string) error
	ReplaceChunks(ctx context.Context, documentID uuid.UUID, chunks []model.Chunk) error
	ListChunks(ctx context.Context, documentID uuid.UUID) ([]model.Chunk, error)
}

type BlobStore interface {
	ReadAll(ctx context.Context, storageKey string) ([]byte, error)
	Delete(ctx context.Context, storageKey string) error
}

type VectorStore interface {
	UpsertChunkEmbeddings(ctx context.Context, workspaceID uuid.UUID, chunkIDs []string, vectors []pgvector.Vector, modelID string) error
	SearchChunks(ctx context.Context, workspaceID uuid.UUID, query pgvector.Vector, topK int) ([]postgres.ChunkSearchResult, error)
	EnsureVectorIndex(ctx context.Context) error
	DeleteWorkspaceData(ctx context.Context, workspaceID uuid.UUID) error
}

type GraphStore interface {
	UpsertEntities(ctx context.Context, workspaceID uuid.UUID, entities []extract.Entity) error
	UpsertRelationships(ctx context.Context, relationships []extract.Relationship) error
	UpsertCommunities(ctx context.Context, workspaceID uuid.UUID, communities []extract.Community) error
	LinkDocument(ctx context.Context, workspaceID, documentID uuid.UUID, filename string) error
	DeleteWorkspace(ctx context.Context, workspaceID uuid.UUID) error
	EnsureConstraints(ctx context.Context) error
}

// StatusTracker records status transitions. *status.Tracker satisfies it.
type StatusTracker interface {
	UpdateDocumentStatus(ctx context.Context, id uuid.UUID, patch status.DocumentPatch) (*model.Document, error)
	UpdateWorkspaceStatus(ctx context.Context, id uuid.UUID, patch status.WorkspacePatch) (*model.Workspace, error)
}

// Embedder matches the embedding package interface.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string, inputType string) ([][]float32, error)
	ModelID() string
}

// QueueName returns the queue a worker role consumes from.
func QueueName(role string) string {
	return "docstream." + role
}

// markDocumentFailed records a failed status with the triggering error.
// Best-effort: a failure here is logged, not propagated, so the original
// error keeps driving the delivery outcome.
func markDocumentFailed(ctx context.Context, tracker StatusTracker, logger *slog.Logger, id uuid.UUID, cause error) {
	msg := cause.Error()
	if _, err := tracker.UpdateDocumentStatus(ctx, id, status.DocumentPatch{
		Status:       model.DocumentStatusFailed,
		ErrorMessage: &msg,
	}); err != nil {
		logger.Error("mark document failed",
			slog.String("document_id", id.String()),
			slog.String("error", err.Error()))
	}
}

func markWorkspaceFailed(ctx context.Context, tracker StatusTracker, logger *slog.Logger, id uuid.UUID, cause error) {
	msg := cause.Error()
	if _, err := tracker.UpdateWorkspaceStatus(ctx, id, status.WorkspacePatch{
		Status:       model.WorkspaceStatusFailed,
		ErrorMessage: &msg,
	}); err != nil {
		logger.Error("mark workspace failed",
			slog.String("workspace_id", id.String()),
			slog.String("error", err.Error()))
	}
}
