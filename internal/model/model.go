package model

import (
	"time"

	"github.com/google/uuid"
)

// SystemType selects which retrieval backend a workspace is built on.
type SystemType string

const (
	SystemTypeVector SystemType = "vector"
	SystemTypeGraph  SystemType = "graph"
)

// DocumentStatus tracks a document through the ingestion pipeline.
// Transitions are not validated; any status may follow any other.
type DocumentStatus string

const (
	DocumentStatusPending   DocumentStatus = "pending"
	DocumentStatusParsing   DocumentStatus = "parsing"
	DocumentStatusChunking  DocumentStatus = "chunking"
	DocumentStatusEmbedding DocumentStatus = "embedding"
	DocumentStatusIndexing  DocumentStatus = "indexing"
	DocumentStatusReady     DocumentStatus = "ready"
	DocumentStatusFailed    DocumentStatus = "failed"
)

// WorkspaceStatus tracks workspace provisioning and teardown.
type WorkspaceStatus string

const (
	WorkspaceStatusProvisioning WorkspaceStatus = "provisioning"
	WorkspaceStatusReady        WorkspaceStatus = "ready"
	WorkspaceStatusFailed       WorkspaceStatus = "failed"
	WorkspaceStatusDeleting     WorkspaceStatus = "deleting"
	WorkspaceStatusDeleted      WorkspaceStatus = "deleted"
)

// Document is an uploaded file moving through the pipeline. Text is populated
// by the parser stage and may be empty on records loaded without it.
type Document struct {
	ID           uuid.UUID
	WorkspaceID  uuid.UUID
	UserID       uuid.UUID
	Filename     string
	StorageKey   string
	Text         string
	Status       DocumentStatus
	ChunkCount   *int
	ErrorMessage *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Workspace is a tenant-scoped container for documents.
type Workspace struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Name         string
	SystemType   SystemType
	Status       WorkspaceStatus
	ErrorMessage *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Chunk is one sentence-bounded segment of a document's text. A document's
// chunk set is replaced wholesale on re-chunking.
type Chunk struct {
	ID         string
	DocumentID uuid.UUID
	Text       string
	Metadata   map[string]string
}

// Metadata keys present on every chunk. Values are stored as strings for
// transport uniformity.
const (
	ChunkMetaIndex         = "chunk_index"
	ChunkMetaStartOffset   = "start_offset"
	ChunkMetaEndOffset     = "end_offset"
	ChunkMetaSentenceCount = "sentence_count"
)
