package messaging

import "github.com/google/uuid"

// Routing keys are a stable, dot-hierarchical contract between workers.
// Every worker binds one queue to one key and publishes the next key in the
// chain after it finishes.
const (
	KeyDocumentUploaded               = "document.uploaded"
	KeyDocumentParsed                 = "document.parsed"
	KeyDocumentChunked                = "document.chunked"
	KeyDocumentEmbedded               = "document.embedded"
	KeyDocumentEntitiesExtracted      = "document.entities_extracted"
	KeyDocumentRelationshipsExtracted = "document.relationships_extracted"
	KeyDocumentCommunitiesDetected    = "document.communities_detected"
	KeyDocumentIndexed                = "document.indexed"
	KeyDocumentEnriched               = "document.enriched"
	KeyDocumentEnrichmentFailed       = "document.enrichment.failed"
	KeyDocumentStatusUpdated          = "document.status.updated"

	KeyWorkspaceProvisionRequested = "workspace.provision_requested"
	KeyWorkspaceProvisionStatus    = "workspace.provision_status"
	KeyWorkspaceDeletionRequested  = "workspace.deletion_requested"
	KeyWorkspaceDeletionStatus     = "workspace.deletion_status"
	KeyWorkspaceStatusUpdated      = "workspace.status.updated"

	KeyRetrievalRequest  = "retrieval.request"
	KeyRetrievalResponse = "retrieval.response"
	KeyRetrievalFailed   = "retrieval.failed"

	KeyGenerationCompleted = "generation.completed"
)

// DocumentEvent is the envelope passed between document pipeline stages.
// Metadata carries free-form context plus tenant routing info.
type DocumentEvent struct {
	DocumentID  uuid.UUID         `json:"document_id"`
	WorkspaceID uuid.UUID         `json:"workspace_id"`
	UserID      uuid.UUID         `json:"user_id"`
	Filename    string            `json:"filename,omitempty"`
	StorageKey  string            `json:"storage_key,omitempty"`
	ChunkCount  int               `json:"chunk_count,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// DocumentStatusEvent is broadcast on document.status.updated.
type DocumentStatusEvent struct {
	DocumentID   uuid.UUID         `json:"document_id"`
	WorkspaceID  uuid.UUID         `json:"workspace_id"`
	UserID       uuid.UUID         `json:"user_id"`
	Filename     string            `json:"filename"`
	Status       string            `json:"status"`
	ChunkCount   *int              `json:"chunk_count,omitempty"`
	ErrorMessage *string           `json:"error_message,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// WorkspaceEvent triggers workspace provisioning or deletion and reports
// its progress.
type WorkspaceEvent struct {
	WorkspaceID uuid.UUID         `json:"workspace_id"`
	UserID      uuid.UUID         `json:"user_id"`
	Name        string            `json:"name,omitempty"`
	SystemType  string            `json:"system_type,omitempty"`
	Status      string            `json:"status,omitempty"`
	Error       string            `json:"error,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// WorkspaceStatusEvent is broadcast on workspace.status.updated.
type WorkspaceStatusEvent struct {
	WorkspaceID  uuid.UUID         `json:"workspace_id"`
	UserID       uuid.UUID         `json:"user_id"`
	Name         string            `json:"name"`
	Status       string            `json:"status"`
	ErrorMessage *string           `json:"error_message,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// RetrievalRequest asks the retriever to find chunks relevant to a query.
type RetrievalRequest struct {
	RequestID   uuid.UUID         `json:"request_id"`
	WorkspaceID uuid.UUID         `json:"workspace_id"`
	UserID      uuid.UUID         `json:"user_id"`
	Query       string            `json:"query"`
	TopK        int               `json:"top_k,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// RetrievedChunk is one search hit in a retrieval response.
type RetrievedChunk struct {
	ChunkID    string    `json:"chunk_id"`
	DocumentID uuid.UUID `json:"document_id"`
	Text       string    `json:"text"`
	Score      float64   `json:"score"`
}

// RetrievalResponse carries search results back to the requesting tenant.
type RetrievalResponse struct {
	RequestID   uuid.UUID         `json:"request_id"`
	WorkspaceID uuid.UUID         `json:"workspace_id"`
	UserID      uuid.UUID         `json:"user_id"`
	Query       string            `json:"query"`
	Results     []RetrievedChunk  `json:"results"`
	Cached      bool              `json:"cached,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// RetrievalFailure is published on retrieval.failed when a request cannot
// be served.
type RetrievalFailure struct {
	RequestID   uuid.UUID `json:"request_id"`
	WorkspaceID uuid.UUID `json:"workspace_id"`
	UserID      uuid.UUID `json:"user_id"`
	Query       string    `json:"query"`
	Error       string    `json:"error"`
}

// GenerationResult carries the generated answer for a retrieval request.
type GenerationResult struct {
	RequestID   uuid.UUID `json:"request_id"`
	WorkspaceID uuid.UUID `json:"workspace_id"`
	UserID      uuid.UUID `json:"user_id"`
	Query       string    `json:"query"`
	Answer      string    `json:"answer"`
	Model       string    `json:"model,omitempty"`
}
