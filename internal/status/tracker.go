package status

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/maraichr/docstream/internal/messaging"
	"github.com/maraichr/docstream/internal/model"
)

// ErrNotFound is returned by stores when the target entity does not exist.
var ErrNotFound = errors.New("not found")

// DocumentPatch lists every updatable field by name. Nil fields are left
// untouched by the store.
type DocumentPatch struct {
	Status       model.DocumentStatus
	ErrorMessage *string
	ChunkCount   *int
	Metadata     map[string]string
}

// WorkspacePatch is the workspace equivalent of DocumentPatch.
type WorkspacePatch struct {
	Status       model.WorkspaceStatus
	ErrorMessage *string
	Metadata     map[string]string
}

// Store persists status transitions and returns the updated entity, or
// ErrNotFound when the identifier is unknown.
type Store interface {
	UpdateDocumentStatus(ctx context.Context, id uuid.UUID, patch DocumentPatch) (*model.Document, error)
	UpdateWorkspaceStatus(ctx context.Context, id uuid.UUID, patch WorkspacePatch) (*model.Workspace, error)
}

// Publisher broadcasts status events. *messaging.Client satisfies it.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// Tracker gives every pipeline stage a uniform way to record a status
// transition and have it broadcast to interested listeners. The publisher is
// optional: without one, updates still succeed and broadcasting is skipped.
type Tracker struct {
	store     Store
	publisher Publisher
	logger    *slog.Logger
}

func NewTracker(store Store, publisher Publisher, logger *slog.Logger) *Tracker {
	return &Tracker{store: store, publisher: publisher, logger: logger}
}

// UpdateDocumentStatus records a document transition and, when a publisher
// is attached, emits a document.status.updated event. The update succeeds
// regardless of whether publishing was attempted or worked.
func (t *Tracker) UpdateDocumentStatus(ctx context.Context, id uuid.UUID, patch DocumentPatch) (*model.Document, error) {
	doc, err := t.store.UpdateDocumentStatus(ctx, id, patch)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("document %s not found", id)
		}
		return nil, fmt.Errorf("update document status: %w", err)
	}

	if t.publisher != nil {
		event := messaging.DocumentStatusEvent{
			DocumentID:   doc.ID,
			WorkspaceID:  doc.WorkspaceID,
			UserID:       doc.UserID,
			Filename:     doc.Filename,
			Status:       string(doc.Status),
			ChunkCount:   doc.ChunkCount,
			ErrorMessage: doc.ErrorMessage,
			Metadata:     patch.Metadata,
		}
		if err := t.publisher.Publish(ctx, messaging.KeyDocumentStatusUpdated, event); err != nil {
			t.logger.Warn("publish document status event failed",
				slog.String("document_id", id.String()),
				slog.String("error", err.Error()))
		}
	}

	return doc, nil
}

// UpdateWorkspaceStatus is the workspace counterpart of
// UpdateDocumentStatus, publishing on workspace.status.updated.
func (t *Tracker) UpdateWorkspaceStatus(ctx context.Context, id uuid.UUID, patch WorkspacePatch) (*model.Workspace, error) {
	ws, err := t.store.UpdateWorkspaceStatus(ctx, id, patch)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("workspace %s not found", id)
		}
		return nil, fmt.Errorf("update workspace status: %w", err)
	}

	if t.publisher != nil {
		event := messaging.WorkspaceStatusEvent{
			WorkspaceID:  ws.ID,
			UserID:       ws.UserID,
			Name:         ws.Name,
			Status:       string(ws.Status),
			ErrorMessage: ws.ErrorMessage,
			Metadata:     patch.Metadata,
		}
		if err := t.publisher.Publish(ctx, messaging.KeyWorkspaceStatusUpdated, event); err != nil {
			t.logger.Warn("publish workspace status event failed",
				slog.String("workspace_id", id.String()),
				slog.String("error", err.Error()))
		}
	}

	return ws, nil
}
