package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/maraichr/docstream/internal/model"
	"github.com/maraichr/docstream/internal/status"
)

// UpdateDocumentStatus applies a status patch and returns the updated row,
// or status.ErrNotFound when the document does not exist. COALESCE keeps
// fields absent from the patch untouched.
func (s *Store) UpdateDocumentStatus(ctx context.Context, id uuid.UUID, patch status.DocumentPatch) (*model.Document, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE documents
		SET status = $2,
		    error_message = COALESCE($3, error_message),
		    chunk_count = COALESCE($4, chunk_count),
		    updated_at = now()
		WHERE id = $1
		RETURNING id, workspace_id, user_id, filename, storage_key, status,
		          chunk_count, error_message, created_at, updated_at`,
		id, string(patch.Status), patch.ErrorMessage, patch.ChunkCount)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, status.ErrNotFound
		}
		return nil, fmt.Errorf("update document status: %w", err)
	}
	return doc, nil
}

// UpdateWorkspaceStatus applies a status patch and returns the updated row,
// or status.ErrNotFound when the workspace does not exist.
func (s *Store) UpdateWorkspaceStatus(ctx context.Context, id uuid.UUID, patch status.WorkspacePatch) (*model.Workspace, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE workspaces
		SET status = $2,
		    error_message = COALESCE($3, error_message),
		    updated_at = now()
		WHERE id = $1
		RETURNING id, user_id, name, system_type, status, error_message,
		          created_at, updated_at`,
		id, string(patch.Status), patch.ErrorMessage)

	var ws model.Workspace
	var st, systemType string
	err := row.Scan(&ws.ID, &ws.UserID, &ws.Name, &systemType, &st,
		&ws.ErrorMessage, &ws.CreatedAt, &ws.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, status.ErrNotFound
		}
		return nil, fmt.Errorf("update workspace status: %w", err)
	}
	ws.SystemType = model.SystemType(systemType)
	ws.Status = model.WorkspaceStatus(st)
	return &ws, nil
}

func scanDocument(row pgx.Row) (*model.Document, error) {
	var doc model.Document
	var st string
	err := row.Scan(&doc.ID, &doc.WorkspaceID, &doc.UserID, &doc.Filename,
		&doc.StorageKey, &st, &doc.ChunkCount, &doc.ErrorMessage,
		&doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	doc.Status = model.DocumentStatus(st)
	return &doc, nil
}
