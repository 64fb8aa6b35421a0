package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/maraichr/docstream/internal/model"
	"github.com/maraichr/docstream/internal/status"
)

// CreateDocument inserts a new document row in pending state and fills in
// the generated timestamps.
func (s *Store) CreateDocument(ctx context.Context, doc *model.Document) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO documents (id, workspace_id, user_id, filename, storage_key, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		doc.ID, doc.WorkspaceID, doc.UserID, doc.Filename, doc.StorageKey, doc.Status,
	).Scan(&doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// GetDocument loads a document row without its raw text.
func (s *Store) GetDocument(ctx context.Context, id uuid.UUID) (*model.Document, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, workspace_id, user_id, filename, storage_key, status,
		       chunk_count, error_message, created_at, updated_at
		FROM documents WHERE id = $1`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, status.ErrNotFound
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// GetDocumentText returns the parsed text for a document.
func (s *Store) GetDocumentText(ctx context.Context, id uuid.UUID) (string, error) {
	var text *string
	err := s.pool.QueryRow(ctx, `SELECT text FROM documents WHERE id = $1`, id).Scan(&text)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", status.ErrNotFound
		}
		return "", fmt.Errorf("get document text: %w", err)
	}
	if text == nil {
		return "", nil
	}
	return *text, nil
}

// SetDocumentText stores the parser output.
func (s *Store) SetDocumentText(ctx context.Context, id uuid.UUID, text string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE documents SET text = $2, updated_at = now() WHERE id = $1`, id, text)
	if err != nil {
		return fmt.Errorf("set document text: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return status.ErrNotFound
	}
	return nil
}

// ReplaceChunks deletes a document's existing chunk set and inserts the new
// one in a single transaction, so re-chunking fully replaces the old chunks.
// Inserts are pipelined in one pgx batch rather than one round-trip per row.
func (s *Store) ReplaceChunks(ctx context.Context, documentID uuid.UUID, chunks []model.Chunk) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete old chunks: %w", err)
	}

	batch := &pgx.Batch{}
	for _, ch := range chunks {
		meta, err := json.Marshal(ch.Metadata)
		if err != nil {
			return fmt.Errorf("marshal chunk metadata: %w", err)
		}
		batch.Queue(`
			INSERT INTO chunks (id, document_id, text, metadata)
			VALUES ($1, $2, $3, $4)`,
			ch.ID, ch.DocumentID, ch.Text, meta)
	}

	br := tx.SendBatch(ctx, batch)
	for range chunks {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("insert chunk: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	return tx.Commit(ctx)
}

// ListChunks returns a document's chunks ordered by chunk index.
func (s *Store) ListChunks(ctx context.Context, documentID uuid.UUID) ([]model.Chunk, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, document_id, text, metadata
		FROM chunks
		WHERE document_id = $1
		ORDER BY (metadata->>'chunk_index')::int`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	defer rows.Close()

	var chunks []model.Chunk
	for rows.Next() {
		var ch model.Chunk
		var meta []byte
		if err := rows.Scan(&ch.ID, &ch.DocumentID, &ch.Text, &meta); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &ch.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal chunk metadata: %w", err)
			}
		}
		chunks = append(chunks, ch)
	}
	return chunks, rows.Err()
}

// DeleteWorkspaceData removes a workspace's documents, chunks, and
// embeddings. Called by the workspace deletion worker.
func (s *Store) DeleteWorkspaceData(ctx context.Context, workspaceID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	statements := []string{
		`DELETE FROM chunk_embeddings WHERE chunk_id IN (
			SELECT c.id FROM chunks c
			JOIN documents d ON d.id = c.document_id
			WHERE d.workspace_id = $1)`,
		`DELETE FROM chunks WHERE document_id IN (
			SELECT id FROM documents WHERE workspace_id = $1)`,
		`DELETE FROM documents WHERE workspace_id = $1`,
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt, workspaceID); err != nil {
			return fmt.Errorf("delete workspace data: %w", err)
		}
	}

	return tx.Commit(ctx)
}
