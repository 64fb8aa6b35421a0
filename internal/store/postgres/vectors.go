package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"
)

// ChunkSearchResult is one similarity-search hit.
type ChunkSearchResult struct {
	ChunkID    string
	DocumentID uuid.UUID
	Text       string
	Score      float64
}

// UpsertChunkEmbeddings stores one vector per chunk id in a single pgx
// pipelined batch. Lengths of chunkIDs and vectors must match.
func (s *Store) UpsertChunkEmbeddings(ctx context.Context, workspaceID uuid.UUID, chunkIDs []string, vectors []pgvector.Vector, modelID string) error {
	if len(chunkIDs) != len(vectors) {
		return fmt.Errorf("embedding count mismatch: %d ids, %d vectors", len(chunkIDs), len(vectors))
	}

	batch := &pgx.Batch{}
	for i, id := range chunkIDs {
		batch.Queue(`
			INSERT INTO chunk_embeddings (chunk_id, workspace_id, embedding, model_id)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (chunk_id) DO UPDATE
			SET embedding = EXCLUDED.embedding, model_id = EXCLUDED.model_id`,
			id, workspaceID, vectors[i], modelID)
	}

	br := s.pool.SendBatch(ctx, batch)
	for range chunkIDs {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("upsert chunk embedding: %w", err)
		}
	}
	return br.Close()
}

// SearchChunks returns the topK chunks nearest to query by cosine distance,
// scoped to one workspace.
func (s *Store) SearchChunks(ctx context.Context, workspaceID uuid.UUID, query pgvector.Vector, topK int) ([]ChunkSearchResult, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.id, c.document_id, c.text, 1 - (e.embedding <=> $2) AS score
		FROM chunk_embeddings e
		JOIN chunks c ON c.id = e.chunk_id
		WHERE e.workspace_id = $1
		ORDER BY e.embedding <=> $2
		LIMIT $3`, workspaceID, query, topK)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	defer rows.Close()

	var results []ChunkSearchResult
	for rows.Next() {
		var r ChunkSearchResult
		if err := rows.Scan(&r.ChunkID, &r.DocumentID, &r.Text, &r.Score); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// EnsureVectorIndex creates the ANN index over chunk embeddings if it does
// not exist. Run by the indexer worker and during workspace provisioning.
func (s *Store) EnsureVectorIndex(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS chunk_embeddings_embedding_idx
		ON chunk_embeddings USING hnsw (embedding vector_cosine_ops)`)
	if err != nil {
		return fmt.Errorf("ensure vector index: %w", err)
	}
	return nil
}
