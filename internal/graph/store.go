package graph

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/maraichr/docstream/internal/extract"
)

// UpsertEntities merges extracted entities into the workspace graph.
func (c *Client) UpsertEntities(ctx context.Context, workspaceID uuid.UUID, entities []extract.Entity) error {
	if len(entities) == 0 {
		return nil
	}

	session := c.Session(ctx)
	defer session.Close(ctx)

	_, err := neo4j.ExecuteWrite(ctx, session, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, e := range entities {
			params := map[string]any{
				"id":           e.ID,
				"name":         e.Name,
				"type":         e.Type,
				"chunk_id":     e.ChunkID,
				"workspace_id": workspaceID.String(),
			}
			if _, err := tx.Run(ctx, mergeEntity, params); err != nil {
				return struct{}{}, fmt.Errorf("merge entity %s: %w", e.ID, err)
			}
		}
		return struct{}{}, nil
	})
	return err
}

// UpsertRelationships merges extracted relationships between existing
// entity nodes.
func (c *Client) UpsertRelationships(ctx context.Context, relationships []extract.Relationship) error {
	if len(relationships) == 0 {
		return nil
	}

	session := c.Session(ctx)
	defer session.Close(ctx)

	_, err := neo4j.ExecuteWrite(ctx, session, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, r := range relationships {
			params := map[string]any{
				"source_id": r.SourceID,
				"target_id": r.TargetID,
				"type":      r.Type,
				"chunk_id":  r.ChunkID,
			}
			if _, err := tx.Run(ctx, mergeRelationship, params); err != nil {
				return struct{}{}, fmt.Errorf("merge relationship %s->%s: %w", r.SourceID, r.TargetID, err)
			}
		}
		return struct{}{}, nil
	})
	return err
}

// UpsertCommunities merges detected communities and their membership edges.
func (c *Client) UpsertCommunities(ctx context.Context, workspaceID uuid.UUID, communities []extract.Community) error {
	if len(communities) == 0 {
		return nil
	}

	session := c.Session(ctx)
	defer session.Close(ctx)

	_, err := neo4j.ExecuteWrite(ctx, session, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, com := range communities {
			params := map[string]any{
				"id":           com.ID,
				"summary":      com.Summary,
				"workspace_id": workspaceID.String(),
				"entity_ids":   com.EntityIDs,
			}
			if _, err := tx.Run(ctx, mergeCommunity, params); err != nil {
				return struct{}{}, fmt.Errorf("merge community %s: %w", com.ID, err)
			}
		}
		return struct{}{}, nil
	})
	return err
}

// LinkDocument creates the document node and attaches the entities found in
// its chunks. Chunk ids are prefixed with the document id, which is what the
// attachment match keys on.
func (c *Client) LinkDocument(ctx context.Context, workspaceID, documentID uuid.UUID, filename string) error {
	session := c.Session(ctx)
	defer session.Close(ctx)

	_, err := neo4j.ExecuteWrite(ctx, session, func(tx neo4j.ManagedTransaction) (any, error) {
		params := map[string]any{
			"id":           documentID.String(),
			"workspace_id": workspaceID.String(),
			"filename":     filename,
		}
		if _, err := tx.Run(ctx, mergeDocumentNode, params); err != nil {
			return struct{}{}, fmt.Errorf("merge document node: %w", err)
		}
		return struct{}{}, nil
	})
	return err
}

// DeleteWorkspace removes every node belonging to the workspace.
func (c *Client) DeleteWorkspace(ctx context.Context, workspaceID uuid.UUID) error {
	session := c.Session(ctx)
	defer session.Close(ctx)

	_, err := neo4j.ExecuteWrite(ctx, session, func(tx neo4j.ManagedTransaction) (any, error) {
		params := map[string]any{"workspace_id": workspaceID.String()}
		if _, err := tx.Run(ctx, deleteWorkspaceGraph, params); err != nil {
			return struct{}{}, fmt.Errorf("delete workspace graph: %w", err)
		}
		return struct{}{}, nil
	})
	return err
}
