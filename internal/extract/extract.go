package extract

import (
	"context"

	"github.com/maraichr/docstream/internal/model"
)

// Entity is a named thing found in a chunk of text.
type Entity struct {
	ID      string
	Name    string
	Type    string
	ChunkID string
}

// Relationship is a typed edge between two entities.
type Relationship struct {
	SourceID string
	TargetID string
	Type     string
	ChunkID  string
}

// Community is a cluster of related entities.
type Community struct {
	ID        string
	EntityIDs []string
	Summary   string
}

// The extraction algorithms are opaque to the pipeline: workers consume
// these interfaces and never look inside. Implementations are injected at
// startup.
type EntityExtractor interface {
	ExtractEntities(ctx context.Context, chunks []model.Chunk) ([]Entity, error)
}

type RelationshipExtractor interface {
	ExtractRelationships(ctx context.Context, chunks []model.Chunk, entities []Entity) ([]Relationship, error)
}

type CommunityDetector interface {
	DetectCommunities(ctx context.Context, entities []Entity, relationships []Relationship) ([]Community, error)
}

// Noop satisfies all three interfaces and extracts nothing. Used until a
// real extraction backend is wired in.
type Noop struct{}

func (Noop) ExtractEntities(_ context.Context, _ []model.Chunk) ([]Entity, error) {
	return nil, nil
}

func (Noop) ExtractRelationships(_ context.Context, _ []model.Chunk, _ []Entity) ([]Relationship, error) {
	return nil, nil
}

func (Noop) DetectCommunities(_ context.Context, _ []Entity, _ []Relationship) ([]Community, error) {
	return nil, nil
}
