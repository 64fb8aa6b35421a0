package pipeline

import "github.com/maraichr/docstream/internal/model"

// VectorPipeline is the embedding-based ingestion chain:
// Parser → Chunker → Embedder → Indexer → [optional Enricher].
func VectorPipeline() RAGPipeline {
	return RAGPipeline{
		Name:       "vector",
		SystemType: model.SystemTypeVector,
		Workers: []WorkerDefinition{
			{
				Role:        RoleParser,
				Stage:       StageIngestion,
				Name:        "Parser",
				Description: "Extracts raw text from uploaded documents",
			},
			{
				Role:        RoleChunker,
				Stage:       StageProcessing,
				Name:        "Chunker",
				Description: "Splits document text into overlapping sentence chunks",
				DependsOn:   []WorkerRole{RoleParser},
			},
			{
				Role:        RoleEmbedder,
				Stage:       StageProcessing,
				Name:        "Embedder",
				Description: "Generates vector embeddings for chunks",
				DependsOn:   []WorkerRole{RoleChunker},
			},
			{
				Role:        RoleIndexer,
				Stage:       StageStorage,
				Name:        "Indexer",
				Description: "Makes chunk vectors searchable",
				DependsOn:   []WorkerRole{RoleEmbedder},
			},
			{
				Role:        RoleEnricher,
				Stage:       StageStorage,
				Name:        "Enricher",
				Description: "Optional post-indexing enrichment",
				DependsOn:   []WorkerRole{RoleIndexer},
				Optional:    true,
			},
		},
	}
}

// GraphPipeline is the knowledge-graph ingestion chain:
// Parser → Chunker → EntityExtractor → RelationshipExtractor →
// CommunityDetector → GraphBuilder → [optional Enricher].
func GraphPipeline() RAGPipeline {
	return RAGPipeline{
		Name:       "graph",
		SystemType: model.SystemTypeGraph,
		Workers: []WorkerDefinition{
			{
				Role:        RoleParser,
				Stage:       StageIngestion,
				Name:        "Parser",
				Description: "Extracts raw text from uploaded documents",
			},
			{
				Role:        RoleChunker,
				Stage:       StageProcessing,
				Name:        "Chunker",
				Description: "Splits document text into overlapping sentence chunks",
				DependsOn:   []WorkerRole{RoleParser},
			},
			{
				Role:        RoleEntityExtractor,
				Stage:       StageProcessing,
				Name:        "Entity Extractor",
				Description: "Extracts named entities from chunks",
				DependsOn:   []WorkerRole{RoleChunker},
			},
			{
				Role:        RoleRelationshipExtractor,
				Stage:       StageProcessing,
				Name:        "Relationship Extractor",
				Description: "Extracts relationships between entities",
				DependsOn:   []WorkerRole{RoleEntityExtractor},
			},
			{
				Role:        RoleCommunityDetector,
				Stage:       StageProcessing,
				Name:        "Community Detector",
				Description: "Clusters entities into communities",
				DependsOn:   []WorkerRole{RoleRelationshipExtractor},
			},
			{
				Role:        RoleGraphBuilder,
				Stage:       StageStorage,
				Name:        "Graph Builder",
				Description: "Persists nodes and edges to the graph store",
				DependsOn:   []WorkerRole{RoleCommunityDetector},
			},
			{
				Role:        RoleEnricher,
				Stage:       StageStorage,
				Name:        "Enricher",
				Description: "Optional post-build enrichment",
				DependsOn:   []WorkerRole{RoleGraphBuilder},
				Optional:    true,
			},
		},
	}
}

// DefaultRegistry builds a registry with both built-in pipelines. Callers
// hold the returned value and pass it where needed.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(VectorPipeline())
	r.Register(GraphPipeline())
	return r
}
