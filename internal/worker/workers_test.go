package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maraichr/docstream/internal/chunker"
	"github.com/maraichr/docstream/internal/extract"
	"github.com/maraichr/docstream/internal/llm"
	"github.com/maraichr/docstream/internal/messaging"
	"github.com/maraichr/docstream/internal/model"
	"github.com/maraichr/docstream/internal/status"
	"github.com/maraichr/docstream/internal/store/postgres"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type trackedDoc struct {
	id    uuid.UUID
	patch status.DocumentPatch
}

type fakeTracker struct {
	docUpdates []trackedDoc
	wsUpdates  []status.WorkspacePatch
	docErr     error
	wsErr      error
}

func (t *fakeTracker) UpdateDocumentStatus(_ context.Context, id uuid.UUID, patch status.DocumentPatch) (*model.Document, error) {
	if t.docErr != nil {
		return nil, t.docErr
	}
	t.docUpdates = append(t.docUpdates, trackedDoc{id: id, patch: patch})
	return &model.Document{ID: id, Status: patch.Status, ChunkCount: patch.ChunkCount}, nil
}

func (t *fakeTracker) UpdateWorkspaceStatus(_ context.Context, id uuid.UUID, patch status.WorkspacePatch) (*model.Workspace, error) {
	if t.wsErr != nil {
		return nil, t.wsErr
	}
	t.wsUpdates = append(t.wsUpdates, patch)
	return &model.Workspace{ID: id, Status: patch.Status}, nil
}

func (t *fakeTracker) docStatuses() []model.DocumentStatus {
	out := make([]model.DocumentStatus, len(t.docUpdates))
	for i, u := range t.docUpdates {
		out[i] = u.patch.Status
	}
	return out
}

func (t *fakeTracker) wsStatuses() []model.WorkspaceStatus {
	out := make([]model.WorkspaceStatus, len(t.wsUpdates))
	for i, u := range t.wsUpdates {
		out[i] = u.Status
	}
	return out
}

type fakeDocStore struct {
	doc      *model.Document
	text     string
	textErr  error
	setText  []string
	replaced []model.Chunk
	chunks   []model.Chunk
	listErr  error
}

func (s *fakeDocStore) GetDocument(_ context.Context, id uuid.UUID) (*model.Document, error) {
	if s.doc == nil {
		return nil, status.ErrNotFound
	}
	return s.doc, nil
}

func (s *fakeDocStore) GetDocumentText(_ context.Context, _ uuid.UUID) (string, error) {
	return s.text, s.textErr
}

func (s *fakeDocStore) SetDocumentText(_ context.Context, _ uuid.UUID, text string) error {
	s.setText = append(s.setText, text)
	return nil
}

func (s *fakeDocStore) ReplaceChunks(_ context.Context, _ uuid.UUID, chunks []model.Chunk) error {
	s.replaced = chunks
	return nil
}

func (s *fakeDocStore) ListChunks(_ context.Context, _ uuid.UUID) ([]model.Chunk, error) {
	return s.chunks, s.listErr
}

type fakeBlobStore struct {
	data    map[string][]byte
	readErr error
	deleted []string
}

func (s *fakeBlobStore) ReadAll(_ context.Context, key string) ([]byte, error) {
	if s.readErr != nil {
		return nil, s.readErr
	}
	raw, ok := s.data[key]
	if !ok {
		return nil, fmt.Errorf("no such object %s", key)
	}
	return raw, nil
}

func (s *fakeBlobStore) Delete(_ context.Context, key string) error {
	s.deleted = append(s.deleted, key)
	return nil
}

type fakeVectorStore struct {
	upsertIDs     []string
	upsertVecs    []pgvector.Vector
	upsertModel   string
	upsertErr     error
	searchResults []postgres.ChunkSearchResult
	searchErr     error
	indexEnsured  int
	indexErr      error
	wsDeleted     []uuid.UUID
	deleteErr     error
}

func (s *fakeVectorStore) UpsertChunkEmbeddings(_ context.Context, _ uuid.UUID, ids []string, vecs []pgvector.Vector, modelID string) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.upsertIDs = ids
	s.upsertVecs = vecs
	s.upsertModel = modelID
	return nil
}

func (s *fakeVectorStore) SearchChunks(_ context.Context, _ uuid.UUID, _ pgvector.Vector, _ int) ([]postgres.ChunkSearchResult, error) {
	return s.searchResults, s.searchErr
}

func (s *fakeVectorStore) EnsureVectorIndex(_ context.Context) error {
	s.indexEnsured++
	return s.indexErr
}

func (s *fakeVectorStore) DeleteWorkspaceData(_ context.Context, id uuid.UUID) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.wsDeleted = append(s.wsDeleted, id)
	return nil
}

type fakeGraphStore struct {
	entities      []extract.Entity
	relationships []extract.Relationship
	communities   []extract.Community
	linked        []uuid.UUID
	wsDeleted     []uuid.UUID
	constraints   int
	linkErr       error
}

func (s *fakeGraphStore) UpsertEntities(_ context.Context, _ uuid.UUID, entities []extract.Entity) error {
	s.entities = entities
	return nil
}

func (s *fakeGraphStore) UpsertRelationships(_ context.Context, relationships []extract.Relationship) error {
	s.relationships = relationships
	return nil
}

func (s *fakeGraphStore) UpsertCommunities(_ context.Context, _ uuid.UUID, communities []extract.Community) error {
	s.communities = communities
	return nil
}

func (s *fakeGraphStore) LinkDocument(_ context.Context, _ uuid.UUID, documentID uuid.UUID, _ string) error {
	if s.linkErr != nil {
		return s.linkErr
	}
	s.linked = append(s.linked, documentID)
	return nil
}

func (s *fakeGraphStore) DeleteWorkspace(_ context.Context, id uuid.UUID) error {
	s.wsDeleted = append(s.wsDeleted, id)
	return nil
}

func (s *fakeGraphStore) EnsureConstraints(_ context.Context) error {
	s.constraints++
	return nil
}

type fakeEmbedder struct {
	calls     [][]string
	inputType string
	err       error
}

func (e *fakeEmbedder) EmbedBatch(_ context.Context, texts []string, inputType string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.calls = append(e.calls, texts)
	e.inputType = inputType
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i), 1}
	}
	return out, nil
}

func (e *fakeEmbedder) ModelID() string { return "fake-embed-v1" }

type fakeCache struct {
	stored map[string][]byte
	hit    []byte
	sets   int
}

func (c *fakeCache) Get(_ context.Context, _ uuid.UUID, _ string, _ int) ([]byte, bool, error) {
	if c.hit != nil {
		return c.hit, true, nil
	}
	return nil, false, nil
}

func (c *fakeCache) Set(_ context.Context, _ uuid.UUID, query string, _ int, body []byte) error {
	if c.stored == nil {
		c.stored = make(map[string][]byte)
	}
	c.stored[query] = body
	c.sets++
	return nil
}

type fakeCompleter struct {
	prompt string
	answer string
	err    error
}

func (c *fakeCompleter) Complete(_ context.Context, messages []llm.Message) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	c.prompt = messages[len(messages)-1].Content
	return c.answer, nil
}

func (c *fakeCompleter) Model() string { return "fake-chat-v1" }

func docEventBody(t *testing.T, event messaging.DocumentEvent) []byte {
	t.Helper()
	body, err := json.Marshal(event)
	require.NoError(t, err)
	return body
}

func TestParserProcess(t *testing.T) {
	event := messaging.DocumentEvent{
		DocumentID:  uuid.New(),
		WorkspaceID: uuid.New(),
		Filename:    "notes.txt",
		StorageKey:  "ws/notes.txt",
	}
	blobs := &fakeBlobStore{data: map[string][]byte{
		"ws/notes.txt": []byte("Hello world. This is a document."),
	}}
	docs := &fakeDocStore{}
	tracker := &fakeTracker{}
	broker := newFakeBroker()

	p := NewParser(docs, blobs, tracker, broker, discard())
	outcome, err := p.Process(context.Background(), docEventBody(t, event))

	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, outcome)
	require.Len(t, docs.setText, 1)
	assert.Equal(t, "Hello world. This is a document.", docs.setText[0])
	assert.Equal(t, []model.DocumentStatus{model.DocumentStatusParsing}, tracker.docStatuses())
	require.Len(t, broker.publishes, 1)
	assert.Equal(t, messaging.KeyDocumentParsed, broker.publishes[0].routingKey)
}

func TestParserRejectsBinaryContent(t *testing.T) {
	event := messaging.DocumentEvent{DocumentID: uuid.New(), StorageKey: "ws/blob.bin"}
	blobs := &fakeBlobStore{data: map[string][]byte{
		"ws/blob.bin": {0xff, 0xfe, 0x00, 0x01},
	}}
	tracker := &fakeTracker{}
	broker := newFakeBroker()

	p := NewParser(&fakeDocStore{}, blobs, tracker, broker, discard())
	outcome, err := p.Process(context.Background(), docEventBody(t, event))

	require.Error(t, err)
	assert.Equal(t, OutcomeDrop, outcome)
	assert.Empty(t, broker.publishes)
	statuses := tracker.docStatuses()
	assert.Contains(t, statuses, model.DocumentStatusFailed)
}

func TestParserRetriesOnBlobError(t *testing.T) {
	event := messaging.DocumentEvent{DocumentID: uuid.New(), StorageKey: "ws/gone.txt"}
	blobs := &fakeBlobStore{readErr: errors.New("connection reset")}
	tracker := &fakeTracker{}

	p := NewParser(&fakeDocStore{}, blobs, tracker, newFakeBroker(), discard())
	outcome, err := p.Process(context.Background(), docEventBody(t, event))

	require.Error(t, err)
	assert.Equal(t, OutcomeRetry, outcome)
}

func TestParserDropsEventWithoutDocumentID(t *testing.T) {
	p := NewParser(&fakeDocStore{}, &fakeBlobStore{}, &fakeTracker{}, newFakeBroker(), discard())
	outcome, err := p.Process(context.Background(), []byte(`{"filename":"x.txt"}`))

	require.Error(t, err)
	assert.Equal(t, OutcomeDrop, outcome)
}

func TestChunkWorkerProcess(t *testing.T) {
	event := messaging.DocumentEvent{DocumentID: uuid.New(), WorkspaceID: uuid.New()}
	docs := &fakeDocStore{text: "First sentence here. Second sentence follows. Third one closes."}
	tracker := &fakeTracker{}
	broker := newFakeBroker()

	w := NewChunkWorker(docs, chunker.New(40, 10), tracker, broker, discard())
	outcome, err := w.Process(context.Background(), docEventBody(t, event))

	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, outcome)
	require.NotEmpty(t, docs.replaced)

	// Second status update carries the chunk count.
	require.Len(t, tracker.docUpdates, 2)
	require.NotNil(t, tracker.docUpdates[1].patch.ChunkCount)
	assert.Equal(t, len(docs.replaced), *tracker.docUpdates[1].patch.ChunkCount)

	require.Len(t, broker.publishes, 1)
	assert.Equal(t, messaging.KeyDocumentChunked, broker.publishes[0].routingKey)
	next, ok := broker.publishes[0].payload.(messaging.DocumentEvent)
	require.True(t, ok)
	assert.Equal(t, len(docs.replaced), next.ChunkCount)
}

func TestEmbedWorkerProcess(t *testing.T) {
	docID := uuid.New()
	event := messaging.DocumentEvent{DocumentID: docID, WorkspaceID: uuid.New()}
	docs := &fakeDocStore{chunks: []model.Chunk{
		{ID: docID.String() + "_chunk_0", DocumentID: docID, Text: "alpha"},
		{ID: docID.String() + "_chunk_1", DocumentID: docID, Text: "beta"},
	}}
	vectors := &fakeVectorStore{}
	embedder := &fakeEmbedder{}
	tracker := &fakeTracker{}
	broker := newFakeBroker()

	w := NewEmbedWorker(docs, vectors, embedder, tracker, broker, discard())
	outcome, err := w.Process(context.Background(), docEventBody(t, event))

	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, outcome)
	require.Len(t, embedder.calls, 1)
	assert.Equal(t, []string{"alpha", "beta"}, embedder.calls[0])
	assert.Equal(t, "search_document", embedder.inputType)
	assert.Equal(t, []string{docID.String() + "_chunk_0", docID.String() + "_chunk_1"}, vectors.upsertIDs)
	assert.Equal(t, "fake-embed-v1", vectors.upsertModel)
	require.Len(t, broker.publishes, 1)
	assert.Equal(t, messaging.KeyDocumentEmbedded, broker.publishes[0].routingKey)
}

func TestEmbedWorkerNoChunksStillAdvances(t *testing.T) {
	event := messaging.DocumentEvent{DocumentID: uuid.New()}
	embedder := &fakeEmbedder{}
	broker := newFakeBroker()

	w := NewEmbedWorker(&fakeDocStore{}, &fakeVectorStore{}, embedder, &fakeTracker{}, broker, discard())
	outcome, err := w.Process(context.Background(), docEventBody(t, event))

	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, outcome)
	assert.Empty(t, embedder.calls)
	require.Len(t, broker.publishes, 1)
	assert.Equal(t, messaging.KeyDocumentEmbedded, broker.publishes[0].routingKey)
}

func TestEmbedWorkerRetriesOnProviderError(t *testing.T) {
	event := messaging.DocumentEvent{DocumentID: uuid.New()}
	docs := &fakeDocStore{chunks: []model.Chunk{{ID: "c0", Text: "alpha"}}}
	embedder := &fakeEmbedder{err: errors.New("status 529")}
	tracker := &fakeTracker{}

	w := NewEmbedWorker(docs, &fakeVectorStore{}, embedder, tracker, newFakeBroker(), discard())
	outcome, err := w.Process(context.Background(), docEventBody(t, event))

	require.Error(t, err)
	assert.Equal(t, OutcomeRetry, outcome)
	assert.Contains(t, tracker.docStatuses(), model.DocumentStatusFailed)
}

func TestIndexWorkerProcess(t *testing.T) {
	event := messaging.DocumentEvent{DocumentID: uuid.New()}
	vectors := &fakeVectorStore{}
	tracker := &fakeTracker{}
	broker := newFakeBroker()

	w := NewIndexWorker(vectors, tracker, broker, discard())
	outcome, err := w.Process(context.Background(), docEventBody(t, event))

	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, outcome)
	assert.Equal(t, 1, vectors.indexEnsured)
	assert.Equal(t, []model.DocumentStatus{
		model.DocumentStatusIndexing,
		model.DocumentStatusReady,
	}, tracker.docStatuses())
	require.Len(t, broker.publishes, 1)
	assert.Equal(t, messaging.KeyDocumentIndexed, broker.publishes[0].routingKey)
}

type staticExtractor struct {
	entities      []extract.Entity
	relationships []extract.Relationship
	communities   []extract.Community
}

func (s staticExtractor) ExtractEntities(_ context.Context, _ []model.Chunk) ([]extract.Entity, error) {
	return s.entities, nil
}

func (s staticExtractor) ExtractRelationships(_ context.Context, _ []model.Chunk, _ []extract.Entity) ([]extract.Relationship, error) {
	return s.relationships, nil
}

func (s staticExtractor) DetectCommunities(_ context.Context, _ []extract.Entity, _ []extract.Relationship) ([]extract.Community, error) {
	return s.communities, nil
}

func TestEntityWorkerProcess(t *testing.T) {
	event := messaging.DocumentEvent{DocumentID: uuid.New(), WorkspaceID: uuid.New()}
	docs := &fakeDocStore{chunks: []model.Chunk{{ID: "c0", Text: "Acme hired Jane."}}}
	graph := &fakeGraphStore{}
	extractor := staticExtractor{entities: []extract.Entity{
		{ID: "e1", Name: "Acme", Type: "org", ChunkID: "c0"},
	}}
	broker := newFakeBroker()

	w := NewEntityWorker(docs, graph, extractor, &fakeTracker{}, broker, discard())
	outcome, err := w.Process(context.Background(), docEventBody(t, event))

	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, outcome)
	require.Len(t, graph.entities, 1)
	assert.Equal(t, "Acme", graph.entities[0].Name)
	require.Len(t, broker.publishes, 1)
	assert.Equal(t, messaging.KeyDocumentEntitiesExtracted, broker.publishes[0].routingKey)
}

func TestGraphBuildWorkerProcess(t *testing.T) {
	event := messaging.DocumentEvent{DocumentID: uuid.New(), WorkspaceID: uuid.New(), Filename: "spec.txt"}
	graph := &fakeGraphStore{}
	tracker := &fakeTracker{}
	broker := newFakeBroker()

	w := NewGraphBuildWorker(graph, tracker, broker, discard())
	outcome, err := w.Process(context.Background(), docEventBody(t, event))

	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, outcome)
	assert.Equal(t, []uuid.UUID{event.DocumentID}, graph.linked)
	assert.Equal(t, []model.DocumentStatus{
		model.DocumentStatusIndexing,
		model.DocumentStatusReady,
	}, tracker.docStatuses())
	require.Len(t, broker.publishes, 1)
	assert.Equal(t, messaging.KeyDocumentIndexed, broker.publishes[0].routingKey)
}

func TestRetrievalWorkerProcess(t *testing.T) {
	docID := uuid.New()
	req := messaging.RetrievalRequest{
		RequestID:   uuid.New(),
		WorkspaceID: uuid.New(),
		Query:       "what is the refund policy",
		TopK:        3,
	}
	vectors := &fakeVectorStore{searchResults: []postgres.ChunkSearchResult{
		{ChunkID: "c0", DocumentID: docID, Text: "Refunds within 30 days.", Score: 0.92},
	}}
	embedder := &fakeEmbedder{}
	cache := &fakeCache{}
	broker := newFakeBroker()
	body, err := json.Marshal(req)
	require.NoError(t, err)

	w := NewRetrievalWorker(vectors, embedder, cache, broker, discard())
	outcome, err := w.Process(context.Background(), body)

	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, outcome)
	assert.Equal(t, "search_query", embedder.inputType)
	require.Len(t, broker.publishes, 1)
	assert.Equal(t, messaging.KeyRetrievalResponse, broker.publishes[0].routingKey)

	resp, ok := broker.publishes[0].payload.(messaging.RetrievalResponse)
	require.True(t, ok)
	assert.Equal(t, req.RequestID, resp.RequestID)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "c0", resp.Results[0].ChunkID)
	assert.False(t, resp.Cached)
	assert.Equal(t, 1, cache.sets)
}

func TestRetrievalWorkerServesFromCache(t *testing.T) {
	req := messaging.RetrievalRequest{
		RequestID:   uuid.New(),
		WorkspaceID: uuid.New(),
		Query:       "cached question",
	}
	cachedResp := messaging.RetrievalResponse{
		WorkspaceID: req.WorkspaceID,
		Query:       req.Query,
		Results:     []messaging.RetrievedChunk{{ChunkID: "c9", Text: "stored answer"}},
	}
	encoded, err := json.Marshal(cachedResp)
	require.NoError(t, err)

	embedder := &fakeEmbedder{}
	broker := newFakeBroker()
	body, err := json.Marshal(req)
	require.NoError(t, err)

	w := NewRetrievalWorker(&fakeVectorStore{}, embedder, &fakeCache{hit: encoded}, broker, discard())
	outcome, err := w.Process(context.Background(), body)

	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, outcome)
	assert.Empty(t, embedder.calls, "cache hit must not reach the embedder")

	resp, ok := broker.publishes[0].payload.(messaging.RetrievalResponse)
	require.True(t, ok)
	assert.True(t, resp.Cached)
	assert.Equal(t, req.RequestID, resp.RequestID)
}

func TestRetrievalWorkerPublishesFailure(t *testing.T) {
	req := messaging.RetrievalRequest{
		RequestID:   uuid.New(),
		WorkspaceID: uuid.New(),
		Query:       "anything",
	}
	vectors := &fakeVectorStore{searchErr: errors.New("relation does not exist")}
	broker := newFakeBroker()
	body, err := json.Marshal(req)
	require.NoError(t, err)

	w := NewRetrievalWorker(vectors, &fakeEmbedder{}, nil, broker, discard())
	outcome, err := w.Process(context.Background(), body)

	require.Error(t, err)
	assert.Equal(t, OutcomeOK, outcome, "failures are reported via event, not redelivery")
	require.Len(t, broker.publishes, 1)
	assert.Equal(t, messaging.KeyRetrievalFailed, broker.publishes[0].routingKey)

	failure, ok := broker.publishes[0].payload.(messaging.RetrievalFailure)
	require.True(t, ok)
	assert.Equal(t, req.RequestID, failure.RequestID)
	assert.Contains(t, failure.Error, "search chunks")
}

func TestGenerationWorkerProcess(t *testing.T) {
	resp := messaging.RetrievalResponse{
		RequestID:   uuid.New(),
		WorkspaceID: uuid.New(),
		Query:       "what changed",
		Results: []messaging.RetrievedChunk{
			{ChunkID: "c0", Text: "The policy changed in March."},
		},
	}
	completer := &fakeCompleter{answer: "The policy changed in March [1]."}
	broker := newFakeBroker()
	body, err := json.Marshal(resp)
	require.NoError(t, err)

	w := NewGenerationWorker(completer, broker, discard())
	outcome, err := w.Process(context.Background(), body)

	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, outcome)
	assert.Contains(t, completer.prompt, "The policy changed in March.")
	assert.Contains(t, completer.prompt, "Question: what changed")

	require.Len(t, broker.publishes, 1)
	assert.Equal(t, messaging.KeyGenerationCompleted, broker.publishes[0].routingKey)
	result, ok := broker.publishes[0].payload.(messaging.GenerationResult)
	require.True(t, ok)
	assert.Equal(t, resp.RequestID, result.RequestID)
	assert.Equal(t, "The policy changed in March [1].", result.Answer)
	assert.Equal(t, "fake-chat-v1", result.Model)
}

func TestGenerationWorkerRetriesOnLLMError(t *testing.T) {
	resp := messaging.RetrievalResponse{RequestID: uuid.New(), Query: "q"}
	body, err := json.Marshal(resp)
	require.NoError(t, err)

	w := NewGenerationWorker(&fakeCompleter{err: errors.New("status 429")}, newFakeBroker(), discard())
	outcome, err := w.Process(context.Background(), body)

	require.Error(t, err)
	assert.Equal(t, OutcomeRetry, outcome)
}

func wsEventBody(t *testing.T, event messaging.WorkspaceEvent) []byte {
	t.Helper()
	body, err := json.Marshal(event)
	require.NoError(t, err)
	return body
}

func TestProvisionWorkerVector(t *testing.T) {
	event := messaging.WorkspaceEvent{
		WorkspaceID: uuid.New(),
		Name:        "docs",
		SystemType:  "vector",
	}
	vectors := &fakeVectorStore{}
	graph := &fakeGraphStore{}
	tracker := &fakeTracker{}
	broker := newFakeBroker()

	w := NewProvisionWorker(vectors, graph, tracker, broker, discard())
	outcome, err := w.Process(context.Background(), wsEventBody(t, event))

	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, outcome)
	assert.Equal(t, 1, vectors.indexEnsured)
	assert.Zero(t, graph.constraints)
	assert.Equal(t, []model.WorkspaceStatus{
		model.WorkspaceStatusProvisioning,
		model.WorkspaceStatusReady,
	}, tracker.wsStatuses())

	require.Len(t, broker.publishes, 1)
	assert.Equal(t, messaging.KeyWorkspaceProvisionStatus, broker.publishes[0].routingKey)
	update, ok := broker.publishes[0].payload.(messaging.WorkspaceEvent)
	require.True(t, ok)
	assert.Equal(t, string(model.WorkspaceStatusReady), update.Status)
}

func TestProvisionWorkerGraph(t *testing.T) {
	event := messaging.WorkspaceEvent{WorkspaceID: uuid.New(), SystemType: "graph"}
	vectors := &fakeVectorStore{}
	graph := &fakeGraphStore{}

	w := NewProvisionWorker(vectors, graph, &fakeTracker{}, newFakeBroker(), discard())
	outcome, err := w.Process(context.Background(), wsEventBody(t, event))

	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, outcome)
	assert.Equal(t, 1, graph.constraints)
	assert.Zero(t, vectors.indexEnsured)
}

func TestProvisionWorkerUnknownSystemType(t *testing.T) {
	event := messaging.WorkspaceEvent{WorkspaceID: uuid.New(), SystemType: "quantum"}
	tracker := &fakeTracker{}
	broker := newFakeBroker()

	w := NewProvisionWorker(&fakeVectorStore{}, &fakeGraphStore{}, tracker, broker, discard())
	outcome, err := w.Process(context.Background(), wsEventBody(t, event))

	require.Error(t, err)
	assert.Equal(t, OutcomeDrop, outcome)
	assert.Contains(t, tracker.wsStatuses(), model.WorkspaceStatusFailed)

	require.Len(t, broker.publishes, 1)
	update, ok := broker.publishes[0].payload.(messaging.WorkspaceEvent)
	require.True(t, ok)
	assert.Equal(t, string(model.WorkspaceStatusFailed), update.Status)
	assert.Contains(t, update.Error, "quantum")
}

func TestDeletionWorkerGraphWorkspace(t *testing.T) {
	event := messaging.WorkspaceEvent{WorkspaceID: uuid.New(), SystemType: "graph"}
	vectors := &fakeVectorStore{}
	graph := &fakeGraphStore{}
	tracker := &fakeTracker{}
	broker := newFakeBroker()

	w := NewDeletionWorker(vectors, graph, tracker, broker, discard())
	outcome, err := w.Process(context.Background(), wsEventBody(t, event))

	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, outcome)
	assert.Equal(t, []uuid.UUID{event.WorkspaceID}, vectors.wsDeleted)
	assert.Equal(t, []uuid.UUID{event.WorkspaceID}, graph.wsDeleted)
	assert.Equal(t, []model.WorkspaceStatus{
		model.WorkspaceStatusDeleting,
		model.WorkspaceStatusDeleted,
	}, tracker.wsStatuses())
	require.Len(t, broker.publishes, 1)
	assert.Equal(t, messaging.KeyWorkspaceDeletionStatus, broker.publishes[0].routingKey)
}

func TestDeletionWorkerVectorSkipsGraph(t *testing.T) {
	event := messaging.WorkspaceEvent{WorkspaceID: uuid.New(), SystemType: "vector"}
	vectors := &fakeVectorStore{}
	graph := &fakeGraphStore{}

	w := NewDeletionWorker(vectors, graph, &fakeTracker{}, newFakeBroker(), discard())
	outcome, err := w.Process(context.Background(), wsEventBody(t, event))

	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, outcome)
	assert.Len(t, vectors.wsDeleted, 1)
	assert.Empty(t, graph.wsDeleted)
}
