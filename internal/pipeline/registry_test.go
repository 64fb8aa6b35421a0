package pipeline

import (
	"strings"
	"testing"

	"github.com/maraichr/docstream/internal/model"
)

func TestValidate_BuiltinsWellFormed(t *testing.T) {
	for _, p := range []RAGPipeline{VectorPipeline(), GraphPipeline()} {
		if errs := Validate(p); len(errs) != 0 {
			t.Errorf("pipeline %s: unexpected diagnostics %v", p.Name, errs)
		}
	}
}

func TestValidate_UnknownDependency(t *testing.T) {
	p := RAGPipeline{
		Name:       "broken",
		SystemType: model.SystemTypeVector,
		Workers: []WorkerDefinition{
			{Role: RoleParser, Stage: StageIngestion},
			{Role: RoleChunker, Stage: StageProcessing, DependsOn: []WorkerRole{RoleEmbedder}},
		},
	}

	errs := Validate(p)
	if len(errs) == 0 {
		t.Fatal("expected diagnostics for unknown dependency")
	}
	if !strings.Contains(errs[0], string(RoleEmbedder)) {
		t.Errorf("diagnostic should name the missing role: %q", errs[0])
	}
}

func TestValidate_RequiredDependsOnOptional(t *testing.T) {
	p := RAGPipeline{
		Name:       "broken",
		SystemType: model.SystemTypeVector,
		Workers: []WorkerDefinition{
			{Role: RoleEnricher, Stage: StageStorage, Optional: true},
			{Role: RoleIndexer, Stage: StageStorage, DependsOn: []WorkerRole{RoleEnricher}},
		},
	}

	errs := Validate(p)
	if len(errs) != 1 {
		t.Fatalf("expected 1 diagnostic, got %v", errs)
	}
	if !strings.Contains(errs[0], "missing required dependency") {
		t.Errorf("unexpected diagnostic %q", errs[0])
	}
}

func TestExecutionOrder_VectorChain(t *testing.T) {
	order, err := VectorPipeline().ExecutionOrder()
	if err != nil {
		t.Fatal(err)
	}

	want := []WorkerRole{RoleParser, RoleChunker, RoleEmbedder, RoleIndexer, RoleEnricher}
	if len(order) != len(want) {
		t.Fatalf("expected %d stages, got %d: %v", len(want), len(order), order)
	}
	for i, group := range order {
		if len(group) != 1 {
			t.Fatalf("stage %d: expected singleton, got %v", i, group)
		}
		if group[0] != want[i] {
			t.Errorf("stage %d: got %s, want %s", i, group[0], want[i])
		}
	}
}

func TestExecutionOrder_ConcurrentGroup(t *testing.T) {
	p := RAGPipeline{
		Name:       "fanout",
		SystemType: model.SystemTypeVector,
		Workers: []WorkerDefinition{
			{Role: RoleParser},
			{Role: RoleChunker, DependsOn: []WorkerRole{RoleParser}},
			{Role: RoleEmbedder, DependsOn: []WorkerRole{RoleParser}},
		},
	}

	order, err := p.ExecutionOrder()
	if err != nil {
		t.Fatal(err)
	}
	if len(order) != 2 {
		t.Fatalf("expected 2 stages, got %v", order)
	}
	if len(order[1]) != 2 {
		t.Errorf("expected chunker and embedder to share a stage, got %v", order[1])
	}
}

func TestExecutionOrder_CycleReported(t *testing.T) {
	p := RAGPipeline{
		Name:       "cyclic",
		SystemType: model.SystemTypeGraph,
		Workers: []WorkerDefinition{
			{Role: RoleParser},
			{Role: RoleChunker, DependsOn: []WorkerRole{RoleEmbedder}},
			{Role: RoleEmbedder, DependsOn: []WorkerRole{RoleChunker}},
		},
	}

	order, err := p.ExecutionOrder()
	if err == nil {
		t.Fatal("expected cycle error")
	}
	if !strings.Contains(err.Error(), string(RoleChunker)) || !strings.Contains(err.Error(), string(RoleEmbedder)) {
		t.Errorf("cycle error should name stuck roles: %v", err)
	}
	// The acyclic prefix is still returned.
	if len(order) != 1 || order[0][0] != RoleParser {
		t.Errorf("expected parser stage before the cycle, got %v", order)
	}
}

func TestRegistry_Lookup(t *testing.T) {
	r := DefaultRegistry()

	if _, ok := r.Pipeline(model.SystemTypeVector); !ok {
		t.Error("vector pipeline not registered")
	}
	if _, ok := r.Pipeline(model.SystemTypeGraph); !ok {
		t.Error("graph pipeline not registered")
	}
	if _, err := r.ExecutionOrder("unknown"); err == nil {
		t.Error("expected error for unregistered system type")
	}

	types := r.SystemTypes()
	if len(types) != 2 {
		t.Errorf("expected 2 system types, got %v", types)
	}
}

func TestWorkersByStageAndDependencies(t *testing.T) {
	p := GraphPipeline()

	processing := p.WorkersByStage(StageProcessing)
	if len(processing) != 4 {
		t.Errorf("expected 4 processing workers, got %d", len(processing))
	}

	deps := p.Dependencies(RoleGraphBuilder)
	if len(deps) != 1 || deps[0] != RoleCommunityDetector {
		t.Errorf("unexpected graph builder deps %v", deps)
	}
	if p.Dependencies("nope") != nil {
		t.Error("expected nil deps for unknown role")
	}
}
