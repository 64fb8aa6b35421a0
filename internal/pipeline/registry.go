package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/maraichr/docstream/internal/model"
)

// WorkerRole names a function in the pipeline.
type WorkerRole string

const (
	RoleParser                WorkerRole = "parser"
	RoleChunker               WorkerRole = "chunker"
	RoleEmbedder              WorkerRole = "embedder"
	RoleIndexer               WorkerRole = "indexer"
	RoleEntityExtractor       WorkerRole = "entity_extractor"
	RoleRelationshipExtractor WorkerRole = "relationship_extractor"
	RoleCommunityDetector     WorkerRole = "community_detector"
	RoleGraphBuilder          WorkerRole = "graph_builder"
	RoleEnricher              WorkerRole = "enricher"
	RoleRetriever             WorkerRole = "retriever"
	RoleGenerator             WorkerRole = "generator"
)

// Stage is the coarse phase a worker role belongs to.
type Stage string

const (
	StageIngestion  Stage = "ingestion"
	StageProcessing Stage = "processing"
	StageStorage    Stage = "storage"
	StageRetrieval  Stage = "retrieval"
	StageGeneration Stage = "generation"
)

// WorkerDefinition declares one role, its stage, and the roles that must
// have completed before it runs. Optional workers may be omitted from a
// deployment without failing validation.
type WorkerDefinition struct {
	Role        WorkerRole
	Stage       Stage
	Name        string
	Description string
	DependsOn   []WorkerRole
	Optional    bool
}

// RAGPipeline is the ordered worker set for one system type. It is
// descriptive metadata: live workers are bound to fixed routing keys and do
// not consult it at runtime. Its value is pre-deployment validation and
// documentation of the two concrete pipelines.
type RAGPipeline struct {
	Name       string
	SystemType model.SystemType
	Workers    []WorkerDefinition
}

// WorkersByStage returns the definitions belonging to stage, in declaration
// order.
func (p RAGPipeline) WorkersByStage(stage Stage) []WorkerDefinition {
	var out []WorkerDefinition
	for _, w := range p.Workers {
		if w.Stage == stage {
			out = append(out, w)
		}
	}
	return out
}

// Dependencies returns the declared dependencies of role, or nil when the
// role is not part of the pipeline.
func (p RAGPipeline) Dependencies(role WorkerRole) []WorkerRole {
	for _, w := range p.Workers {
		if w.Role == role {
			return w.DependsOn
		}
	}
	return nil
}

func (p RAGPipeline) definition(role WorkerRole) (WorkerDefinition, bool) {
	for _, w := range p.Workers {
		if w.Role == role {
			return w, true
		}
	}
	return WorkerDefinition{}, false
}

// Validate checks the pipeline's dependency declarations and returns
// diagnostics. An empty result means the pipeline is well-formed. It never
// fails hard: the diagnostics are meant for pre-deployment tooling.
func Validate(p RAGPipeline) []string {
	var errs []string

	for _, w := range p.Workers {
		for _, dep := range w.DependsOn {
			def, ok := p.definition(dep)
			if !ok {
				errs = append(errs, fmt.Sprintf("worker %s depends on unknown worker %s", w.Role, dep))
				continue
			}
			if !w.Optional && def.Optional {
				errs = append(errs, fmt.Sprintf("worker %s is missing required dependency %s (declared optional)", w.Role, dep))
			}
		}
	}

	return errs
}

// ExecutionOrder computes concurrency stages: each returned group contains
// roles whose dependencies are all satisfied by earlier groups, so roles
// within a group can run concurrently. Roles left unschedulable by a
// dependency cycle are reported as an error rather than silently dropped.
func (p RAGPipeline) ExecutionOrder() ([][]WorkerRole, error) {
	scheduled := make(map[WorkerRole]bool, len(p.Workers))
	var order [][]WorkerRole

	for len(scheduled) < len(p.Workers) {
		var ready []WorkerRole
		for _, w := range p.Workers {
			if scheduled[w.Role] {
				continue
			}
			ok := true
			for _, dep := range w.DependsOn {
				// Unknown dependencies are Validate's concern; here they
				// only block scheduling when they name a pipeline member.
				if _, exists := p.definition(dep); exists && !scheduled[dep] {
					ok = false
					break
				}
			}
			if ok {
				ready = append(ready, w.Role)
			}
		}

		if len(ready) == 0 {
			var stuck []string
			for _, w := range p.Workers {
				if !scheduled[w.Role] {
					stuck = append(stuck, string(w.Role))
				}
			}
			sort.Strings(stuck)
			return order, fmt.Errorf("dependency cycle among workers: %s", strings.Join(stuck, ", "))
		}

		for _, r := range ready {
			scheduled[r] = true
		}
		order = append(order, ready)
	}

	return order, nil
}

// Registry holds the registered pipelines keyed by system type. It is built
// once at startup and passed to whatever tooling needs it; there is no
// package-level instance.
type Registry struct {
	pipelines map[model.SystemType]RAGPipeline
}

func NewRegistry() *Registry {
	return &Registry{pipelines: make(map[model.SystemType]RAGPipeline)}
}

// Register stores p under its system type, replacing any previous pipeline
// for that type.
func (r *Registry) Register(p RAGPipeline) {
	r.pipelines[p.SystemType] = p
}

// Pipeline looks up the pipeline for systemType.
func (r *Registry) Pipeline(systemType model.SystemType) (RAGPipeline, bool) {
	p, ok := r.pipelines[systemType]
	return p, ok
}

// SystemTypes lists the registered system types in sorted order.
func (r *Registry) SystemTypes() []model.SystemType {
	out := make([]model.SystemType, 0, len(r.pipelines))
	for st := range r.pipelines {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ExecutionOrder computes the execution order for the pipeline registered
// under systemType.
func (r *Registry) ExecutionOrder(systemType model.SystemType) ([][]WorkerRole, error) {
	p, ok := r.pipelines[systemType]
	if !ok {
		return nil, fmt.Errorf("no pipeline registered for system type %q", systemType)
	}
	return p.ExecutionOrder()
}
