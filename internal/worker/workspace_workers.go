package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/maraichr/docstream/internal/messaging"
	"github.com/maraichr/docstream/internal/model"
	"github.com/maraichr/docstream/internal/status"
)

// reportWorkspace publishes a workspace status event on the given key.
// It returns only the publish error; the caller keeps ownership of the
// failure that triggered the report.
func reportWorkspace(ctx context.Context, broker Broker, key string, event messaging.WorkspaceEvent, st model.WorkspaceStatus, cause error) error {
	update := messaging.WorkspaceEvent{
		WorkspaceID: event.WorkspaceID,
		UserID:      event.UserID,
		Name:        event.Name,
		SystemType:  event.SystemType,
		Status:      string(st),
	}
	if cause != nil {
		update.Error = cause.Error()
	}
	if err := broker.Publish(ctx, key, update); err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	return nil
}

// ProvisionWorker prepares a workspace's backing stores. Vector workspaces
// get the similarity index, graph workspaces get the node constraints.
// Progress is reported on workspace.provision_status.
type ProvisionWorker struct {
	vectors VectorStore
	graph   GraphStore
	tracker StatusTracker
	broker  Broker
	logger  *slog.Logger
}

func NewProvisionWorker(vectors VectorStore, graph GraphStore, tracker StatusTracker, broker Broker, logger *slog.Logger) *ProvisionWorker {
	return &ProvisionWorker{vectors: vectors, graph: graph, tracker: tracker, broker: broker, logger: logger}
}

func (w *ProvisionWorker) Runtime(maxAttempts int, deadLetterKey string) *Runtime {
	return NewRuntime(Options{
		Role:          "workspace_provisioner",
		Queue:         QueueName("workspace_provisioner"),
		BindingKey:    messaging.KeyWorkspaceProvisionRequested,
		MaxAttempts:   maxAttempts,
		DeadLetterKey: deadLetterKey,
	}, w.broker, w.Process, w.logger)
}

func (w *ProvisionWorker) Process(ctx context.Context, body []byte) (Outcome, error) {
	var event messaging.WorkspaceEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return OutcomeDrop, fmt.Errorf("decode workspace event: %w", err)
	}
	if event.WorkspaceID == uuid.Nil {
		return OutcomeDrop, fmt.Errorf("workspace event missing workspace_id")
	}

	if _, err := w.tracker.UpdateWorkspaceStatus(ctx, event.WorkspaceID, status.WorkspacePatch{
		Status: model.WorkspaceStatusProvisioning,
	}); err != nil {
		return OutcomeRetry, err
	}

	var provisionErr error
	outcome := OutcomeRetry
	switch model.SystemType(event.SystemType) {
	case model.SystemTypeVector:
		provisionErr = w.vectors.EnsureVectorIndex(ctx)
	case model.SystemTypeGraph:
		if w.graph == nil {
			provisionErr = fmt.Errorf("graph store not configured on this deployment")
			outcome = OutcomeDrop
		} else {
			provisionErr = w.graph.EnsureConstraints(ctx)
		}
	default:
		provisionErr = fmt.Errorf("unknown system type %q", event.SystemType)
		outcome = OutcomeDrop
	}

	if provisionErr != nil {
		markWorkspaceFailed(ctx, w.tracker, w.logger, event.WorkspaceID, provisionErr)
		if err := reportWorkspace(ctx, w.broker, messaging.KeyWorkspaceProvisionStatus, event, model.WorkspaceStatusFailed, provisionErr); err != nil {
			return OutcomeRetry, err
		}
		return outcome, provisionErr
	}

	if _, err := w.tracker.UpdateWorkspaceStatus(ctx, event.WorkspaceID, status.WorkspacePatch{
		Status: model.WorkspaceStatusReady,
	}); err != nil {
		return OutcomeRetry, err
	}

	if err := reportWorkspace(ctx, w.broker, messaging.KeyWorkspaceProvisionStatus, event, model.WorkspaceStatusReady, nil); err != nil {
		return OutcomeRetry, err
	}

	w.logger.Info("workspace provisioned",
		slog.String("workspace_id", event.WorkspaceID.String()),
		slog.String("system_type", event.SystemType))
	return OutcomeOK, nil
}

// DeletionWorker tears a workspace down: chunks, embeddings and documents
// from the relational store, graph nodes when the workspace is graph-backed.
// Progress is reported on workspace.deletion_status.
type DeletionWorker struct {
	vectors VectorStore
	graph   GraphStore
	tracker StatusTracker
	broker  Broker
	logger  *slog.Logger
}

func NewDeletionWorker(vectors VectorStore, graph GraphStore, tracker StatusTracker, broker Broker, logger *slog.Logger) *DeletionWorker {
	return &DeletionWorker{vectors: vectors, graph: graph, tracker: tracker, broker: broker, logger: logger}
}

func (w *DeletionWorker) Runtime(maxAttempts int, deadLetterKey string) *Runtime {
	return NewRuntime(Options{
		Role:          "workspace_deleter",
		Queue:         QueueName("workspace_deleter"),
		BindingKey:    messaging.KeyWorkspaceDeletionRequested,
		MaxAttempts:   maxAttempts,
		DeadLetterKey: deadLetterKey,
	}, w.broker, w.Process, w.logger)
}

func (w *DeletionWorker) Process(ctx context.Context, body []byte) (Outcome, error) {
	var event messaging.WorkspaceEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return OutcomeDrop, fmt.Errorf("decode workspace event: %w", err)
	}
	if event.WorkspaceID == uuid.Nil {
		return OutcomeDrop, fmt.Errorf("workspace event missing workspace_id")
	}

	if _, err := w.tracker.UpdateWorkspaceStatus(ctx, event.WorkspaceID, status.WorkspacePatch{
		Status: model.WorkspaceStatusDeleting,
	}); err != nil {
		return OutcomeRetry, err
	}

	deleteErr := w.vectors.DeleteWorkspaceData(ctx, event.WorkspaceID)
	if deleteErr == nil && model.SystemType(event.SystemType) == model.SystemTypeGraph && w.graph != nil {
		deleteErr = w.graph.DeleteWorkspace(ctx, event.WorkspaceID)
	}

	if deleteErr != nil {
		markWorkspaceFailed(ctx, w.tracker, w.logger, event.WorkspaceID, deleteErr)
		if err := reportWorkspace(ctx, w.broker, messaging.KeyWorkspaceDeletionStatus, event, model.WorkspaceStatusFailed, deleteErr); err != nil {
			return OutcomeRetry, err
		}
		return OutcomeRetry, deleteErr
	}

	if _, err := w.tracker.UpdateWorkspaceStatus(ctx, event.WorkspaceID, status.WorkspacePatch{
		Status: model.WorkspaceStatusDeleted,
	}); err != nil {
		return OutcomeRetry, err
	}

	if err := reportWorkspace(ctx, w.broker, messaging.KeyWorkspaceDeletionStatus, event, model.WorkspaceStatusDeleted, nil); err != nil {
		return OutcomeRetry, err
	}

	w.logger.Info("workspace deleted", slog.String("workspace_id", event.WorkspaceID.String()))
	return OutcomeOK, nil
}
