// Package persistence provides the data storage abstraction for workflow
// definitions and executions.
package persistence

import (
	"context"
	"time"

	"github.com/praxishq/flowengine/pkg/models"
)

// Persistence is the root storage handle.
type Persistence interface {
	Definitions() DefinitionRepository
	Executions() ExecutionRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// DefinitionRepository stores workflow definitions. The engine never writes
// definitions; Save/Delete exist for the management surface.
type DefinitionRepository interface {
	Save(ctx context.Context, def *models.WorkflowDefinition) error
	ByID(ctx context.Context, id string) (*models.WorkflowDefinition, error)
	All(ctx context.Context) ([]*models.WorkflowDefinition, error)
	ActiveByObjectType(ctx context.Context, objectType string) ([]*models.WorkflowDefinition, error)
	Delete(ctx context.Context, id string) error
}

// ExecutionRepository stores workflow executions.
//
// Claim is the single concurrency primitive the engine relies on: a
// conditional waiting -> running transition that also clears the suspend
// state, so two concurrent sweeps can never both pick up the same
// execution.
type ExecutionRepository interface {
	Create(ctx context.Context, exec *models.WorkflowExecution) error
	ByID(ctx context.Context, id string) (*models.WorkflowExecution, error)
	Update(ctx context.Context, exec *models.WorkflowExecution) error
	Claim(ctx context.Context, id string) (bool, error)
	Due(ctx context.Context, before time.Time, limit int) ([]*models.WorkflowExecution, error)
	WaitingOnFieldChange(ctx context.Context, objectType, recordID string) ([]*models.WorkflowExecution, error)
	Running(ctx context.Context, updatedBefore time.Time) ([]*models.WorkflowExecution, error)
	ByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error)
}
