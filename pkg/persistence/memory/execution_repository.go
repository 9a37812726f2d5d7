package memory

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/praxishq/flowengine/pkg/models"
	"github.com/praxishq/flowengine/pkg/persistence"
)

// ExecutionRepository stores workflow executions in a map. Claim performs a
// compare-and-swap under the repository lock, mirroring the conditional
// UPDATE of the SQL driver.
type ExecutionRepository struct {
	mu         sync.Mutex
	executions map[string]*models.WorkflowExecution
}

// NewExecutionRepository creates an empty execution repository.
func NewExecutionRepository() *ExecutionRepository {
	return &ExecutionRepository{
		executions: make(map[string]*models.WorkflowExecution),
	}
}

func cloneExecution(e *models.WorkflowExecution) *models.WorkflowExecution {
	c := *e
	c.Variables = maps.Clone(e.Variables)
	c.History = slices.Clone(e.History)

	if e.WaitingFor != nil {
		w := *e.WaitingFor
		c.WaitingFor = &w
	}

	if e.NextRunAt != nil {
		t := *e.NextRunAt
		c.NextRunAt = &t
	}

	if e.CompletedAt != nil {
		t := *e.CompletedAt
		c.CompletedAt = &t
	}

	return &c
}

func (r *ExecutionRepository) Create(_ context.Context, exec *models.WorkflowExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.executions[exec.ID] = cloneExecution(exec)

	return nil
}

func (r *ExecutionRepository) ByID(_ context.Context, id string) (*models.WorkflowExecution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	exec, ok := r.executions[id]
	if !ok {
		return nil, persistence.NewStoreError("ByID", id, persistence.ErrExecutionNotFound)
	}

	return cloneExecution(exec), nil
}

func (r *ExecutionRepository) Update(_ context.Context, exec *models.WorkflowExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.executions[exec.ID]; !ok {
		return persistence.NewStoreError("Update", exec.ID, persistence.ErrExecutionNotFound)
	}

	r.executions[exec.ID] = cloneExecution(exec)

	return nil
}

// Claim atomically transitions a waiting execution to running, clearing its
// suspend state. Returns false when the execution is not waiting, which a
// concurrent claimer treats as "already taken".
func (r *ExecutionRepository) Claim(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	exec, ok := r.executions[id]
	if !ok {
		return false, persistence.NewStoreError("Claim", id, persistence.ErrExecutionNotFound)
	}

	if exec.Status != models.ExecutionWaiting {
		return false, nil
	}

	exec.Status = models.ExecutionRunning
	exec.WaitingFor = nil
	exec.NextRunAt = nil
	exec.UpdatedAt = time.Now().UTC()

	return true, nil
}

func (r *ExecutionRepository) Due(_ context.Context, before time.Time, limit int) ([]*models.WorkflowExecution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var due []*models.WorkflowExecution

	for _, exec := range r.executions {
		if exec.Status != models.ExecutionWaiting || exec.WaitingFor == nil || exec.WaitingFor.Type != models.WaitDelay {
			continue
		}

		if exec.NextRunAt == nil || exec.NextRunAt.After(before) {
			continue
		}

		due = append(due, cloneExecution(exec))
		if limit > 0 && len(due) >= limit {
			break
		}
	}

	return due, nil
}

func (r *ExecutionRepository) WaitingOnFieldChange(_ context.Context, objectType, recordID string) ([]*models.WorkflowExecution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var waiting []*models.WorkflowExecution

	for _, exec := range r.executions {
		if exec.Status != models.ExecutionWaiting || exec.WaitingFor == nil || exec.WaitingFor.Type != models.WaitFieldChange {
			continue
		}

		if exec.ObjectType == objectType && exec.RecordID == recordID {
			waiting = append(waiting, cloneExecution(exec))
		}
	}

	return waiting, nil
}

func (r *ExecutionRepository) Running(_ context.Context, updatedBefore time.Time) ([]*models.WorkflowExecution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var running []*models.WorkflowExecution

	for _, exec := range r.executions {
		if exec.Status == models.ExecutionRunning && exec.UpdatedAt.Before(updatedBefore) {
			running = append(running, cloneExecution(exec))
		}
	}

	return running, nil
}

func (r *ExecutionRepository) ByWorkflow(_ context.Context, workflowID string) ([]*models.WorkflowExecution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var execs []*models.WorkflowExecution

	for _, exec := range r.executions {
		if exec.WorkflowID == workflowID {
			execs = append(execs, cloneExecution(exec))
		}
	}

	return execs, nil
}
