package steps

import (
	"context"
	"fmt"
	"time"

	"github.com/praxishq/flowengine/pkg/models"
)

func (e *Executor) executeCreateTask(ctx context.Context, step *models.Step, state *State) (Result, error) {
	if step.Task == nil {
		return Result{}, fmt.Errorf("step %s: create_task step has no task config", step.ID)
	}

	task := models.TaskRequest{
		Title:       step.Task.Title,
		Description: step.Task.Description,
		ObjectType:  state.Execution.ObjectType,
		RecordID:    state.Execution.RecordID,
		WorkflowID:  state.Execution.WorkflowID,
		ExecutionID: state.Execution.ID,
	}

	if step.Task.DueInDays > 0 {
		dueAt := e.clock.Now().Add(time.Duration(step.Task.DueInDays) * 24 * time.Hour)
		task.DueAt = &dueAt
	}

	if err := e.caps.Tasks.CreateTask(ctx, task); err != nil {
		return Result{}, fmt.Errorf("step %s: create task: %w", step.ID, err)
	}

	return advance(step.NextStepID, fmt.Sprintf("task %q created", step.Task.Title)), nil
}
