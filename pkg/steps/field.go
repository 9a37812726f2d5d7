package steps

import (
	"context"
	"fmt"

	"github.com/praxishq/flowengine/pkg/models"
)

func (e *Executor) executeUpdateField(ctx context.Context, step *models.Step, state *State) (Result, error) {
	if step.Field == nil {
		return Result{}, fmt.Errorf("step %s: update_field step has no field config", step.ID)
	}

	value, err := e.evaluator.EvaluateValue(step.Field.Value, state.Record, state.Execution.Variables)
	if err != nil {
		return Result{}, fmt.Errorf("step %s: evaluate value for field %q: %w", step.ID, step.Field.Field, err)
	}

	exec := state.Execution
	if err := e.caps.Records.UpdateField(ctx, exec.ObjectType, exec.RecordID, step.Field.Field, value); err != nil {
		return Result{}, fmt.Errorf("step %s: update field %q: %w", step.ID, step.Field.Field, err)
	}

	// Keep the local snapshot in sync so later steps in the same pass see
	// the written value without a re-read.
	state.Record[step.Field.Field] = value

	return advance(step.NextStepID, fmt.Sprintf("field %s set to %v", step.Field.Field, value)), nil
}
