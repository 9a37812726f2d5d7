package steps

import (
	"fmt"

	"github.com/praxishq/flowengine/pkg/models"
)

// A branch surfaces evaluation errors instead of treating them as false:
// an uncoercible comparison means the workflow author made a mistake, and
// masking it would silently route every record down the false edge.
func (e *Executor) executeBranch(step *models.Step, state *State) (Result, error) {
	if step.Branch == nil {
		return Result{}, fmt.Errorf("step %s: branch step has no branch config", step.ID)
	}

	matched, err := e.evaluator.EvaluateBool(step.Branch.Condition, state.Record, state.Execution.Variables)
	if err != nil {
		return Result{}, fmt.Errorf("step %s: evaluate branch condition: %w", step.ID, err)
	}

	if matched {
		return advance(step.Branch.TrueStepID, "condition true"), nil
	}

	return advance(step.Branch.FalseStepID, "condition false"), nil
}
