package steps

import (
	"fmt"

	"github.com/praxishq/flowengine/pkg/models"
)

// The loop counter lives in the execution's variables so it survives
// suspension mid-body. JSON round-trips numbers as float64, so the counter
// is read through a numeric coercion rather than an int assertion.
func (e *Executor) executeLoop(step *models.Step, state *State) (Result, error) {
	if step.Loop == nil {
		return Result{}, fmt.Errorf("step %s: loop step has no loop config", step.ID)
	}

	if state.Execution.Variables == nil {
		state.Execution.Variables = make(map[string]any)
	}

	counter := 0

	if raw, ok := state.Execution.Variables[step.Loop.Variable]; ok {
		switch v := raw.(type) {
		case int:
			counter = v
		case float64:
			counter = int(v)
		default:
			return Result{}, fmt.Errorf("step %s: loop variable %q holds non-numeric value %v",
				step.ID, step.Loop.Variable, raw)
		}
	}

	if counter < step.Loop.Count {
		state.Execution.Variables[step.Loop.Variable] = counter + 1

		return advance(step.Loop.BodyStepID,
			fmt.Sprintf("loop pass %d of %d", counter+1, step.Loop.Count)), nil
	}

	// Reset so a later re-entry into the same loop starts fresh.
	delete(state.Execution.Variables, step.Loop.Variable)

	return advance(step.NextStepID, fmt.Sprintf("loop finished after %d passes", step.Loop.Count)), nil
}
