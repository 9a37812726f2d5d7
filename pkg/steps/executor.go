package steps

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/praxishq/flowengine/pkg/clock"
	"github.com/praxishq/flowengine/pkg/expression"
	"github.com/praxishq/flowengine/pkg/models"
	"github.com/praxishq/flowengine/pkg/protocol"
)

// State is the mutable execution state a step runs against. Record is the
// triggering record's snapshot; update_field steps mutate it in place so
// later steps in the same pass observe the new value.
type State struct {
	Execution *models.WorkflowExecution
	Record    map[string]any
}

// Executor dispatches steps to their kind-specific behavior.
type Executor struct {
	caps      protocol.Capabilities
	evaluator *expression.Evaluator
	clock     clock.Clock
	logger    *slog.Logger
}

func NewExecutor(caps protocol.Capabilities, evaluator *expression.Evaluator, clk clock.Clock, logger *slog.Logger) *Executor {
	return &Executor{
		caps:      caps,
		evaluator: evaluator,
		clock:     clk,
		logger:    logger.With("module", "steps"),
	}
}

// Execute runs a single step. The switch is exhaustive over the closed set
// of step kinds; an unknown kind is a definition error.
func (e *Executor) Execute(ctx context.Context, step *models.Step, state *State) (Result, error) {
	switch step.Kind {
	case models.StepSendEmail:
		return e.executeSendEmail(ctx, step, state)
	case models.StepSendSMS:
		return e.executeSendSMS(ctx, step, state)
	case models.StepCreateTask:
		return e.executeCreateTask(ctx, step, state)
	case models.StepUpdateField:
		return e.executeUpdateField(ctx, step, state)
	case models.StepWebhook:
		return e.executeWebhook(ctx, step, state)
	case models.StepBranch:
		return e.executeBranch(step, state)
	case models.StepWait:
		return e.executeWait(step)
	case models.StepLoop:
		return e.executeLoop(step, state)
	case models.StepEnd:
		return terminate(models.ExecutionCompleted, ""), nil
	default:
		return Result{}, fmt.Errorf("unknown step kind %q", step.Kind)
	}
}

// HasSideEffects reports whether a step kind performs an external action.
// The engine writes an idempotency marker into history before running
// these, so a crash between side effect and persist is detectable on
// recovery.
func HasSideEffects(kind models.StepKind) bool {
	switch kind {
	case models.StepSendEmail, models.StepSendSMS, models.StepCreateTask,
		models.StepUpdateField, models.StepWebhook:
		return true
	default:
		return false
	}
}
