// Package engine implements the workflow orchestrator: it walks a workflow's
// step graph for one execution, dispatching to step executors and persisting
// every state transition, until the execution suspends or terminates.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/praxishq/flowengine/pkg/clock"
	"github.com/praxishq/flowengine/pkg/eventbus"
	"github.com/praxishq/flowengine/pkg/events"
	"github.com/praxishq/flowengine/pkg/expression"
	"github.com/praxishq/flowengine/pkg/models"
	"github.com/praxishq/flowengine/pkg/otelhelper"
	"github.com/praxishq/flowengine/pkg/persistence"
	"github.com/praxishq/flowengine/pkg/protocol"
	"github.com/praxishq/flowengine/pkg/steps"
)

// DefaultStepLimit caps step advances per ProcessExecution invocation. A
// cyclic step graph with no reachable end would otherwise spin forever.
const DefaultStepLimit = 100

type Engine struct {
	persistence persistence.Persistence
	caps        protocol.Capabilities
	executor    *steps.Executor
	eventBus    eventbus.EventBus
	clock       clock.Clock
	logger      *slog.Logger
	tracer      trace.Tracer
	stepLimit   int
}

type Option func(*Engine)

// WithStepLimit overrides the per-invocation step advance ceiling.
func WithStepLimit(limit int) Option {
	return func(e *Engine) {
		e.stepLimit = limit
	}
}

// WithTracer attaches a tracer; without it spans are no-ops.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

func New(
	store persistence.Persistence,
	caps protocol.Capabilities,
	eventBus eventbus.EventBus,
	clk clock.Clock,
	logger *slog.Logger,
	opts ...Option,
) *Engine {
	engine := &Engine{
		persistence: store,
		caps:        caps,
		executor:    steps.NewExecutor(caps, expression.NewEvaluator(), clk, logger),
		eventBus:    eventBus,
		clock:       clk,
		logger:      logger.With("module", "engine"),
		tracer:      noop.NewTracerProvider().Tracer("engine"),
		stepLimit:   DefaultStepLimit,
	}

	for _, opt := range opts {
		opt(engine)
	}

	return engine
}

// ProcessExecution runs one execution until it suspends or terminates.
// Re-entry is idempotent: a terminal execution is a no-op, and a waiting
// execution whose resume condition is not yet satisfied is left alone.
// Outcome is signalled through the persisted execution state; an error
// return means the execution could not be processed at all (unknown id,
// storage failure).
func (e *Engine) ProcessExecution(ctx context.Context, executionID string) error {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.process_execution",
		attribute.String(otelhelper.ExecutionIDKey, executionID),
	)
	defer span.End()

	executions := e.persistence.Executions()

	exec, err := executions.ByID(ctx, executionID)
	if err != nil {
		otelhelper.SetError(span, err)

		return fmt.Errorf("load execution %s: %w", executionID, err)
	}

	span.SetAttributes(
		attribute.String(otelhelper.WorkflowIDKey, exec.WorkflowID),
		attribute.String(otelhelper.ObjectTypeKey, exec.ObjectType),
		attribute.String(otelhelper.RecordIDKey, exec.RecordID),
	)

	if exec.IsTerminal() {
		e.logger.DebugContext(ctx, "execution already terminal, nothing to do",
			"execution_id", exec.ID, "status", exec.Status)

		return nil
	}

	if exec.Status == models.ExecutionWaiting {
		satisfied, err := e.waitSatisfied(ctx, exec)
		if err != nil {
			otelhelper.SetError(span, err)

			return fmt.Errorf("check resume condition for %s: %w", exec.ID, err)
		}

		if !satisfied {
			return nil
		}

		claimed, err := executions.Claim(ctx, exec.ID)
		if err != nil {
			otelhelper.SetError(span, err)

			return fmt.Errorf("claim execution %s: %w", exec.ID, err)
		}

		if !claimed {
			e.logger.DebugContext(ctx, "execution claimed elsewhere, skipping", "execution_id", exec.ID)

			return nil
		}

		exec.Status = models.ExecutionRunning
		exec.WaitingFor = nil
		exec.NextRunAt = nil

		e.publish(ctx, events.ExecutionResumed{
			BaseEvent:   events.NewBaseEvent(events.ExecutionResumedEvent, exec.WorkflowID),
			ExecutionID: exec.ID,
			StepID:      exec.CurrentStepID,
		})
	}

	def, err := e.persistence.Definitions().ByID(ctx, exec.WorkflowID)
	if err != nil {
		return e.failExecution(ctx, exec, nil, "", fmt.Errorf("load workflow definition %s: %w", exec.WorkflowID, err))
	}

	record, err := e.caps.Records.Get(ctx, exec.ObjectType, exec.RecordID)
	if err != nil {
		return e.failExecution(ctx, exec, nil, "", fmt.Errorf("load record %s/%s: %w", exec.ObjectType, exec.RecordID, err))
	}

	return e.runLoop(ctx, def, &steps.State{Execution: exec, Record: record})
}

// waitSatisfied reports whether a waiting execution may resume now. Delay
// waits compare the clock against the stored resume time. Field-change
// waits with an expected value re-read the record; without one, only the
// trigger dispatcher can resume them by observing the mutation itself.
func (e *Engine) waitSatisfied(ctx context.Context, exec *models.WorkflowExecution) (bool, error) {
	waiting := exec.WaitingFor
	if waiting == nil {
		return true, nil
	}

	switch waiting.Type {
	case models.WaitDelay:
		return waiting.ResumeAt != nil && !e.clock.Now().Before(*waiting.ResumeAt), nil
	case models.WaitFieldChange:
		if waiting.ExpectedValue == nil {
			return false, nil
		}

		record, err := e.caps.Records.Get(ctx, exec.ObjectType, exec.RecordID)
		if err != nil {
			return false, err
		}

		return expression.LooseEquals(
			expression.ResolvePath(waiting.Field, record, exec.Variables),
			waiting.ExpectedValue,
		), nil
	default:
		return false, nil
	}
}

func (e *Engine) runLoop(ctx context.Context, def *models.WorkflowDefinition, state *steps.State) error {
	exec := state.Execution
	executed := 0

	for exec.CurrentStepID != "" && exec.Status == models.ExecutionRunning {
		if executed >= e.stepLimit {
			return e.failExecutionWithReason(ctx, exec, nil, models.FailureStepLimit,
				fmt.Errorf("exceeded %d step advances in one pass, assuming a step cycle", e.stepLimit))
		}

		step, ok := def.StepByID(exec.CurrentStepID)
		if !ok {
			return e.failExecution(ctx, exec, nil, "",
				fmt.Errorf("step %q not found in workflow %s", exec.CurrentStepID, def.ID))
		}

		stepCtx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.step",
			attribute.String(otelhelper.StepIDKey, step.ID),
			attribute.String(otelhelper.StepKindKey, string(step.Kind)),
		)

		done, err := e.runStep(stepCtx, step, state)
		span.End()

		executed++

		if err != nil {
			return err
		}

		if done {
			return nil
		}
	}

	// CurrentStepID drained without an explicit end step.
	return e.completeExecution(ctx, exec)
}

// runStep executes one step and persists the resulting transition. It
// returns done=true when the execution suspended or terminated and the
// loop should stop.
func (e *Engine) runStep(ctx context.Context, step *models.Step, state *steps.State) (bool, error) {
	exec := state.Execution

	if steps.HasSideEffects(step.Kind) {
		last := exec.LastHistory()
		if last != nil && last.StepID == step.ID && last.Status == models.HistoryStepStarted {
			// A previous pass crashed between the side effect and the
			// persisted advance. Do not repeat the side effect.
			e.upgradeStarted(exec, step.ID, models.HistoryStepWarning,
				"skipped on re-entry: side effect may have already run")
			exec.CurrentStepID = step.NextStepID

			if err := e.update(ctx, exec); err != nil {
				return true, err
			}

			return false, nil
		}

		exec.AppendHistory(models.HistoryEntry{
			StepID: step.ID,
			Kind:   step.Kind,
			Status: models.HistoryStepStarted,
			At:     e.clock.Now(),
		})

		if err := e.update(ctx, exec); err != nil {
			return true, err
		}
	}

	result, err := e.executor.Execute(ctx, step, state)
	if err != nil {
		return true, e.failExecution(ctx, exec, step, err.Error(), err)
	}

	switch {
	case result.Suspend != nil:
		return true, e.suspendExecution(ctx, exec, step, result)
	case result.Terminate != "":
		return true, e.terminateExecution(ctx, exec, step, result)
	default:
		e.recordOutcome(exec, step, result)
		exec.CurrentStepID = result.NextStepID

		if err := e.update(ctx, exec); err != nil {
			return true, err
		}

		return false, nil
	}
}

// recordOutcome writes a step's completion into history, upgrading the
// started marker in place when one was written for this step.
func (e *Engine) recordOutcome(exec *models.WorkflowExecution, step *models.Step, result steps.Result) {
	status := models.HistoryStepCompleted
	if result.Warning {
		status = models.HistoryStepWarning
	}

	last := exec.LastHistory()
	if last != nil && last.StepID == step.ID && last.Status == models.HistoryStepStarted {
		e.upgradeStarted(exec, step.ID, status, result.Detail)

		return
	}

	exec.AppendHistory(models.HistoryEntry{
		StepID: step.ID,
		Kind:   step.Kind,
		Status: status,
		Detail: result.Detail,
		At:     e.clock.Now(),
	})
}

func (e *Engine) upgradeStarted(exec *models.WorkflowExecution, stepID string, status models.HistoryStatus, detail string) {
	for i := len(exec.History) - 1; i >= 0; i-- {
		entry := &exec.History[i]
		if entry.StepID == stepID && entry.Status == models.HistoryStepStarted {
			entry.Status = status
			entry.Detail = detail
			entry.At = e.clock.Now()

			return
		}
	}
}

func (e *Engine) suspendExecution(ctx context.Context, exec *models.WorkflowExecution, step *models.Step, result steps.Result) error {
	e.recordOutcome(exec, step, result)

	exec.Status = models.ExecutionWaiting
	exec.WaitingFor = result.Suspend
	exec.NextRunAt = nil

	if result.Suspend.Type == models.WaitDelay {
		exec.NextRunAt = result.Suspend.ResumeAt
	}

	// Resume continues past the wait step, not at it.
	exec.CurrentStepID = step.NextStepID

	if err := e.update(ctx, exec); err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "execution suspended",
		"execution_id", exec.ID, "step_id", step.ID, "wait_type", result.Suspend.Type)

	e.publish(ctx, events.ExecutionSuspended{
		BaseEvent:   events.NewBaseEvent(events.ExecutionSuspendedEvent, exec.WorkflowID),
		ExecutionID: exec.ID,
		StepID:      step.ID,
		WaitType:    string(result.Suspend.Type),
		ResumeAt:    result.Suspend.ResumeAt,
		Field:       result.Suspend.Field,
	})

	return nil
}

func (e *Engine) terminateExecution(ctx context.Context, exec *models.WorkflowExecution, step *models.Step, result steps.Result) error {
	if result.Terminate == models.ExecutionCompleted {
		return e.completeExecution(ctx, exec)
	}

	return e.failExecutionWithReason(ctx, exec, step, result.Detail,
		fmt.Errorf("step %s terminated execution: %s", step.ID, result.Detail))
}

func (e *Engine) completeExecution(ctx context.Context, exec *models.WorkflowExecution) error {
	now := e.clock.Now()

	executed := 0

	for _, entry := range exec.History {
		if entry.StepID != "" {
			executed++
		}
	}

	exec.Status = models.ExecutionCompleted
	exec.CurrentStepID = ""
	exec.CompletedAt = &now
	exec.AppendHistory(models.HistoryEntry{
		Status: models.HistoryExecutionDone,
		At:     now,
	})

	if err := e.update(ctx, exec); err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "execution completed", "execution_id", exec.ID, "workflow_id", exec.WorkflowID)

	e.publish(ctx, events.ExecutionCompleted{
		BaseEvent:     events.NewBaseEvent(events.ExecutionCompletedEvent, exec.WorkflowID),
		ExecutionID:   exec.ID,
		StepsExecuted: executed,
		DurationMs:    now.Sub(exec.CreatedAt).Milliseconds(),
	})

	return nil
}

func (e *Engine) failExecution(ctx context.Context, exec *models.WorkflowExecution, step *models.Step, reason string, cause error) error {
	if reason == "" {
		reason = cause.Error()
	}

	return e.failExecutionWithReason(ctx, exec, step, reason, cause)
}

// failExecutionWithReason marks the execution failed and persists it. The
// error is recorded in state, not returned: callers of ProcessExecution
// read outcomes from the execution, and a workflow-level failure is a
// successfully processed execution.
func (e *Engine) failExecutionWithReason(ctx context.Context, exec *models.WorkflowExecution, step *models.Step, reason string, cause error) error {
	now := e.clock.Now()

	stepID := exec.CurrentStepID

	if step != nil {
		stepID = step.ID

		last := exec.LastHistory()
		if last != nil && last.StepID == step.ID && last.Status == models.HistoryStepStarted {
			e.upgradeStarted(exec, step.ID, models.HistoryStepFailed, cause.Error())
		} else {
			exec.AppendHistory(models.HistoryEntry{
				StepID: step.ID,
				Kind:   step.Kind,
				Status: models.HistoryStepFailed,
				Detail: cause.Error(),
				At:     now,
			})
		}
	}

	exec.Status = models.ExecutionFailed
	exec.FailureReason = reason
	exec.CompletedAt = &now
	exec.AppendHistory(models.HistoryEntry{
		Status: models.HistoryExecutionFail,
		Detail: cause.Error(),
		At:     now,
	})

	if err := e.update(ctx, exec); err != nil {
		return err
	}

	e.logger.ErrorContext(ctx, "execution failed",
		"execution_id", exec.ID, "workflow_id", exec.WorkflowID, "reason", reason, "error", cause)

	e.publish(ctx, events.ExecutionFailed{
		BaseEvent:   events.NewBaseEvent(events.ExecutionFailedEvent, exec.WorkflowID),
		ExecutionID: exec.ID,
		StepID:      stepID,
		Reason:      reason,
		Error:       cause.Error(),
	})

	return nil
}

func (e *Engine) update(ctx context.Context, exec *models.WorkflowExecution) error {
	exec.UpdatedAt = e.clock.Now()

	if err := e.persistence.Executions().Update(ctx, exec); err != nil {
		return fmt.Errorf("persist execution %s: %w", exec.ID, err)
	}

	return nil
}

func (e *Engine) publish(ctx context.Context, event eventbus.Event) {
	if e.eventBus == nil {
		return
	}

	if err := e.eventBus.Publish(ctx, string(event.GetType()), event); err != nil {
		e.logger.WarnContext(ctx, "failed to publish lifecycle event", "event_type", event.GetType(), "error", err)
	}
}
