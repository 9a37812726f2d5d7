// Package dispatcher matches incoming domain events against active workflow
// definitions, creates executions for the matches, and resumes executions
// waiting on a field change it observes.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/praxishq/flowengine/pkg/clock"
	"github.com/praxishq/flowengine/pkg/engine"
	"github.com/praxishq/flowengine/pkg/eventbus"
	"github.com/praxishq/flowengine/pkg/events"
	"github.com/praxishq/flowengine/pkg/expression"
	"github.com/praxishq/flowengine/pkg/models"
	"github.com/praxishq/flowengine/pkg/otelhelper"
	"github.com/praxishq/flowengine/pkg/persistence"
)

type Dispatcher struct {
	persistence persistence.Persistence
	engine      *engine.Engine
	eventBus    eventbus.EventBus
	clock       clock.Clock
	logger      *slog.Logger
	tracer      trace.Tracer
}

func New(
	store persistence.Persistence,
	eng *engine.Engine,
	eventBus eventbus.EventBus,
	clk clock.Clock,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		persistence: store,
		engine:      eng,
		eventBus:    eventBus,
		clock:       clk,
		logger:      logger.With("module", "dispatcher"),
		tracer:      noop.NewTracerProvider().Tracer("dispatcher"),
	}
}

// WithTracer attaches a tracer; without it spans are no-ops.
func (d *Dispatcher) WithTracer(tracer trace.Tracer) *Dispatcher {
	d.tracer = tracer

	return d
}

// OnDomainEvent handles one record mutation: it creates an execution per
// matching active definition and pokes executions waiting on a field this
// event changed. Trigger matching is fire-and-forget relative to execution
// success, so processing errors are logged, never returned; the returned
// ids identify the executions that were created.
func (d *Dispatcher) OnDomainEvent(ctx context.Context, event models.DomainEvent) []string {
	ctx, span := otelhelper.StartSpan(ctx, d.tracer, "dispatcher.on_domain_event",
		attribute.String(otelhelper.ObjectTypeKey, event.ObjectType),
		attribute.String(otelhelper.RecordIDKey, event.RecordID),
		attribute.String("flowengine.event.kind", string(event.Kind)),
	)
	defer span.End()

	definitions, err := d.persistence.Definitions().ActiveByObjectType(ctx, event.ObjectType)
	if err != nil {
		d.logger.ErrorContext(ctx, "failed to load active definitions",
			"object_type", event.ObjectType, "error", err)
		otelhelper.SetError(span, err)

		return nil
	}

	var created []string

	for _, def := range definitions {
		if !d.matches(def, &event) {
			continue
		}

		executionID, err := d.createExecution(ctx, def, &event)
		if err != nil {
			d.logger.ErrorContext(ctx, "failed to create execution",
				"workflow_id", def.ID, "record_id", event.RecordID, "error", err)

			continue
		}

		created = append(created, executionID)

		if err := d.engine.ProcessExecution(ctx, executionID); err != nil {
			d.logger.ErrorContext(ctx, "failed to process triggered execution",
				"execution_id", executionID, "workflow_id", def.ID, "error", err)
		}
	}

	if event.Kind == models.EventRecordUpdated {
		d.resumeFieldWaiters(ctx, &event)
	}

	return created
}

// matches applies the trigger-type matching rules for one definition.
func (d *Dispatcher) matches(def *models.WorkflowDefinition, event *models.DomainEvent) bool {
	switch def.TriggerType {
	case models.TriggerRecordCreated:
		return event.Kind == models.EventRecordCreated
	case models.TriggerRecordUpdated:
		return event.Kind == models.EventRecordUpdated
	case models.TriggerFieldChanged:
		return event.Kind == models.EventRecordUpdated && d.matchesFieldChange(def.TriggerConfig, event)
	default:
		// Manual definitions never match domain events.
		return false
	}
}

// matchesFieldChange requires the monitored field to actually differ, and
// the observed transition to hit the from/to filters exactly when they are
// configured. A no-op update never matches.
func (d *Dispatcher) matchesFieldChange(config *models.TriggerConfig, event *models.DomainEvent) bool {
	if config == nil || config.Field == "" {
		return false
	}

	if !event.FieldChanged(config.Field) {
		return false
	}

	if config.From != nil && !expression.LooseEquals(event.Previous[config.Field], config.From) {
		return false
	}

	if config.To != nil && !expression.LooseEquals(event.Record[config.Field], config.To) {
		return false
	}

	return true
}

func (d *Dispatcher) createExecution(ctx context.Context, def *models.WorkflowDefinition, event *models.DomainEvent) (string, error) {
	now := d.clock.Now()

	exec := &models.WorkflowExecution{
		ID:            uuid.New().String(),
		WorkflowID:    def.ID,
		ObjectType:    event.ObjectType,
		RecordID:      event.RecordID,
		Status:        models.ExecutionRunning,
		CurrentStepID: def.FirstStepID,
		Variables:     make(map[string]any),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := d.persistence.Executions().Create(ctx, exec); err != nil {
		return "", fmt.Errorf("create execution for workflow %s: %w", def.ID, err)
	}

	d.logger.InfoContext(ctx, "trigger matched",
		"workflow_id", def.ID, "execution_id", exec.ID,
		"object_type", event.ObjectType, "record_id", event.RecordID)

	d.publish(ctx, events.TriggerMatched{
		BaseEvent:   events.NewBaseEvent(events.TriggerMatchedEvent, def.ID),
		ExecutionID: exec.ID,
		ObjectType:  event.ObjectType,
		RecordID:    event.RecordID,
		TriggerType: string(def.TriggerType),
	})

	return exec.ID, nil
}

// resumeFieldWaiters claims and re-processes executions suspended on a
// field-change wait that this event satisfies. The claim happens here, not
// in the engine, because only the dispatcher has both snapshots: an
// expected-value wait needs the new value, a bare field wait needs proof
// the field actually changed.
func (d *Dispatcher) resumeFieldWaiters(ctx context.Context, event *models.DomainEvent) {
	waiting, err := d.persistence.Executions().WaitingOnFieldChange(ctx, event.ObjectType, event.RecordID)
	if err != nil {
		d.logger.ErrorContext(ctx, "failed to query field-change waiters",
			"object_type", event.ObjectType, "record_id", event.RecordID, "error", err)

		return
	}

	for _, exec := range waiting {
		condition := exec.WaitingFor
		if condition == nil || !event.FieldChanged(condition.Field) {
			continue
		}

		if condition.ExpectedValue != nil &&
			!expression.LooseEquals(event.Record[condition.Field], condition.ExpectedValue) {
			continue
		}

		claimed, err := d.persistence.Executions().Claim(ctx, exec.ID)
		if err != nil {
			d.logger.ErrorContext(ctx, "failed to claim waiting execution",
				"execution_id", exec.ID, "error", err)

			continue
		}

		if !claimed {
			continue
		}

		d.publish(ctx, events.ExecutionResumed{
			BaseEvent:   events.NewBaseEvent(events.ExecutionResumedEvent, exec.WorkflowID),
			ExecutionID: exec.ID,
			StepID:      exec.CurrentStepID,
		})

		if err := d.engine.ProcessExecution(ctx, exec.ID); err != nil {
			d.logger.ErrorContext(ctx, "failed to resume execution on field change",
				"execution_id", exec.ID, "error", err)
		}
	}
}

// InvokeManual creates an execution for a definition regardless of trigger
// matching. The record snapshot must carry its id.
func (d *Dispatcher) InvokeManual(ctx context.Context, workflowID string, record map[string]any) (string, error) {
	ctx, span := otelhelper.StartSpan(ctx, d.tracer, "dispatcher.invoke_manual",
		attribute.String(otelhelper.WorkflowIDKey, workflowID),
	)
	defer span.End()

	def, err := d.persistence.Definitions().ByID(ctx, workflowID)
	if err != nil {
		otelhelper.SetError(span, err)

		return "", fmt.Errorf("load workflow %s: %w", workflowID, err)
	}

	if !def.IsActive {
		return "", fmt.Errorf("workflow %s is not active", workflowID)
	}

	recordID, ok := record["id"].(string)
	if !ok || recordID == "" {
		return "", fmt.Errorf("record has no id field")
	}

	executionID, err := d.createExecution(ctx, def, &models.DomainEvent{
		ObjectType: def.ObjectType,
		Kind:       models.EventRecordUpdated,
		RecordID:   recordID,
		Record:     record,
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return "", err
	}

	if err := d.engine.ProcessExecution(ctx, executionID); err != nil {
		d.logger.ErrorContext(ctx, "failed to process manual execution",
			"execution_id", executionID, "workflow_id", workflowID, "error", err)
	}

	return executionID, nil
}
