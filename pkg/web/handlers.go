// Package web exposes the engine's HTTP surface: definition management,
// the domain-event ingress, execution inspection, and operational pokes
// (process, cancel, sweep).
package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/praxishq/flowengine/pkg/clock"
	"github.com/praxishq/flowengine/pkg/dispatcher"
	"github.com/praxishq/flowengine/pkg/engine"
	"github.com/praxishq/flowengine/pkg/eventbus"
	"github.com/praxishq/flowengine/pkg/events"
	"github.com/praxishq/flowengine/pkg/models"
	"github.com/praxishq/flowengine/pkg/persistence"
	"github.com/praxishq/flowengine/pkg/scheduler"
	"github.com/praxishq/flowengine/pkg/workflow"
)

type APIHandlers struct {
	persistence persistence.Persistence
	dispatcher  *dispatcher.Dispatcher
	engine      *engine.Engine
	scheduler   *scheduler.Scheduler
	eventBus    eventbus.EventBus
	validator   *workflow.Validator
	validate    *validator.Validate
	clock       clock.Clock
	logger      *slog.Logger
}

func NewAPIHandlers(
	store persistence.Persistence,
	disp *dispatcher.Dispatcher,
	eng *engine.Engine,
	sched *scheduler.Scheduler,
	eventBus eventbus.EventBus,
	defValidator *workflow.Validator,
	clk clock.Clock,
	logger *slog.Logger,
) *APIHandlers {
	return &APIHandlers{
		persistence: store,
		dispatcher:  disp,
		engine:      eng,
		scheduler:   sched,
		eventBus:    eventBus,
		validator:   defValidator,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		clock:       clk,
		logger:      logger.With("module", "web"),
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	httpStatus := http.StatusOK

	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	defs, err := h.persistence.Definitions().All(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows": defs,
		"count":     len(defs),
	})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "workflow id is required")
	}

	def, err := h.persistence.Definitions().ByID(c.Context(), id)
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(def)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	def, err := h.validator.ValidateJSON(c.Body())
	if err != nil {
		return badRequest(c, err.Error())
	}

	now := h.clock.Now()
	if def.CreatedAt.IsZero() {
		def.CreatedAt = now
	}

	def.UpdatedAt = now

	if err := h.persistence.Definitions().Save(c.Context(), def); err != nil {
		return handleStoreError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(def)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "workflow id is required")
	}

	if err := h.persistence.Definitions().Delete(c.Context(), id); err != nil {
		return handleStoreError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

type invokeRequest struct {
	Record map[string]any `json:"record" validate:"required"`
}

func (h *APIHandlers) InvokeWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "workflow id is required")
	}

	var req invokeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid JSON format")
	}

	if err := h.validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	executionID, err := h.dispatcher.InvokeManual(c.Context(), id, req.Record)
	if err != nil {
		if persistence.IsDefinitionNotFound(err) {
			return notFound(c, "workflow not found")
		}

		return badRequest(c, err.Error())
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"execution_id": executionID,
	})
}

func (h *APIHandlers) GetWorkflowExecutions(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "workflow id is required")
	}

	execs, err := h.persistence.Executions().ByWorkflow(c.Context(), id)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"executions": execs,
		"count":      len(execs),
	})
}

// PostEvent is the domain-event ingress: the data platform's mutation path
// posts one event per record change. Matching is fire-and-forget, so the
// response reports which executions were created, never their outcome.
func (h *APIHandlers) PostEvent(c fiber.Ctx) error {
	var event models.DomainEvent
	if err := c.Bind().JSON(&event); err != nil {
		return badRequest(c, "invalid JSON format")
	}

	if err := h.validate.Struct(&event); err != nil {
		return badRequest(c, err.Error())
	}

	created := h.dispatcher.OnDomainEvent(c.Context(), event)

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"executions": created,
		"count":      len(created),
	})
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "execution id is required")
	}

	exec, err := h.persistence.Executions().ByID(c.Context(), id)
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(exec)
}

// ProcessExecution re-invokes the engine for one execution, the manual
// recovery path for a stuck run. Outcome is read from the returned state.
func (h *APIHandlers) ProcessExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "execution id is required")
	}

	if err := h.engine.ProcessExecution(c.Context(), id); err != nil {
		return handleStoreError(c, err)
	}

	exec, err := h.persistence.Executions().ByID(c.Context(), id)
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(exec)
}

// CancelExecution marks a non-terminal execution cancelled. The engine
// respects the terminal status by never resuming it; there is no mid-step
// cancellation signal.
func (h *APIHandlers) CancelExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "execution id is required")
	}

	exec, err := h.persistence.Executions().ByID(c.Context(), id)
	if err != nil {
		return handleStoreError(c, err)
	}

	if exec.IsTerminal() {
		return conflict(c, "execution is already "+string(exec.Status))
	}

	now := h.clock.Now()

	exec.Status = models.ExecutionCancelled
	exec.WaitingFor = nil
	exec.NextRunAt = nil
	exec.CompletedAt = &now
	exec.UpdatedAt = now

	if err := h.persistence.Executions().Update(c.Context(), exec); err != nil {
		return handleStoreError(c, err)
	}

	if h.eventBus != nil {
		event := events.ExecutionCancelled{
			BaseEvent:   events.NewBaseEvent(events.ExecutionCancelledEvent, exec.WorkflowID),
			ExecutionID: exec.ID,
		}
		if err := h.eventBus.Publish(c.Context(), string(event.GetType()), event); err != nil {
			h.logger.Warn("failed to publish cancellation event", "execution_id", exec.ID, "error", err)
		}
	}

	return c.JSON(exec)
}

type sweepRequest struct {
	BatchSize int `json:"batch_size"`
}

func (h *APIHandlers) RunSweep(c fiber.Ctx) error {
	var req sweepRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "invalid JSON format")
		}
	}

	result, err := h.scheduler.Sweep(c.Context(), req.BatchSize)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(result)
}
