package engine

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praxishq/flowengine/pkg/capabilities"
	"github.com/praxishq/flowengine/pkg/clock"
	"github.com/praxishq/flowengine/pkg/expression"
	"github.com/praxishq/flowengine/pkg/models"
	"github.com/praxishq/flowengine/pkg/persistence/memory"
	"github.com/praxishq/flowengine/pkg/protocol"
)

type harness struct {
	engine   *Engine
	store    *memory.Persistence
	records  *capabilities.MemoryRecordStore
	notifier *capabilities.CollectingNotifier
	tasks    *capabilities.CollectingTaskCreator
	clock    *clock.Fake
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()

	store := memory.NewPersistence()
	records := capabilities.NewMemoryRecordStore()
	notifier := &capabilities.CollectingNotifier{}
	tasks := &capabilities.CollectingTaskCreator{}
	fakeClock := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	caps := protocol.Capabilities{
		Records:  records,
		Notifier: notifier,
		Tasks:    tasks,
		Webhooks: capabilities.NewHTTPWebhookClient(time.Second),
	}

	return &harness{
		engine:   New(store, caps, nil, fakeClock, slog.Default(), opts...),
		store:    store,
		records:  records,
		notifier: notifier,
		tasks:    tasks,
		clock:    fakeClock,
	}
}

// leadFollowup is a welcome workflow: email the new lead, wait two days,
// then mark them contacted.
func leadFollowup() *models.WorkflowDefinition {
	return &models.WorkflowDefinition{
		ID:          "lead-followup",
		Name:        "Lead follow-up",
		ObjectType:  "lead",
		TriggerType: models.TriggerRecordCreated,
		FirstStepID: "welcome-email",
		IsActive:    true,
		Steps: []*models.Step{
			{
				ID:         "welcome-email",
				Kind:       models.StepSendEmail,
				NextStepID: "cool-off",
				Email:      &models.EmailConfig{TemplateID: "welcome", RecipientField: "email"},
			},
			{
				ID:         "cool-off",
				Kind:       models.StepWait,
				NextStepID: "mark-contacted",
				Wait:       &models.WaitConfig{Duration: "48h"},
			},
			{
				ID:         "mark-contacted",
				Kind:       models.StepUpdateField,
				NextStepID: "done",
				Field: &models.FieldConfig{
					Field: "status",
					Value: expression.Value{Literal: "contacted"},
				},
			},
			{ID: "done", Kind: models.StepEnd},
		},
	}
}

func (h *harness) seed(t *testing.T, def *models.WorkflowDefinition, record map[string]any) *models.WorkflowExecution {
	t.Helper()

	require.NoError(t, h.store.Definitions().Save(t.Context(), def))
	h.records.Put(def.ObjectType, record["id"].(string), record)

	exec := &models.WorkflowExecution{
		ID:            "exec-1",
		WorkflowID:    def.ID,
		ObjectType:    def.ObjectType,
		RecordID:      record["id"].(string),
		Status:        models.ExecutionRunning,
		CurrentStepID: def.FirstStepID,
		Variables:     map[string]any{},
		CreatedAt:     h.clock.Now(),
		UpdatedAt:     h.clock.Now(),
	}
	require.NoError(t, h.store.Executions().Create(t.Context(), exec))

	return exec
}

func (h *harness) reload(t *testing.T, id string) *models.WorkflowExecution {
	t.Helper()

	exec, err := h.store.Executions().ByID(t.Context(), id)
	require.NoError(t, err)

	return exec
}

func TestProcessExecution_SuspendAndResume(t *testing.T) {
	h := newHarness(t)
	def := leadFollowup()
	h.seed(t, def, map[string]any{"id": "lead-1", "email": "jane@example.com", "status": "new"})

	// First pass runs until the wait step suspends the execution.
	require.NoError(t, h.engine.ProcessExecution(t.Context(), "exec-1"))

	exec := h.reload(t, "exec-1")
	assert.Equal(t, models.ExecutionWaiting, exec.Status)
	assert.Equal(t, "mark-contacted", exec.CurrentStepID)
	require.NotNil(t, exec.WaitingFor)
	assert.Equal(t, models.WaitDelay, exec.WaitingFor.Type)
	require.NotNil(t, exec.NextRunAt)
	assert.Equal(t, h.clock.Now().Add(48*time.Hour), *exec.NextRunAt)

	require.Len(t, h.notifier.Sent, 1)
	assert.Equal(t, "jane@example.com", h.notifier.Sent[0].To)

	// Email marker was upgraded in place, so history holds one entry per step.
	require.Len(t, exec.History, 2)
	assert.Equal(t, "welcome-email", exec.History[0].StepID)
	assert.Equal(t, models.HistoryStepCompleted, exec.History[0].Status)
	assert.Equal(t, "cool-off", exec.History[1].StepID)

	// Processing again before the delay elapses leaves the execution alone.
	h.clock.Advance(time.Hour)
	require.NoError(t, h.engine.ProcessExecution(t.Context(), "exec-1"))
	assert.Equal(t, models.ExecutionWaiting, h.reload(t, "exec-1").Status)
	require.Len(t, h.notifier.Sent, 1)

	// Past the resume time the execution picks up where it suspended.
	h.clock.Advance(48 * time.Hour)
	require.NoError(t, h.engine.ProcessExecution(t.Context(), "exec-1"))

	exec = h.reload(t, "exec-1")
	assert.Equal(t, models.ExecutionCompleted, exec.Status)
	assert.Empty(t, exec.CurrentStepID)
	assert.Nil(t, exec.WaitingFor)
	assert.Nil(t, exec.NextRunAt)
	require.NotNil(t, exec.CompletedAt)

	record, err := h.records.Get(t.Context(), "lead", "lead-1")
	require.NoError(t, err)
	assert.Equal(t, "contacted", record["status"])

	// email + wait + update_field + terminal marker.
	require.Len(t, exec.History, 4)
	assert.Equal(t, "mark-contacted", exec.History[2].StepID)
	assert.Equal(t, models.HistoryStepCompleted, exec.History[2].Status)
	assert.Empty(t, exec.History[3].StepID)
	assert.Equal(t, models.HistoryExecutionDone, exec.History[3].Status)

	// One email total: the resume pass continued after the wait step.
	require.Len(t, h.notifier.Sent, 1)
}

func TestProcessExecution_TerminalIsNoOp(t *testing.T) {
	h := newHarness(t)
	def := leadFollowup()
	exec := h.seed(t, def, map[string]any{"id": "lead-1", "email": "a@b.c"})

	exec.Status = models.ExecutionCompleted
	require.NoError(t, h.store.Executions().Update(t.Context(), exec))

	require.NoError(t, h.engine.ProcessExecution(t.Context(), "exec-1"))
	assert.Empty(t, h.notifier.Sent)
}

func TestProcessExecution_UnknownExecution(t *testing.T) {
	h := newHarness(t)

	err := h.engine.ProcessExecution(t.Context(), "no-such-exec")
	require.Error(t, err)
}

func TestProcessExecution_ReentryskipsSideEffect(t *testing.T) {
	h := newHarness(t)
	def := leadFollowup()
	exec := h.seed(t, def, map[string]any{"id": "lead-1", "email": "jane@example.com", "status": "new"})

	// Simulate a crash after the started marker was persisted but before
	// the email step's advance was: the marker is the last history entry
	// and CurrentStepID still points at the email step.
	exec.AppendHistory(models.HistoryEntry{
		StepID: "welcome-email",
		Kind:   models.StepSendEmail,
		Status: models.HistoryStepStarted,
		At:     h.clock.Now(),
	})
	require.NoError(t, h.store.Executions().Update(t.Context(), exec))

	require.NoError(t, h.engine.ProcessExecution(t.Context(), "exec-1"))

	// The send was not repeated; the marker became a warning entry.
	assert.Empty(t, h.notifier.Sent)

	reloaded := h.reload(t, "exec-1")
	assert.Equal(t, models.ExecutionWaiting, reloaded.Status)
	require.NotEmpty(t, reloaded.History)
	assert.Equal(t, "welcome-email", reloaded.History[0].StepID)
	assert.Equal(t, models.HistoryStepWarning, reloaded.History[0].Status)
	assert.Contains(t, reloaded.History[0].Detail, "skipped on re-entry")
}

func TestProcessExecution_StepLimitGuard(t *testing.T) {
	h := newHarness(t, WithStepLimit(10))

	def := &models.WorkflowDefinition{
		ID:          "cyclic",
		Name:        "Cyclic graph",
		ObjectType:  "lead",
		TriggerType: models.TriggerRecordCreated,
		FirstStepID: "spin",
		IsActive:    true,
		Steps: []*models.Step{
			{
				ID:   "spin",
				Kind: models.StepBranch,
				Branch: &models.BranchConfig{
					Condition:   expression.Condition{},
					TrueStepID:  "spin",
					FalseStepID: "spin",
				},
			},
		},
	}
	h.seed(t, def, map[string]any{"id": "lead-1"})

	require.NoError(t, h.engine.ProcessExecution(t.Context(), "exec-1"))

	exec := h.reload(t, "exec-1")
	assert.Equal(t, models.ExecutionFailed, exec.Status)
	assert.Equal(t, models.FailureStepLimit, exec.FailureReason)
	require.NotNil(t, exec.CompletedAt)
	assert.Equal(t, models.HistoryExecutionFail, exec.History[len(exec.History)-1].Status)
}

func TestProcessExecution_BranchEvaluationErrorFailsExecution(t *testing.T) {
	h := newHarness(t)

	def := &models.WorkflowDefinition{
		ID:          "strict-branch",
		Name:        "Strict branch",
		ObjectType:  "lead",
		TriggerType: models.TriggerRecordCreated,
		FirstStepID: "check",
		IsActive:    true,
		Steps: []*models.Step{
			{
				ID:   "check",
				Kind: models.StepBranch,
				Branch: &models.BranchConfig{
					Condition: expression.Condition{Terms: []expression.Term{
						{Cmp: expression.Comparison{Field: "name", Op: expression.OpGreater, Value: 10}},
					}},
					TrueStepID:  "done",
					FalseStepID: "done",
				},
			},
			{ID: "done", Kind: models.StepEnd},
		},
	}
	h.seed(t, def, map[string]any{"id": "lead-1", "name": "Acme Corp"})

	require.NoError(t, h.engine.ProcessExecution(t.Context(), "exec-1"))

	exec := h.reload(t, "exec-1")
	assert.Equal(t, models.ExecutionFailed, exec.Status)
	assert.NotEmpty(t, exec.FailureReason)

	require.Len(t, exec.History, 2)
	assert.Equal(t, "check", exec.History[0].StepID)
	assert.Equal(t, models.HistoryStepFailed, exec.History[0].Status)
	assert.Equal(t, models.HistoryExecutionFail, exec.History[1].Status)
}

func TestProcessExecution_MissingStepFailsExecution(t *testing.T) {
	h := newHarness(t)

	def := leadFollowup()
	def.FirstStepID = "no-such-step"
	h.seed(t, def, map[string]any{"id": "lead-1", "email": "a@b.c"})

	require.NoError(t, h.engine.ProcessExecution(t.Context(), "exec-1"))
	assert.Equal(t, models.ExecutionFailed, h.reload(t, "exec-1").Status)
}

func TestProcessExecution_MissingRecordFailsExecution(t *testing.T) {
	h := newHarness(t)
	def := leadFollowup()

	require.NoError(t, h.store.Definitions().Save(t.Context(), def))

	exec := &models.WorkflowExecution{
		ID:            "exec-1",
		WorkflowID:    def.ID,
		ObjectType:    "lead",
		RecordID:      "gone",
		Status:        models.ExecutionRunning,
		CurrentStepID: def.FirstStepID,
		CreatedAt:     h.clock.Now(),
		UpdatedAt:     h.clock.Now(),
	}
	require.NoError(t, h.store.Executions().Create(t.Context(), exec))

	require.NoError(t, h.engine.ProcessExecution(t.Context(), "exec-1"))
	assert.Equal(t, models.ExecutionFailed, h.reload(t, "exec-1").Status)
}

func TestProcessExecution_FieldWaitWithExpectedValue(t *testing.T) {
	h := newHarness(t)

	def := &models.WorkflowDefinition{
		ID:          "await-payment",
		Name:        "Await payment",
		ObjectType:  "invoice",
		TriggerType: models.TriggerRecordCreated,
		FirstStepID: "wait-paid",
		IsActive:    true,
		Steps: []*models.Step{
			{
				ID:         "wait-paid",
				Kind:       models.StepWait,
				NextStepID: "thank",
				Wait:       &models.WaitConfig{Field: "status", ExpectedValue: "paid"},
			},
			{
				ID:         "thank",
				Kind:       models.StepSendEmail,
				NextStepID: "done",
				Email:      &models.EmailConfig{TemplateID: "thanks", RecipientField: "email"},
			},
			{ID: "done", Kind: models.StepEnd},
		},
	}
	h.seed(t, def, map[string]any{"id": "inv-1", "email": "x@y.z", "status": "sent"})

	require.NoError(t, h.engine.ProcessExecution(t.Context(), "exec-1"))

	exec := h.reload(t, "exec-1")
	assert.Equal(t, models.ExecutionWaiting, exec.Status)
	require.NotNil(t, exec.WaitingFor)
	assert.Equal(t, models.WaitFieldChange, exec.WaitingFor.Type)

	// Field still has the wrong value, nothing happens.
	require.NoError(t, h.engine.ProcessExecution(t.Context(), "exec-1"))
	assert.Equal(t, models.ExecutionWaiting, h.reload(t, "exec-1").Status)
	assert.Empty(t, h.notifier.Sent)

	// Once the record carries the expected value, the engine resumes.
	h.records.Put("invoice", "inv-1", map[string]any{"id": "inv-1", "email": "x@y.z", "status": "paid"})
	require.NoError(t, h.engine.ProcessExecution(t.Context(), "exec-1"))

	exec = h.reload(t, "exec-1")
	assert.Equal(t, models.ExecutionCompleted, exec.Status)
	require.Len(t, h.notifier.Sent, 1)
}

func TestProcessExecution_BareFieldWaitNotSelfResumable(t *testing.T) {
	h := newHarness(t)

	def := &models.WorkflowDefinition{
		ID:          "await-any-change",
		Name:        "Await any change",
		ObjectType:  "invoice",
		TriggerType: models.TriggerRecordCreated,
		FirstStepID: "wait-change",
		IsActive:    true,
		Steps: []*models.Step{
			{
				ID:         "wait-change",
				Kind:       models.StepWait,
				NextStepID: "done",
				Wait:       &models.WaitConfig{Field: "status"},
			},
			{ID: "done", Kind: models.StepEnd},
		},
	}
	h.seed(t, def, map[string]any{"id": "inv-1", "status": "sent"})

	require.NoError(t, h.engine.ProcessExecution(t.Context(), "exec-1"))
	assert.Equal(t, models.ExecutionWaiting, h.reload(t, "exec-1").Status)

	// Without an expected value the engine cannot tell "changed" from a
	// stable value; only the dispatcher, which sees the mutation, resumes
	// these. Reprocessing is a no-op even after the field changed.
	h.records.Put("invoice", "inv-1", map[string]any{"id": "inv-1", "status": "paid"})
	require.NoError(t, h.engine.ProcessExecution(t.Context(), "exec-1"))
	assert.Equal(t, models.ExecutionWaiting, h.reload(t, "exec-1").Status)
}

func TestProcessExecution_WarningDoesNotFailExecution(t *testing.T) {
	h := newHarness(t)
	h.notifier.Err = assert.AnError

	def := leadFollowup()
	// Drop the wait so the run finishes in one pass.
	def.Steps[0].NextStepID = "mark-contacted"
	h.seed(t, def, map[string]any{"id": "lead-1", "email": "jane@example.com", "status": "new"})

	require.NoError(t, h.engine.ProcessExecution(t.Context(), "exec-1"))

	exec := h.reload(t, "exec-1")
	assert.Equal(t, models.ExecutionCompleted, exec.Status)
	assert.Equal(t, models.HistoryStepWarning, exec.History[0].Status)

	record, err := h.records.Get(t.Context(), "lead", "lead-1")
	require.NoError(t, err)
	assert.Equal(t, "contacted", record["status"])
}
