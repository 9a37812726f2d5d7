package models

import (
	"time"
)

// ExecutionStatus is the lifecycle state of a workflow execution.
type ExecutionStatus string

const (
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionWaiting   ExecutionStatus = "waiting"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionCancelled ExecutionStatus = "cancelled"
)

// WaitKind discriminates the suspend condition of a waiting execution.
type WaitKind string

const (
	WaitDelay       WaitKind = "delay"
	WaitFieldChange WaitKind = "field_change"
)

// WaitingFor describes why a waiting execution is suspended. ResumeAt is set
// only for delay waits; Field/ExpectedValue only for field-change waits.
type WaitingFor struct {
	Type          WaitKind   `json:"type"`
	ResumeAt      *time.Time `json:"resume_at,omitempty"`
	Field         string     `json:"field,omitempty"`
	ExpectedValue any        `json:"expected_value,omitempty"`
}

// HistoryStatus classifies a history entry.
type HistoryStatus string

const (
	HistoryStepStarted   HistoryStatus = "started"
	HistoryStepCompleted HistoryStatus = "completed"
	HistoryStepWarning   HistoryStatus = "warning"
	HistoryStepFailed    HistoryStatus = "failed"
	HistoryExecutionDone HistoryStatus = "execution_completed"
	HistoryExecutionFail HistoryStatus = "execution_failed"
)

// HistoryEntry is one record in an execution's append-only audit log.
// A started entry doubles as the idempotency marker for side-effecting
// steps: it is written before the side effect runs and upgraded in place
// once the step completes.
type HistoryEntry struct {
	StepID string        `json:"step_id,omitempty"`
	Kind   StepKind      `json:"kind,omitempty"`
	Status HistoryStatus `json:"status"`
	Detail string        `json:"detail,omitempty"`
	At     time.Time     `json:"at"`
}

// Failure reason codes distinguishable for alerting.
const (
	FailureStepLimit = "step_limit_exceeded"
)

// WorkflowExecution is one run of a workflow definition against one
// triggering record. Created by the trigger dispatcher, mutated exclusively
// by the engine, never deleted: terminal executions are retained for audit.
type WorkflowExecution struct {
	ID            string          `json:"id"`
	WorkflowID    string          `json:"workflow_id"`
	ObjectType    string          `json:"object_type"`
	RecordID      string          `json:"record_id"`
	Status        ExecutionStatus `json:"status"`
	CurrentStepID string          `json:"current_step_id,omitempty"`
	Variables     map[string]any  `json:"variables,omitempty"`
	WaitingFor    *WaitingFor     `json:"waiting_for,omitempty"`
	NextRunAt     *time.Time      `json:"next_run_at,omitempty"`
	History       []HistoryEntry  `json:"history,omitempty"`
	FailureReason string          `json:"failure_reason,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
}

// IsTerminal reports whether the execution has reached a final status.
func (e *WorkflowExecution) IsTerminal() bool {
	switch e.Status {
	case ExecutionCompleted, ExecutionFailed, ExecutionCancelled:
		return true
	default:
		return false
	}
}

// AppendHistory appends an entry to the audit log.
func (e *WorkflowExecution) AppendHistory(entry HistoryEntry) {
	e.History = append(e.History, entry)
}

// LastHistory returns the most recent history entry, or nil when empty.
func (e *WorkflowExecution) LastHistory() *HistoryEntry {
	if len(e.History) == 0 {
		return nil
	}

	return &e.History[len(e.History)-1]
}
