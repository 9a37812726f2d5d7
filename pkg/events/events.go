// Package events defines event types for workflow execution lifecycle
// notifications.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic is the single stream all lifecycle events are published to.
const Topic = "flowengine.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	TriggerMatchedEvent     EventType = "workflow.trigger.matched"
	ExecutionStartedEvent   EventType = "workflow.execution.started"
	ExecutionSuspendedEvent EventType = "workflow.execution.suspended"
	ExecutionResumedEvent   EventType = "workflow.execution.resumed"
	ExecutionCompletedEvent EventType = "workflow.execution.completed"
	ExecutionFailedEvent    EventType = "workflow.execution.failed"
	ExecutionCancelledEvent EventType = "workflow.execution.cancelled"
)

type BaseEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	WorkflowID string    `json:"workflow_id"`
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
	}
}

// TriggerMatched is emitted when a domain event matches an active workflow
// and a new execution has been created for it.
type TriggerMatched struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	ObjectType  string `json:"object_type"`
	RecordID    string `json:"record_id"`
	TriggerType string `json:"trigger_type"`
}

func (e TriggerMatched) GetType() EventType {
	return TriggerMatchedEvent
}

type ExecutionStarted struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	ObjectType  string `json:"object_type"`
	RecordID    string `json:"record_id"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

// ExecutionSuspended is emitted when an execution reaches a wait step and
// is parked in storage. ResumeAt is set only for delay waits.
type ExecutionSuspended struct {
	BaseEvent

	ExecutionID string     `json:"execution_id"`
	StepID      string     `json:"step_id"`
	WaitType    string     `json:"wait_type"`
	ResumeAt    *time.Time `json:"resume_at,omitempty"`
	Field       string     `json:"field,omitempty"`
}

func (e ExecutionSuspended) GetType() EventType {
	return ExecutionSuspendedEvent
}

type ExecutionResumed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	StepID      string `json:"step_id"`
}

func (e ExecutionResumed) GetType() EventType {
	return ExecutionResumedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	ExecutionID   string `json:"execution_id"`
	StepsExecuted int    `json:"steps_executed"`
	DurationMs    int64  `json:"duration_ms"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	StepID      string `json:"step_id,omitempty"`
	Reason      string `json:"reason"`
	Error       string `json:"error,omitempty"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

type ExecutionCancelled struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	CancelledBy string `json:"cancelled_by,omitempty"`
}

func (e ExecutionCancelled) GetType() EventType {
	return ExecutionCancelledEvent
}
