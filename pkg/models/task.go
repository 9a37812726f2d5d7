package models

import "time"

// TaskRequest is the payload handed to the task-creation capability by a
// create_task step. The task is linked back to the triggering record.
type TaskRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	ObjectType  string     `json:"object_type"`
	RecordID    string     `json:"record_id"`
	WorkflowID  string     `json:"workflow_id"`
	ExecutionID string     `json:"execution_id"`
}
