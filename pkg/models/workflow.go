// Package models defines the core domain models for trigger-driven workflow
// automation: workflow definitions, their step graphs, and executions.
package models

import (
	"time"
)

// TriggerType identifies the domain event kind a workflow definition
// attaches to.
type TriggerType string

const (
	TriggerRecordCreated TriggerType = "record_created"
	TriggerRecordUpdated TriggerType = "record_updated"
	TriggerFieldChanged  TriggerType = "field_changed"
	TriggerManual        TriggerType = "manual"
)

// TriggerConfig narrows a field_changed trigger to a specific field and,
// optionally, an exact from/to transition.
type TriggerConfig struct {
	Field string `json:"field" validate:"required"`
	From  any    `json:"from,omitempty"`
	To    any    `json:"to,omitempty"`
}

// WorkflowDefinition is the authored description of an automation: what it
// attaches to, what fires it, and its step graph. Definitions are created by
// the builder UI and are read-only to the engine.
type WorkflowDefinition struct {
	ID            string         `json:"id"             validate:"required"`
	Name          string         `json:"name"           validate:"required,min=3"`
	Description   string         `json:"description"`
	TenantID      string         `json:"tenant_id"`
	ObjectType    string         `json:"object_type"    validate:"required"`
	TriggerType   TriggerType    `json:"trigger_type"   validate:"required"`
	TriggerConfig *TriggerConfig `json:"trigger_config,omitempty"`
	FirstStepID   string         `json:"first_step_id"  validate:"required"`
	Steps         []*Step        `json:"steps"          validate:"required,min=1,dive"`
	IsActive      bool           `json:"is_active"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// StepIndex builds an id -> step lookup. Steps reference each other by id,
// which permits cycles; the engine's step ceiling is the safety net.
func (d *WorkflowDefinition) StepIndex() map[string]*Step {
	index := make(map[string]*Step, len(d.Steps))
	for _, step := range d.Steps {
		index[step.ID] = step
	}

	return index
}

// StepByID resolves a step by id.
func (d *WorkflowDefinition) StepByID(id string) (*Step, bool) {
	for _, step := range d.Steps {
		if step.ID == id {
			return step, true
		}
	}

	return nil, false
}
