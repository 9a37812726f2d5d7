package models

import (
	"github.com/praxishq/flowengine/pkg/expression"
)

// StepKind identifies a step variant. The set is closed: the engine
// dispatches with an exhaustive switch, so adding a kind is a
// compile-time-visible change.
type StepKind string

const (
	StepSendEmail   StepKind = "send_email"
	StepSendSMS     StepKind = "send_sms"
	StepCreateTask  StepKind = "create_task"
	StepUpdateField StepKind = "update_field"
	StepWebhook     StepKind = "webhook"
	StepBranch      StepKind = "branch"
	StepWait        StepKind = "wait"
	StepLoop        StepKind = "loop"
	StepEnd         StepKind = "end"
)

// Step is one node in a workflow's directed graph. Exactly one of the
// per-kind config fields matching Kind is set; End needs none. NextStepID
// is the default outgoing edge; branch and loop carry their own edges.
type Step struct {
	ID         string   `json:"id"   validate:"required"`
	Kind       StepKind `json:"kind" validate:"required"`
	Name       string   `json:"name"`
	NextStepID string   `json:"next_step_id,omitempty"`

	Email   *EmailConfig   `json:"email,omitempty"`
	SMS     *SMSConfig     `json:"sms,omitempty"`
	Task    *TaskConfig    `json:"task,omitempty"`
	Field   *FieldConfig   `json:"field,omitempty"`
	Webhook *WebhookConfig `json:"webhook,omitempty"`
	Branch  *BranchConfig  `json:"branch,omitempty"`
	Wait    *WaitConfig    `json:"wait,omitempty"`
	Loop    *LoopConfig    `json:"loop,omitempty"`
}

// EmailConfig configures a send_email step. RecipientField is a dotted path
// into the record snapshot resolving to the destination address.
type EmailConfig struct {
	TemplateID     string `json:"template_id"     validate:"required"`
	RecipientField string `json:"recipient_field" validate:"required"`
}

// SMSConfig configures a send_sms step.
type SMSConfig struct {
	TemplateID     string `json:"template_id"     validate:"required"`
	RecipientField string `json:"recipient_field" validate:"required"`
}

// TaskConfig carries the template fields for a create_task step. The created
// task is linked to the triggering record.
type TaskConfig struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description,omitempty"`
	DueInDays   int    `json:"due_in_days,omitempty"`
}

// FieldConfig configures an update_field step: the target field on the
// triggering record and the value expression producing the new value.
type FieldConfig struct {
	Field string           `json:"field" validate:"required"`
	Value expression.Value `json:"value"`
}

// WebhookConfig configures a webhook step. The payload is posted as JSON
// with record and execution identifiers merged in.
type WebhookConfig struct {
	URL     string         `json:"url" validate:"required,url"`
	Payload map[string]any `json:"payload,omitempty"`
}

// BranchConfig configures a branch (decision) step.
type BranchConfig struct {
	Condition   expression.Condition `json:"condition"`
	TrueStepID  string               `json:"true_step_id"  validate:"required"`
	FalseStepID string               `json:"false_step_id" validate:"required"`
}

// WaitConfig configures a wait step: either a fixed duration (Go duration
// string, e.g. "48h") or a wait until the named record field changes,
// optionally to an expected value.
type WaitConfig struct {
	Duration      string `json:"duration,omitempty"`
	Field         string `json:"field,omitempty"`
	ExpectedValue any    `json:"expected_value,omitempty"`
}

// LoopConfig configures a loop step. The counter lives in the execution's
// variables under Variable; each pass routes to BodyStepID until Count
// passes have run, then the loop resets the counter and exits via the
// step's NextStepID.
type LoopConfig struct {
	Count      int    `json:"count"        validate:"required,min=1"`
	Variable   string `json:"variable"     validate:"required"`
	BodyStepID string `json:"body_step_id" validate:"required"`
}
