// Package workflow validates workflow definitions: document shape via JSON
// Schema, field constraints via struct tags, and step-graph coherence via
// explicit reference checks.
package workflow

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"

	"github.com/praxishq/flowengine/pkg/models"
)

type Validator struct {
	validate *validator.Validate
	schema   *gojsonschema.Schema
}

func NewValidator() (*Validator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(definitionSchema))
	if err != nil {
		return nil, fmt.Errorf("compile definition schema: %w", err)
	}

	return &Validator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		schema:   schema,
	}, nil
}

// ValidateJSON checks a raw definition document against the schema, then
// unmarshals and fully validates it.
func (v *Validator) ValidateJSON(data []byte) (*models.WorkflowDefinition, error) {
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("validate definition document: %w", err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return nil, fmt.Errorf("definition document is invalid: %s", strings.Join(details, "; "))
	}

	var def models.WorkflowDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("unmarshal definition: %w", err)
	}

	if err := v.ValidateDefinition(&def); err != nil {
		return nil, err
	}

	return &def, nil
}

// ValidateDefinition checks struct constraints, per-kind step config, and
// that every step reference resolves within the definition.
func (v *Validator) ValidateDefinition(def *models.WorkflowDefinition) error {
	if err := v.validate.Struct(def); err != nil {
		return fmt.Errorf("definition %s: %w", def.ID, err)
	}

	if def.TriggerType == models.TriggerFieldChanged {
		if def.TriggerConfig == nil || def.TriggerConfig.Field == "" {
			return fmt.Errorf("definition %s: field_changed trigger requires a monitored field", def.ID)
		}
	}

	index := def.StepIndex()
	if len(index) != len(def.Steps) {
		return fmt.Errorf("definition %s: duplicate step ids", def.ID)
	}

	if _, ok := index[def.FirstStepID]; !ok {
		return fmt.Errorf("definition %s: first step %q not found", def.ID, def.FirstStepID)
	}

	for _, step := range def.Steps {
		if err := v.validateStep(def, index, step); err != nil {
			return err
		}
	}

	return nil
}

func (v *Validator) validateStep(def *models.WorkflowDefinition, index map[string]*models.Step, step *models.Step) error {
	if err := checkReference(index, step.NextStepID); err != nil {
		return fmt.Errorf("definition %s: step %s: next: %w", def.ID, step.ID, err)
	}

	switch step.Kind {
	case models.StepSendEmail:
		if step.Email == nil {
			return missingConfig(def, step, "email")
		}
	case models.StepSendSMS:
		if step.SMS == nil {
			return missingConfig(def, step, "sms")
		}
	case models.StepCreateTask:
		if step.Task == nil {
			return missingConfig(def, step, "task")
		}
	case models.StepUpdateField:
		if step.Field == nil {
			return missingConfig(def, step, "field")
		}
	case models.StepWebhook:
		if step.Webhook == nil {
			return missingConfig(def, step, "webhook")
		}
	case models.StepBranch:
		if step.Branch == nil {
			return missingConfig(def, step, "branch")
		}

		if err := checkReference(index, step.Branch.TrueStepID); err != nil {
			return fmt.Errorf("definition %s: step %s: true branch: %w", def.ID, step.ID, err)
		}

		if err := checkReference(index, step.Branch.FalseStepID); err != nil {
			return fmt.Errorf("definition %s: step %s: false branch: %w", def.ID, step.ID, err)
		}
	case models.StepWait:
		if step.Wait == nil {
			return missingConfig(def, step, "wait")
		}

		if step.Wait.Duration == "" && step.Wait.Field == "" {
			return fmt.Errorf("definition %s: step %s: wait configures neither duration nor field", def.ID, step.ID)
		}

		if step.Wait.Duration != "" {
			if _, err := time.ParseDuration(step.Wait.Duration); err != nil {
				return fmt.Errorf("definition %s: step %s: wait duration: %w", def.ID, step.ID, err)
			}
		}
	case models.StepLoop:
		if step.Loop == nil {
			return missingConfig(def, step, "loop")
		}

		if err := checkReference(index, step.Loop.BodyStepID); err != nil {
			return fmt.Errorf("definition %s: step %s: loop body: %w", def.ID, step.ID, err)
		}
	case models.StepEnd:
		// No config, no outgoing edge required.
	default:
		return fmt.Errorf("definition %s: step %s: unknown kind %q", def.ID, step.ID, step.Kind)
	}

	return nil
}

func checkReference(index map[string]*models.Step, stepID string) error {
	if stepID == "" {
		return nil
	}

	if _, ok := index[stepID]; !ok {
		return fmt.Errorf("references unknown step %q", stepID)
	}

	return nil
}

func missingConfig(def *models.WorkflowDefinition, step *models.Step, name string) error {
	return fmt.Errorf("definition %s: step %s: %s step has no %s config", def.ID, step.ID, step.Kind, name)
}
