package steps

import (
	"context"
	"fmt"

	"github.com/praxishq/flowengine/pkg/expression"
	"github.com/praxishq/flowengine/pkg/models"
)

// Notification sends are fire-and-forget: a delivery failure is recorded
// as a warning in history but never fails the workflow.

func (e *Executor) executeSendEmail(ctx context.Context, step *models.Step, state *State) (Result, error) {
	if step.Email == nil {
		return Result{}, fmt.Errorf("step %s: send_email step has no email config", step.ID)
	}

	recipient, err := resolveRecipient(step.Email.RecipientField, state)
	if err != nil {
		return Result{}, fmt.Errorf("step %s: %w", step.ID, err)
	}

	templateCtx := templateContext(state)

	if err := e.caps.Notifier.SendEmail(ctx, recipient, step.Email.TemplateID, templateCtx); err != nil {
		e.logger.WarnContext(ctx, "email send failed",
			"step_id", step.ID, "template_id", step.Email.TemplateID, "error", err)

		return advanceWarning(step.NextStepID,
			fmt.Sprintf("email send to %s failed: %v", recipient, err)), nil
	}

	return advance(step.NextStepID, fmt.Sprintf("email %s sent to %s", step.Email.TemplateID, recipient)), nil
}

func (e *Executor) executeSendSMS(ctx context.Context, step *models.Step, state *State) (Result, error) {
	if step.SMS == nil {
		return Result{}, fmt.Errorf("step %s: send_sms step has no sms config", step.ID)
	}

	recipient, err := resolveRecipient(step.SMS.RecipientField, state)
	if err != nil {
		return Result{}, fmt.Errorf("step %s: %w", step.ID, err)
	}

	templateCtx := templateContext(state)

	if err := e.caps.Notifier.SendSMS(ctx, recipient, step.SMS.TemplateID, templateCtx); err != nil {
		e.logger.WarnContext(ctx, "sms send failed",
			"step_id", step.ID, "template_id", step.SMS.TemplateID, "error", err)

		return advanceWarning(step.NextStepID,
			fmt.Sprintf("sms send to %s failed: %v", recipient, err)), nil
	}

	return advance(step.NextStepID, fmt.Sprintf("sms %s sent to %s", step.SMS.TemplateID, recipient)), nil
}

// resolveRecipient resolves the dotted recipient path against the record
// and variables. A missing or empty recipient is an executor error, not a
// best-effort warning: the definition is asking for a field the record
// does not carry.
func resolveRecipient(field string, state *State) (string, error) {
	value := expression.ResolvePath(field, state.Record, state.Execution.Variables)
	if value == nil {
		return "", fmt.Errorf("recipient field %q not present on record", field)
	}

	recipient, ok := value.(string)
	if !ok || recipient == "" {
		return "", fmt.Errorf("recipient field %q did not resolve to a non-empty string", field)
	}

	return recipient, nil
}

func templateContext(state *State) map[string]any {
	return map[string]any{
		"record": state.Record,
		"vars":   state.Execution.Variables,
	}
}
