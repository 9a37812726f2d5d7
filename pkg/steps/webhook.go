package steps

import (
	"context"
	"fmt"

	"github.com/praxishq/flowengine/pkg/models"
	"github.com/praxishq/flowengine/pkg/template"
)

// Webhooks are best-effort notifications, not workflow gates: a network
// error or non-2xx response is recorded as a warning and the workflow
// advances anyway.
func (e *Executor) executeWebhook(ctx context.Context, step *models.Step, state *State) (Result, error) {
	if step.Webhook == nil {
		return Result{}, fmt.Errorf("step %s: webhook step has no webhook config", step.ID)
	}

	exec := state.Execution

	rendered, err := template.RenderMap(step.Webhook.Payload, map[string]any{
		"record": state.Record,
		"vars":   exec.Variables,
		"execution": map[string]any{
			"id":          exec.ID,
			"workflow_id": exec.WorkflowID,
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("step %s: render webhook payload: %w", step.ID, err)
	}

	payload := make(map[string]any, len(rendered)+5)
	for k, v := range rendered {
		payload[k] = v
	}

	payload["object_type"] = exec.ObjectType
	payload["record_id"] = exec.RecordID
	payload["workflow_id"] = exec.WorkflowID
	payload["execution_id"] = exec.ID
	payload["record"] = state.Record

	status, err := e.caps.Webhooks.Post(ctx, step.Webhook.URL, payload)
	if err != nil {
		e.logger.WarnContext(ctx, "webhook post failed",
			"step_id", step.ID, "url", step.Webhook.URL, "error", err)

		return advanceWarning(step.NextStepID,
			fmt.Sprintf("webhook %s failed: %v", step.Webhook.URL, err)), nil
	}

	if status < 200 || status > 299 {
		e.logger.WarnContext(ctx, "webhook returned non-2xx status",
			"step_id", step.ID, "url", step.Webhook.URL, "status", status)

		return advanceWarning(step.NextStepID,
			fmt.Sprintf("webhook %s returned status %d", step.Webhook.URL, status)), nil
	}

	return advance(step.NextStepID, fmt.Sprintf("webhook %s returned status %d", step.Webhook.URL, status)), nil
}
