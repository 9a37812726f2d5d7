// Package protocol defines the collaborator contracts the engine depends on.
// Implementations live outside the engine and are injected at construction,
// so tests can substitute fakes.
package protocol

import (
	"context"

	"github.com/praxishq/flowengine/pkg/models"
)

// RecordStore reads and mutates domain record snapshots. The backing CRUD
// platform is out of scope; the engine only needs snapshots and targeted
// field writes.
type RecordStore interface {
	Get(ctx context.Context, objectType, recordID string) (map[string]any, error)
	UpdateField(ctx context.Context, objectType, recordID, field string, value any) error
}

// Notifier sends templated email/SMS messages. Fire-and-forget: failures are
// reported back into execution history only, never fail the workflow.
type Notifier interface {
	SendEmail(ctx context.Context, to, templateID string, templateCtx map[string]any) error
	SendSMS(ctx context.Context, to, templateID string, templateCtx map[string]any) error
}

// TaskCreator creates a task record linked to the triggering record.
type TaskCreator interface {
	CreateTask(ctx context.Context, task models.TaskRequest) error
}

// WebhookClient posts a JSON payload to an arbitrary URL with a timeout.
// Returns the HTTP status code, or an error for network failures.
type WebhookClient interface {
	Post(ctx context.Context, url string, payload map[string]any) (int, error)
}

// Capabilities bundles the collaborators a step executor may need.
type Capabilities struct {
	Records  RecordStore
	Notifier Notifier
	Tasks    TaskCreator
	Webhooks WebhookClient
}
