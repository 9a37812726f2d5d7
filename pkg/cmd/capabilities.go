package cmd

import (
	"log/slog"
	"time"

	"github.com/praxishq/flowengine/pkg/capabilities"
	"github.com/praxishq/flowengine/pkg/protocol"
)

const defaultWebhookTimeout = 30 * time.Second

// NewCapabilities wires the default capability bundle: an in-process record
// store plus logging notification/task capabilities. Deployments embedding
// the engine substitute real implementations backed by their CRM.
func NewCapabilities(logger *slog.Logger) protocol.Capabilities {
	return protocol.Capabilities{
		Records:  capabilities.NewMemoryRecordStore(),
		Notifier: capabilities.NewLogNotifier(logger),
		Tasks:    capabilities.NewLogTaskCreator(logger),
		Webhooks: capabilities.NewHTTPWebhookClient(defaultWebhookTimeout),
	}
}
