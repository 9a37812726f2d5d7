package capabilities

import (
	"context"
	"log/slog"
	"sync"
)

// LogNotifier logs outgoing notifications instead of delivering them. Used
// in development wiring where no message provider is configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier that only logs.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("module", "log_notifier")}
}

func (n *LogNotifier) SendEmail(ctx context.Context, to, templateID string, templateCtx map[string]any) error {
	n.logger.InfoContext(ctx, "Sending email", "to", to, "template_id", templateID, "context", templateCtx)

	return nil
}

func (n *LogNotifier) SendSMS(ctx context.Context, to, templateID string, templateCtx map[string]any) error {
	n.logger.InfoContext(ctx, "Sending SMS", "to", to, "template_id", templateID, "context", templateCtx)

	return nil
}

// SentMessage records one notification captured by CollectingNotifier.
type SentMessage struct {
	Channel    string
	To         string
	TemplateID string
	Context    map[string]any
}

// CollectingNotifier captures notifications for assertions in tests. Err,
// when set, is returned from every send to simulate provider outages.
type CollectingNotifier struct {
	mu   sync.Mutex
	Sent []SentMessage
	Err  error
}

func (n *CollectingNotifier) SendEmail(_ context.Context, to, templateID string, templateCtx map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.Sent = append(n.Sent, SentMessage{Channel: "email", To: to, TemplateID: templateID, Context: templateCtx})

	return n.Err
}

func (n *CollectingNotifier) SendSMS(_ context.Context, to, templateID string, templateCtx map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.Sent = append(n.Sent, SentMessage{Channel: "sms", To: to, TemplateID: templateID, Context: templateCtx})

	return n.Err
}
