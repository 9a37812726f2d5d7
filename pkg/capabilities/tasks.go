package capabilities

import (
	"context"
	"log/slog"
	"sync"

	"github.com/praxishq/flowengine/pkg/models"
)

// LogTaskCreator logs task creation requests instead of persisting them.
type LogTaskCreator struct {
	logger *slog.Logger
}

// NewLogTaskCreator creates a task creator that only logs.
func NewLogTaskCreator(logger *slog.Logger) *LogTaskCreator {
	return &LogTaskCreator{logger: logger.With("module", "log_task_creator")}
}

func (t *LogTaskCreator) CreateTask(ctx context.Context, task models.TaskRequest) error {
	t.logger.InfoContext(ctx, "Creating task",
		"title", task.Title,
		"object_type", task.ObjectType,
		"record_id", task.RecordID,
		"due_at", task.DueAt)

	return nil
}

// CollectingTaskCreator captures task requests for assertions in tests.
type CollectingTaskCreator struct {
	mu      sync.Mutex
	Created []models.TaskRequest
	Err     error
}

func (t *CollectingTaskCreator) CreateTask(_ context.Context, task models.TaskRequest) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.Created = append(t.Created, task)

	return t.Err
}
