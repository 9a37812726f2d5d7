package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/praxishq/flowengine/pkg/persistence"
	"github.com/praxishq/flowengine/pkg/persistence/memory"
	"github.com/praxishq/flowengine/pkg/persistence/postgresql"
)

// NewPersistence selects the storage backend from the database URL scheme.
// "memory://" keeps everything in process and loses it on exit.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	case databaseURL == "" || strings.HasPrefix(databaseURL, "memory://"):
		return memory.NewPersistence(), nil
	default:
		return nil, fmt.Errorf("unsupported database URL: %s", databaseURL)
	}
}
