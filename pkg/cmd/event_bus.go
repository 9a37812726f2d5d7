// Package cmd provides common initialization for the command-line
// binaries: persistence, event bus, and capability wiring.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/praxishq/flowengine/pkg/channels/gochannel"
	"github.com/praxishq/flowengine/pkg/channels/kafka"
	"github.com/praxishq/flowengine/pkg/eventbus"
)

// NewEventBus creates the lifecycle event bus. Kafka needs a broker list;
// the gochannel provider is in-process only and suits a single-node
// deployment or local development.
func NewEventBus(provider, brokers string, logger *slog.Logger) (eventbus.EventBus, error) {
	watermillLogger := watermill.NewSlogLogger(logger)

	switch provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(watermillLogger, brokers, "flowengine")
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	case "gochannel", "":
		pub, sub, err := gochannel.CreateChannel(watermillLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create GoChannel pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	default:
		return nil, fmt.Errorf("unsupported event bus provider: %s", provider)
	}
}
