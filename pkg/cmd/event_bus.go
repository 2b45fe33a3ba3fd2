package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/flowgraph/flowgraph/pkg/channels/gochannel"
	"github.com/flowgraph/flowgraph/pkg/channels/kafka"
	"github.com/flowgraph/flowgraph/pkg/eventbus"
)

// NewEventBus creates an event bus instance based on the provider. The
// gochannel provider is in-process only and meant for local development.
func NewEventBus(provider, serviceName string, logger *slog.Logger) eventbus.EventBus {
	wmLogger := watermill.NewSlogLogger(logger)

	switch provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(wmLogger, serviceName)
		if err != nil {
			panic(fmt.Errorf("failed to create Kafka pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub)
	case "gochannel":
		pub, sub, err := gochannel.CreateChannel(wmLogger)
		if err != nil {
			panic(fmt.Errorf("failed to create gochannel pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub)
	default:
		panic("Unsupported event bus provider: " + provider)
	}
}
