// Package gochannel wires the in-process watermill transport for run
// lifecycle events. It is the default event bus for the CLI and for
// single-process API deployments where no Kafka cluster is configured.
package gochannel

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// CreateChannel returns the publisher and subscriber for in-process event
// delivery. Both sides are the same GoChannel instance, so events published
// on the run lifecycle topic reach subscribers in the same process without
// serialization overhead. The buffer absorbs bursts from runs with many
// node transitions.
func CreateChannel(logger watermill.LoggerAdapter) (*gochannel.GoChannel, *gochannel.GoChannel, error) {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            1000,
			Persistent:                     false,
			BlockPublishUntilSubscriberAck: false,
		},
		logger,
	)

	return pubSub, pubSub, nil
}

// CreateTestChannel blocks each publish until the subscriber acks, so tests
// observe lifecycle events in publish order without sleeping. Persistent
// delivery lets a test subscribe after the run already emitted events.
func CreateTestChannel(logger watermill.LoggerAdapter) (*gochannel.GoChannel, *gochannel.GoChannel, error) {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            10,
			Persistent:                     true,
			BlockPublishUntilSubscriberAck: true,
		},
		logger,
	)

	return pubSub, pubSub, nil
}
