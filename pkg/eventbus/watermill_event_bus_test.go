package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgraph/flowgraph/pkg/channels/gochannel"
	"github.com/flowgraph/flowgraph/pkg/eventbus"
	"github.com/flowgraph/flowgraph/pkg/events"
)

func newTestBus(t *testing.T) eventbus.EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() {
		_ = bus.Close()
	})

	return bus
}

func TestPublishAndSubscribe(t *testing.T) {
	bus := newTestBus(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan *events.RunStarted, 1)

	err := bus.Handle(events.RunStartedEvent, func(_ context.Context, event any) error {
		started, ok := event.(*events.RunStarted)
		if ok {
			received <- started
		}

		return nil
	})
	require.NoError(t, err)
	require.NoError(t, bus.Subscribe(ctx))

	published := events.RunStarted{
		BaseEvent: events.BaseEvent{
			ID:           bus.GenerateID(),
			Type:         events.RunStartedEvent,
			Timestamp:    time.Now().UTC(),
			DefinitionID: "def-1",
			InstanceID:   "inst-1",
		},
		RuntimeParameters: map[string]any{"text": "hello"},
	}

	require.NoError(t, bus.Publish(ctx, "def-1", published))

	select {
	case got := <-received:
		assert.Equal(t, published.ID, got.ID)
		assert.Equal(t, "def-1", got.DefinitionID)
		assert.Equal(t, "inst-1", got.InstanceID)
		assert.Equal(t, "hello", got.RuntimeParameters["text"])
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestSubscribe_IgnoresUnhandledEventTypes(t *testing.T) {
	bus := newTestBus(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan struct{}, 2)

	err := bus.Handle(events.RunCompletedEvent, func(_ context.Context, _ any) error {
		received <- struct{}{}

		return nil
	})
	require.NoError(t, err)
	require.NoError(t, bus.Subscribe(ctx))

	base := events.BaseEvent{ID: bus.GenerateID(), Timestamp: time.Now().UTC(), DefinitionID: "def-1"}

	require.NoError(t, bus.Publish(ctx, "def-1", events.RunFailed{BaseEvent: base, Error: "boom"}))
	require.NoError(t, bus.Publish(ctx, "def-1", events.RunCompleted{BaseEvent: base, PipelineCount: 3}))

	select {
	case <-received:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for handled event")
	}

	select {
	case <-received:
		t.Fatal("handler fired for an unhandled event type")
	case <-time.After(100 * time.Millisecond):
	}
}
