package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praxishq/flowengine/pkg/channels/gochannel"
	"github.com/praxishq/flowengine/pkg/events"
)

func newTestBus(t *testing.T) EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := NewWatermillEventBus(pub, sub)
	t.Cleanup(func() {
		_ = bus.Close()
	})

	return bus
}

func TestWatermillEventBus_PublishSubscribe(t *testing.T) {
	bus := newTestBus(t)

	var (
		mu       sync.Mutex
		received []*events.ExecutionCompleted
	)

	done := make(chan struct{})

	require.NoError(t, bus.Handle(events.ExecutionCompletedEvent, func(_ context.Context, event any) error {
		completed, ok := event.(*events.ExecutionCompleted)
		if !ok {
			t.Errorf("unexpected event type %T", event)

			return nil
		}

		mu.Lock()
		received = append(received, completed)
		mu.Unlock()

		close(done)

		return nil
	}))

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	published := events.ExecutionCompleted{
		BaseEvent:     events.NewBaseEvent(events.ExecutionCompletedEvent, "wf-1"),
		ExecutionID:   "exec-1",
		StepsExecuted: 3,
		DurationMs:    125,
	}
	require.NoError(t, bus.Publish(ctx, string(published.GetType()), published))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event delivery")
	}

	mu.Lock()
	defer mu.Unlock()

	require.Len(t, received, 1)
	assert.Equal(t, "exec-1", received[0].ExecutionID)
	assert.Equal(t, 3, received[0].StepsExecuted)
	assert.Equal(t, "wf-1", received[0].WorkflowID)
}

func TestWatermillEventBus_UnhandledTypeIsAcked(t *testing.T) {
	bus := newTestBus(t)

	handled := make(chan struct{})

	// Only suspended events have a handler; the completed event published
	// first must not wedge delivery.
	require.NoError(t, bus.Handle(events.ExecutionSuspendedEvent, func(_ context.Context, _ any) error {
		close(handled)

		return nil
	}))

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	completed := events.ExecutionCompleted{
		BaseEvent:   events.NewBaseEvent(events.ExecutionCompletedEvent, "wf-1"),
		ExecutionID: "exec-1",
	}
	require.NoError(t, bus.Publish(ctx, string(completed.GetType()), completed))

	suspended := events.ExecutionSuspended{
		BaseEvent:   events.NewBaseEvent(events.ExecutionSuspendedEvent, "wf-1"),
		ExecutionID: "exec-1",
		StepID:      "wait",
		WaitType:    "delay",
	}
	require.NoError(t, bus.Publish(ctx, string(suspended.GetType()), suspended))

	select {
	case <-handled:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for suspended event")
	}
}

func TestWatermillEventBus_GenerateID(t *testing.T) {
	bus := newTestBus(t)

	first := bus.GenerateID()
	second := bus.GenerateID()

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}
