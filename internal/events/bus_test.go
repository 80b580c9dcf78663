package events

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datacendia/council/internal/types"
)

type countingRecorder struct {
	published atomic.Int64
	dropped   atomic.Int64
}

func (c *countingRecorder) RecordEventPublished(string, int) { c.published.Add(1) }
func (c *countingRecorder) RecordEventDropped(string)        { c.dropped.Add(1) }

func TestEventBus_PublishSubscribe(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	ctx := context.Background()
	ch, cleanup := bus.Subscribe(ctx, Filter{}, 10)
	defer cleanup()

	sid := types.NewID()
	require.NoError(t, bus.Publish(ctx, NewEvent(ctx, EventDeliberationStarted, sid, "", nil)))

	select {
	case ev := <-ch:
		assert.Equal(t, EventDeliberationStarted, ev.Type)
		assert.Equal(t, sid, ev.SessionID)
		assert.False(t, ev.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestEventBus_Filters(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()
	ctx := context.Background()

	s1, s2 := types.NewID(), types.NewID()
	bySession, c1 := bus.Subscribe(ctx, Filter{SessionID: s1}, 10)
	defer c1()
	byType, c2 := bus.Subscribe(ctx, Filter{Types: []EventType{EventAgentCompleted}}, 10)
	defer c2()
	byAgent, c3 := bus.Subscribe(ctx, Filter{AgentID: "cfo"}, 10)
	defer c3()

	require.NoError(t, bus.Publish(ctx, Event{Type: EventAgentStarted, SessionID: s1, AgentID: "cfo"}))
	require.NoError(t, bus.Publish(ctx, Event{Type: EventAgentCompleted, SessionID: s2, AgentID: "ciso"}))

	assert.Len(t, bySession, 1)
	assert.Len(t, byType, 1)
	assert.Len(t, byAgent, 1)
}

func TestEventBus_SlowSubscriberDropsWithoutBlocking(t *testing.T) {
	rec := &countingRecorder{}
	var handled atomic.Int64
	bus := NewEventBus(
		WithMetrics(rec),
		WithErrorHandler(func(error, map[string]any) { handled.Add(1) }),
	)
	defer bus.Close()
	ctx := context.Background()

	_, cleanup := bus.Subscribe(ctx, Filter{}, 1)
	defer cleanup()

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(ctx, Event{Type: EventAgentToken}))
	}

	assert.Equal(t, int64(4), rec.dropped.Load())
	assert.Equal(t, int64(4), handled.Load())
	assert.Equal(t, int64(5), rec.published.Load())
}

func TestEventBus_CleanupAndClose(t *testing.T) {
	bus := NewEventBus(WithDefaultBufferSize(4))
	ctx := context.Background()

	ch1, cleanup1 := bus.Subscribe(ctx, Filter{}, 0)
	ch2, cleanup2 := bus.Subscribe(ctx, Filter{}, 0)
	assert.Equal(t, 2, bus.SubscriberCount())

	cleanup1()
	cleanup1()
	_, ok := <-ch1
	assert.False(t, ok)
	assert.Equal(t, 1, bus.SubscriberCount())

	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())
	_, ok = <-ch2
	assert.False(t, ok)
	cleanup2()

	assert.Error(t, bus.Publish(ctx, Event{Type: EventAgentToken}))

	ch3, cleanup3 := bus.Subscribe(ctx, Filter{}, 0)
	defer cleanup3()
	_, ok = <-ch3
	assert.False(t, ok)
}

func TestEventBus_ConcurrentPublish(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()
	ctx := context.Background()

	ch, cleanup := bus.Subscribe(ctx, Filter{}, 1000)
	defer cleanup()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = bus.Publish(ctx, Event{Type: EventAgentToken})
			}
		}()
	}
	wg.Wait()
	assert.Len(t, ch, 500)
}

func TestEventType_IsToken(t *testing.T) {
	assert.True(t, EventAgentToken.IsToken())
	assert.True(t, EventSynthesisToken.IsToken())
	assert.False(t, EventAgentCompleted.IsToken())
}
